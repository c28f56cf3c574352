package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/metalagman/tickwise/internal/resolve"
)

func describeSuccess(action model.Action, before, after model.TaskRecord, changes model.Changes, prov *resolve.Provenance) string {
	var b strings.Builder
	switch action {
	case model.ActionCreate:
		fmt.Fprintf(&b, "Created %q in %s", after.Title, after.ContainerID)
		if len(after.Tags) > 0 {
			fmt.Fprintf(&b, " with tags %s", strings.Join(after.Tags, ", "))
		}
		if after.Recurrence != "" {
			fmt.Fprintf(&b, ", repeating %s", strings.TrimPrefix(after.Recurrence, "RRULE:"))
		}
	case model.ActionMove:
		fmt.Fprintf(&b, "Moved %q from %s to %s", before.Title, before.ContainerID, after.ContainerID)
	case model.ActionComplete:
		fmt.Fprintf(&b, "Completed %q", before.Title)
	case model.ActionDelete:
		fmt.Fprintf(&b, "Deleted %q", before.Title)
	default:
		fmt.Fprintf(&b, "Updated %q", before.Title)
		if parts := describeChanges(after, changes); len(parts) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(parts, "; "))
		}
	}
	if prov != nil && prov.Ambiguous() {
		fmt.Fprintf(&b, " (picked the most recent of %d matches for %q", prov.Candidates, prov.Query)
		if len(prov.Alternatives) > 0 {
			fmt.Fprintf(&b, "; others: %s", strings.Join(quoteAll(prov.Alternatives), ", "))
		}
		b.WriteString(")")
	}
	return b.String()
}

func describeChanges(after model.TaskRecord, c model.Changes) []string {
	var parts []string
	for _, f := range c.Fields() {
		switch f {
		case model.FieldTitle:
			parts = append(parts, fmt.Sprintf("title %q", after.Title))
		case model.FieldTags:
			if len(after.Tags) == 0 {
				parts = append(parts, "tags cleared")
			} else {
				parts = append(parts, "tags "+strings.Join(after.Tags, ", "))
			}
		case model.FieldNotes:
			parts = append(parts, "notes updated")
		case model.FieldDue:
			parts = append(parts, "due "+after.Due.Format("2006-01-02 15:04 MST"))
		case model.FieldPriority:
			parts = append(parts, "priority "+after.Priority.String())
		case model.FieldReminders:
			if len(after.Reminders) == 0 {
				parts = append(parts, "reminders cleared")
			} else {
				parts = append(parts, fmt.Sprintf("%d reminder(s)", len(after.Reminders)))
			}
		case model.FieldRecurrence:
			if after.Recurrence == "" {
				parts = append(parts, "no longer repeats")
			} else {
				parts = append(parts, "repeats "+strings.TrimPrefix(after.Recurrence, "RRULE:"))
			}
		case model.FieldContainer:
			parts = append(parts, "list "+after.ContainerID)
		}
	}
	return parts
}

func describeBulk(action model.Action, r Result) string {
	if len(r.Items) == 0 {
		return "No tasks matched"
	}
	verb := map[model.Action]string{
		model.ActionUpdate:   "Updated",
		model.ActionMove:     "Moved",
		model.ActionTag:      "Tagged",
		model.ActionComplete: "Completed",
	}[action]
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d of %d tasks", verb, r.Succeeded(), len(r.Items))
	for _, it := range r.Items {
		if it.Code != "" {
			fmt.Fprintf(&b, "\n- %q: %s", it.Title, it.Text)
		}
	}
	return b.String()
}

// describeUnindexed reports a change TickTick accepted that the local index
// missed, naming the remote id so the command is not repeated blindly.
func describeUnindexed(action model.Action, rec model.TaskRecord) string {
	verb := "Updated"
	switch action {
	case model.ActionCreate:
		verb = "Created"
	case model.ActionComplete:
		verb = "Completed"
	case model.ActionDelete:
		verb = "Deleted"
	case model.ActionMove:
		verb = "Moved"
	}
	return fmt.Sprintf("%s %q in TickTick (id %s) but could not save it to the local index", verb, rec.Title, rec.ID)
}

func describeFailure(subject string, err error) string {
	var fe *failure.Error
	if !errors.As(err, &fe) {
		if codeOf(err) == failure.KindCanceled {
			return "Cancelled"
		}
		return "Something went wrong: " + err.Error()
	}
	if fe.Ref != "" {
		subject = fe.Ref
	}
	switch fe.Kind {
	case failure.KindNotFound:
		if subject == "" {
			return "Not found"
		}
		return fmt.Sprintf("Could not find %q", subject)
	case failure.KindValidation, failure.KindUnsupported:
		return "Invalid request: " + fe.Detail
	case failure.KindRemoteRejected:
		if fe.Detail != "" {
			return "TickTick rejected the request: " + fe.Detail
		}
		return "TickTick rejected the request"
	case failure.KindRemoteUnavailable:
		return "TickTick is unavailable right now, try again later"
	case failure.KindParse:
		return "Could not understand the message"
	default:
		return err.Error()
	}
}

func quoteAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
