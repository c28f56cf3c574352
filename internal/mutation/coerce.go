package mutation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func asString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", failure.Validation(op, fmt.Sprintf("expected text, got %T", value))
	}
	return s, nil
}

func asSet(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, failure.Validation(op, fmt.Sprintf("item %d: expected text, got %T", i, item))
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, failure.Validation(op, fmt.Sprintf("expected a list of text, got %T", value))
	}
}

func (r *Resolver) asTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		for _, layout := range localLayouts {
			if t, err := time.ParseInLocation(layout, s, r.loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, failure.Validation(op, fmt.Sprintf("cannot parse date %q", v))
	default:
		return time.Time{}, failure.Validation(op, fmt.Sprintf("expected a date, got %T", value))
	}
}

func asPriority(value any) (model.Priority, error) {
	var p model.Priority
	switch v := value.(type) {
	case string:
		parsed, ok := model.ParsePriority(strings.ToLower(strings.TrimSpace(v)))
		if !ok {
			return 0, failure.Validation(op, fmt.Sprintf("unknown priority %q", v))
		}
		return parsed, nil
	case model.Priority:
		p = v
	case int:
		p = model.Priority(v)
	case int64:
		p = model.Priority(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, failure.Validation(op, fmt.Sprintf("priority %v is not a whole number", v))
		}
		p = model.Priority(int(v))
	default:
		return 0, failure.Validation(op, fmt.Sprintf("expected a priority, got %T", value))
	}
	if !p.Valid() {
		return 0, failure.Validation(op, fmt.Sprintf("priority %d is out of range", int(p)))
	}
	return p, nil
}

var triggerPattern = regexp.MustCompile(`^P(\d+W|(\d+D)?(T(\d+H)?(\d+M)?(\d+S)?)?)$`)

// asTrigger accepts "TRIGGER:PT0S", "PT0S" or "-PT15M" and returns the
// prefixed form.
func asTrigger(value string) (string, error) {
	t := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(value)), "TRIGGER:")
	body := strings.TrimPrefix(t, "-")
	if body == "P" || strings.HasSuffix(body, "T") || !triggerPattern.MatchString(body) {
		return "", failure.Validation(op, fmt.Sprintf("reminder %q is not a duration like PT0S or P0DT9H0M0S", value))
	}
	return "TRIGGER:" + t, nil
}

var frequencies = map[string]string{
	"daily":   "DAILY",
	"weekly":  "WEEKLY",
	"monthly": "MONTHLY",
	"yearly":  "YEARLY",
}

// asRecurrence accepts an RRULE (with or without the "RRULE:" prefix), a
// bare frequency name, or {"freq": ..., "interval": ...}. Empty text clears.
func asRecurrence(value any) (string, error) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", nil
		}
		if freq, ok := frequencies[strings.ToLower(s)]; ok {
			return rrule(freq, 1), nil
		}
		rule := strings.TrimPrefix(strings.ToUpper(s), "RRULE:")
		if err := checkRule(rule); err != nil {
			return "", err
		}
		return "RRULE:" + rule, nil
	case map[string]any:
		name, _ := v["freq"].(string)
		if name == "" {
			name, _ = v["type"].(string)
		}
		freq, ok := frequencies[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return "", failure.Validation(op, fmt.Sprintf("unknown recurrence frequency %q", name))
		}
		interval := 1
		if raw, ok := v["interval"]; ok {
			n, err := asInterval(raw)
			if err != nil {
				return "", err
			}
			interval = n
		}
		return rrule(freq, interval), nil
	default:
		return "", failure.Validation(op, fmt.Sprintf("expected a recurrence rule, got %T", value))
	}
}

func rrule(freq string, interval int) string {
	return "RRULE:FREQ=" + freq + ";INTERVAL=" + strconv.Itoa(interval)
}

func checkRule(rule string) error {
	hasFreq := false
	for _, part := range strings.Split(rule, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok || key == "" || val == "" {
			return failure.Validation(op, fmt.Sprintf("malformed recurrence part %q", part))
		}
		if key == "FREQ" {
			if _, known := frequencies[strings.ToLower(val)]; !known {
				return failure.Validation(op, fmt.Sprintf("unknown recurrence frequency %q", val))
			}
			hasFreq = true
		}
	}
	if !hasFreq {
		return failure.Validation(op, "recurrence rule needs FREQ")
	}
	return nil
}

func asInterval(value any) (int, error) {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, failure.Validation(op, fmt.Sprintf("interval %v is not a whole number", v))
		}
		n = int(v)
	default:
		return 0, failure.Validation(op, fmt.Sprintf("expected an interval, got %T", value))
	}
	if n < 1 {
		return 0, failure.Validation(op, fmt.Sprintf("interval %d must be at least 1", n))
	}
	return n, nil
}
