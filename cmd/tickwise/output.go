package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/metalagman/tickwise/internal/orchestrator"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res orchestrator.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	style := okStyle
	if res.Code != "" {
		style = failStyle
	}
	_, err := fmt.Fprintln(w, style.Render(res.Text))
	return err
}

func taskTable(recs []model.TaskRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "LIST", "TITLE", "TAGS", "DUE", "PRIORITY", "STATUS")
	for _, r := range recs {
		due := ""
		if r.Due != nil {
			due = r.Due.Format("2006-01-02 15:04")
		}
		t.Row(r.ID, r.ContainerID, r.Title, strings.Join(r.Tags, ","), due, r.Priority.String(), string(r.Status))
	}
	return t.String()
}

func containerTable(items []model.Container, defaultID string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "FLAGS")
	for _, c := range items {
		var flags []string
		if c.ID == defaultID {
			flags = append(flags, "default")
		}
		if c.Closed {
			flags = append(flags, "closed")
		}
		t.Row(c.ID, c.Name, strings.Join(flags, ","))
	}
	return t.String()
}
