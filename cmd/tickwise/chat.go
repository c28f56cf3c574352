package main

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/tickwise/internal/orchestrator"
	"github.com/spf13/cobra"
)

const maxChatLines = 200

var promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)

// messageHandler is the part of the engine the chat needs.
type messageHandler interface {
	Handle(ctx context.Context, text string) (orchestrator.Result, error)
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive session: type requests, see what was done",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			renderer, err := glamour.NewTermRenderer(
				glamour.WithStandardStyle("dark"),
				glamour.WithWordWrap(100),
			)
			if err != nil {
				return err
			}
			p := tea.NewProgram(newChatModel(cmd.Context(), a.engine, renderer), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}
}

type replyMsg struct {
	res orchestrator.Result
	err error
}

type chatModel struct {
	ctx      context.Context
	handler  messageHandler
	renderer *glamour.TermRenderer
	input    textinput.Model
	spin     spinner.Model
	lines    []string
	busy     bool
}

func newChatModel(ctx context.Context, h messageHandler, r *glamour.TermRenderer) chatModel {
	in := textinput.New()
	in.Placeholder = "e.g. tag buy milk as urgent"
	in.Prompt = promptStyle.Render("> ")
	in.CharLimit = 4000
	in.Focus()
	return chatModel{
		ctx:      ctx,
		handler:  h,
		renderer: r,
		input:    in,
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			if text == "/quit" {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.push(promptStyle.Render("> ") + text)
			m.busy = true
			return m, tea.Batch(m.spin.Tick, m.send(text))
		}
	case replyMsg:
		m.busy = false
		m.push(m.render(msg.res))
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) View() string {
	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.busy {
		b.WriteString(m.spin.View() + " working...\n")
	} else {
		b.WriteString(m.input.View() + "\n")
	}
	b.WriteString(dimStyle.Render("enter to send, esc to quit"))
	return b.String()
}

func (m chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.handler.Handle(m.ctx, text)
		return replyMsg{res: res, err: err}
	}
}

func (m *chatModel) push(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxChatLines {
		m.lines = m.lines[len(m.lines)-maxChatLines:]
	}
}

func (m chatModel) render(res orchestrator.Result) string {
	style := okStyle
	if res.Code != "" {
		style = failStyle
	}
	text := res.Text
	if m.renderer != nil {
		if out, err := m.renderer.Render(text); err == nil {
			text = strings.TrimSpace(out)
		}
	}
	return style.Render(text)
}
