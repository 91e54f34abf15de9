// pattern: Imperative Shell

// Package tui renders the terminal side of the plugin: the one-shot ask
// command with its progress spinner and markdown output.
package tui

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCanceled is returned when the user interrupts a running query.
var ErrCanceled = errors.New("canceled")

// QueryFunc sends one prompt and returns the reply.
type QueryFunc func(ctx context.Context, prompt string) (string, error)

// answerMsg carries the query result back into the update loop.
type answerMsg struct {
	text string
	err  error
}

// AskModel shows a spinner while a single query runs.
type AskModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	prompt  string
	query   QueryFunc
	styles  *Styles
	spinner spinner.Model

	done   bool
	answer string
	err    error
}

// NewAskModel creates a model. cancel is called when the user interrupts.
func NewAskModel(ctx context.Context, cancel context.CancelFunc, prompt string, query QueryFunc, styles *Styles) AskModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = styles.SpinnerStyle()

	return AskModel{
		ctx:     ctx,
		cancel:  cancel,
		prompt:  prompt,
		query:   query,
		styles:  styles,
		spinner: s,
	}
}

func (m AskModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run())
}

func (m AskModel) run() tea.Cmd {
	ctx, prompt, query := m.ctx, m.prompt, m.query
	return func() tea.Msg {
		text, err := query(ctx, prompt)
		return answerMsg{text: text, err: err}
	}
}

func (m AskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case answerMsg:
		if m.done {
			return m, nil
		}
		m.done = true
		m.answer, m.err = msg.text, msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.done = true
			m.err = ErrCanceled
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m AskModel) View() string {
	if m.done {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(m.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(m.styles.PromptStyle().Render("Asking ChatGPT: " + summarize(m.prompt, 60)))
	sb.WriteString(" ")
	sb.WriteString(m.styles.HelpStyle().Render("(esc to cancel)"))
	sb.WriteString("\n")
	return sb.String()
}

// Result returns the reply once the program has finished.
func (m AskModel) Result() (string, error) {
	return m.answer, m.err
}

// Ask runs query behind a spinner drawn on out and returns its result.
func Ask(ctx context.Context, prompt string, query QueryFunc, styles *Styles, in io.Reader, out io.Writer) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewAskModel(ctx, cancel, prompt, query, styles)
	final, err := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return "", err
	}
	return final.(AskModel).Result()
}

// summarize shortens s to one line of at most n runes.
func summarize(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
