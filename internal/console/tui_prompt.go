package console

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrPromptCancelled is returned when the user quits the terminal prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")

type promptModel struct {
	question  string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newPromptModel(question string) promptModel {
	ti := textinput.New()
	ti.Placeholder = "path"
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 60
	return promptModel{question: question, input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return m.question + "\n" + m.input.View() + "\n"
}

// TUIPrompter asks through a bubbletea text input. Use it when stdin is a terminal.
type TUIPrompter struct {
	opts []tea.ProgramOption
}

// NewTUIPrompter returns a terminal prompter; opts are passed to every program.
func NewTUIPrompter(opts ...tea.ProgramOption) *TUIPrompter {
	return &TUIPrompter{opts: opts}
}

func (p *TUIPrompter) Prompt(ctx context.Context, question string) (string, error) {
	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, p.opts...)
	final, err := tea.NewProgram(newPromptModel(question), opts...).Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(promptModel)
	if !ok || m.cancelled {
		return "", ErrPromptCancelled
	}
	return m.input.Value(), nil
}
