package console

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Theme centralizes the console styles. Colors are dropped automatically when
// the writer is not a terminal.
type Theme struct {
	Input    lipgloss.Style
	Output   lipgloss.Style
	Finished lipgloss.Style
	Elapsed  lipgloss.Style
	Error    lipgloss.Style
	Prompt   lipgloss.Style
	Dim      lipgloss.Style
	Header   lipgloss.Style
}

// NewTheme builds the default theme for w.
func NewTheme(w io.Writer) Theme {
	r := lipgloss.NewRenderer(w)
	return Theme{
		Input:    r.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Output:   r.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Finished: r.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true),
		Elapsed:  r.NewStyle().Foreground(lipgloss.Color("#888888")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		Prompt:   r.NewStyle().Foreground(lipgloss.Color("#874BFD")),
		Dim:      r.NewStyle().Foreground(lipgloss.Color("#666666")),
		Header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")),
	}
}
