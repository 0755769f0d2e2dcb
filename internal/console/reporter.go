// Package console prints user-facing status lines and asks for secondary inputs.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mattjoyce/executor/internal/fsutil"
	"github.com/mattjoyce/executor/internal/i18n"
)

// Prompter reads one answer to a question.
type Prompter interface {
	Prompt(ctx context.Context, question string) (string, error)
}

// Reporter writes styled, localized status lines to a single writer.
// Errors go through the same channel as normal status, in the error style.
type Reporter struct {
	w        io.Writer
	theme    Theme
	printer  *message.Printer
	prompter Prompter
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithPrinter sets the localized printer.
func WithPrinter(p *message.Printer) Option {
	return func(r *Reporter) { r.printer = p }
}

// WithLocale picks the printer for locale from the embedded catalogs.
func WithLocale(locale string) Option {
	return func(r *Reporter) {
		if b, err := i18n.Default(); err == nil {
			r.printer = b.Printer(locale)
		}
	}
}

// WithPrompter sets where Path reads answers from.
func WithPrompter(p Prompter) Option {
	return func(r *Reporter) { r.prompter = p }
}

// New returns a Reporter writing to w in the base locale.
func New(w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{w: w, theme: NewTheme(w)}
	WithLocale(i18n.BaseLocale)(r)
	for _, opt := range opts {
		opt(r)
	}
	if r.printer == nil {
		r.printer = message.NewPrinter(language.MustParse(i18n.BaseLocale))
	}
	return r
}

// Theme returns the reporter's styles.
func (r *Reporter) Theme() Theme { return r.theme }

// Localize formats key in the reporter's locale.
func (r *Reporter) Localize(key string, args ...any) string {
	return r.printer.Sprintf(key, args...)
}

func (r *Reporter) line(style lipgloss.Style, text string) {
	fmt.Fprintln(r.w, style.Render(text))
}

// Obtained echoes the resolved input before processing.
func (r *Reporter) Obtained(path string) {
	r.line(r.theme.Input, r.Localize(i18n.KeyObtained, path))
}

// Output echoes the resolved destination before processing starts.
func (r *Reporter) Output(path string) {
	r.line(r.theme.Output, r.Localize(i18n.KeyOutput, path))
}

// Finished prints a completion line.
func (r *Reporter) Finished(msg string) {
	r.line(r.theme.Finished, msg)
}

// Elapsed prints a measured duration.
func (r *Reporter) Elapsed(d time.Duration) {
	r.line(r.theme.Elapsed, r.Localize(i18n.KeyElapsed, d.Round(time.Millisecond)))
}

// Error prints err in the error style.
func (r *Reporter) Error(err error) {
	if err == nil {
		return
	}
	r.line(r.theme.Error, r.Localize(i18n.KeyError, err))
}

// ErrNoPrompter is returned by Path when no prompter is configured.
var ErrNoPrompter = errors.New("console: no prompter configured")

// Path blocks until the user supplies an existing path of kind, re-prompting on bad input.
// It returns early only when the prompter fails (EOF, cancellation).
func (r *Reporter) Path(ctx context.Context, prompt string, kind fsutil.Kind) (string, error) {
	if r.prompter == nil {
		return "", ErrNoPrompter
	}
	for {
		answer, err := r.prompter.Prompt(ctx, r.theme.Prompt.Render(prompt))
		if err != nil {
			return "", fmt.Errorf("read %s path: %w", kind, err)
		}
		path := cleanPath(answer)
		if path != "" && fsutil.Is(path, kind) {
			return path, nil
		}
		r.line(r.theme.Error, r.Localize(i18n.KeyPromptInvalid, answer, kind))
	}
}

// cleanPath strips whitespace and the quotes terminals add when a file is dropped in.
func cleanPath(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
