package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// LinePrompter asks on w and reads newline-terminated answers from in.
type LinePrompter struct {
	w       io.Writer
	scanner *bufio.Scanner
}

// NewLinePrompter returns a prompter reading from in and echoing questions to w.
func NewLinePrompter(in io.Reader, w io.Writer) *LinePrompter {
	return &LinePrompter{w: w, scanner: bufio.NewScanner(in)}
}

// Prompt blocks until a line is available. There is no timeout.
func (p *LinePrompter) Prompt(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(p.w, "%s ", question)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}
