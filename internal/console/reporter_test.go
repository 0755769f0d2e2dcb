package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/executor/internal/fsutil"
)

func TestReporterLines(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf)

	r.Obtained("in.tex")
	r.Output("in.png")
	r.Finished("Processed 3 entries")
	r.Elapsed(1500 * time.Millisecond)
	r.Error(errors.New("boom"))
	r.Error(nil)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"Obtained: in.tex",
		"Output: in.png",
		"Processed 3 entries",
		"Finished in 1.5s",
		"Error: boom",
	}, lines)
}

func TestReporterLocale(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithLocale("de-DE"))
	r.Obtained("a.bank")
	assert.Equal(t, "Eingabe: a.bank\n", buf.String())
	assert.Equal(t, "2 Einträge verarbeitet", r.Localize("batch.processed", 2))
}

func TestPathRepromptsUntilValid(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "after.bin")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	answers := strings.Join([]string{
		"",
		filepath.Join(dir, "missing.bin"),
		dir,
		`"` + file + `"`,
	}, "\n") + "\n"

	var out bytes.Buffer
	r := New(&out, WithPrompter(NewLinePrompter(strings.NewReader(answers), &out)))

	got, err := r.Path(context.Background(), "After file?", fsutil.KindFile)
	require.NoError(t, err)
	assert.Equal(t, file, got)
	assert.Equal(t, 4, strings.Count(out.String(), "After file?"))
	assert.Equal(t, 3, strings.Count(out.String(), "try again"))
}

func TestPathDirectoryKind(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := New(&out, WithPrompter(NewLinePrompter(strings.NewReader("  "+dir+"  \n"), &out)))

	got, err := r.Path(context.Background(), "Folder?", fsutil.KindDirectory)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestPathStopsOnEOF(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, WithPrompter(NewLinePrompter(strings.NewReader("nope\n"), &out)))

	_, err := r.Path(context.Background(), "File?", fsutil.KindFile)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPathWithoutPrompter(t *testing.T) {
	_, err := New(io.Discard).Path(context.Background(), "File?", fsutil.KindFile)
	assert.ErrorIs(t, err, ErrNoPrompter)
}

func TestLinePrompterHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLinePrompter(strings.NewReader("x\n"), io.Discard).Prompt(ctx, "?")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, "/a b/c", cleanPath(`  '/a b/c'  `))
	assert.Equal(t, "/x", cleanPath(`"/x"`))
	assert.Equal(t, `"`, cleanPath(`"`))
}

func TestPromptModel(t *testing.T) {
	var m tea.Model = newPromptModel("Where?")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/tmp/x")})
	assert.Contains(t, m.View(), "Where?")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	pm := m.(promptModel)
	assert.True(t, pm.done)
	assert.Equal(t, "/tmp/x", pm.input.Value())
	assert.Empty(t, pm.View())

	m, _ = newPromptModel("Where?").Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, m.(promptModel).cancelled)
}
