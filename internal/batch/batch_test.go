package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/executor/internal/console"
	"github.com/mattjoyce/executor/internal/filter"
	"github.com/mattjoyce/executor/internal/fsutil"
	"github.com/mattjoyce/executor/internal/log"
	"github.com/mattjoyce/executor/internal/module"
	"github.com/mattjoyce/executor/internal/timing"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

type recorder struct {
	calls []string
	fail  map[string]error
}

func (r *recorder) direct(_ context.Context, _ *module.Env, arg *module.Argument) error {
	r.calls = append(r.calls, filepath.Base(arg.Source))
	return r.fail[filepath.Base(arg.Source)]
}

func newEnv(t *testing.T, f *filter.Filter, policy module.FailurePolicy) (*module.Env, *bytes.Buffer) {
	t.Helper()
	b := module.New("archive").Direct(func(context.Context, *module.Env, *module.Argument) error { return nil })
	if f != nil {
		b = b.Filter(f)
	}
	var buf bytes.Buffer
	rep := console.New(&buf)
	return &module.Env{
		Module:   b.MustBuild(),
		Reporter: rep,
		Timer:    timing.New(rep),
		Policy:   policy,
	}, &buf
}

func populate(t *testing.T, dir string, files ...string) {
	t.Helper()
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
}

func TestBasicProcessesOnlyMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "c.pak", "a.pak", "notes.txt", "b.pak", "readme.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.pak"), 0o755))

	env, out := newEnv(t, filter.File(`\.pak$`), "")
	rec := &recorder{}

	result, err := Basic(context.Background(), env, rec.direct, module.BatchArgument{Directory: dir}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.pak", "b.pak", "c.pak"}, rec.calls)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 2, result.Skipped)
	assert.NotEmpty(t, result.RunID)
	assert.Contains(t, out.String(), "Processed 3 entries")
}

func TestBasicIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "a.pak", "b.pak", "c.pak")

	boom := &module.CollaboratorError{ID: "archive", Err: errors.New("corrupt header")}
	env, out := newEnv(t, filter.File(`\.pak$`), module.IsolateFailures)
	rec := &recorder{fail: map[string]error{"b.pak": boom}}

	result, err := Basic(context.Background(), env, rec.direct, module.BatchArgument{Directory: dir}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.pak", "b.pak", "c.pak"}, rec.calls)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "b.pak"), result.Failures[0].Path)

	var ce *module.CollaboratorError
	assert.True(t, errors.As(result.Failures[0].Err, &ce))
	assert.False(t, result.Aborted)
	assert.Contains(t, out.String(), "corrupt header")
	assert.Contains(t, out.String(), "Processed 2 entries")
	assert.Contains(t, out.String(), "1 of 3 entries failed")
}

func TestBasicAbortsOnFailure(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "a.pak", "b.pak", "c.pak")

	boom := errors.New("corrupt header")
	env, out := newEnv(t, filter.File(`\.pak$`), module.IsolateFailures)
	rec := &recorder{fail: map[string]error{"b.pak": boom}}

	result, err := Basic(context.Background(), env, rec.direct, module.BatchArgument{Directory: dir}, false,
		WithPolicy(module.AbortOnFailure))
	require.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"a.pak", "b.pak"}, rec.calls)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	assert.True(t, result.Aborted)
	assert.Contains(t, out.String(), "Batch aborted after 2 of 3 entries")
}

func TestBasicPolicyFromEnv(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "a.pak", "b.pak")

	env, _ := newEnv(t, filter.File(`\.pak$`), module.AbortOnFailure)
	rec := &recorder{fail: map[string]error{"a.pak": errors.New("bad")}}

	result, err := Basic(context.Background(), env, rec.direct, module.BatchArgument{Directory: dir}, false)
	require.Error(t, err)
	assert.Equal(t, 1, result.Attempted)
}

func TestBasicDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.unpacked", "a.unpacked", "other"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0o755))
	}
	populate(t, dir, "c.unpacked")

	env, _ := newEnv(t, filter.Directory(`\.unpacked$`), "")
	rec := &recorder{}

	result, err := Directories(context.Background(), env, rec.direct, module.BatchArgument{Directory: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.unpacked", "b.unpacked"}, rec.calls)
	assert.Equal(t, 1, result.Skipped)
}

func TestBasicWithoutFilterMatchesNothing(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "a.pak")

	env, _ := newEnv(t, nil, "")
	rec := &recorder{}

	result, err := Files(context.Background(), env, rec.direct, module.BatchArgument{Directory: dir})
	require.NoError(t, err)
	assert.Empty(t, rec.calls)
	assert.Equal(t, 1, result.Skipped)

	result, err = Basic(context.Background(), env, rec.direct, module.BatchArgument{Directory: dir}, false, WithMatch(MatchAll))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pak"}, rec.calls)
	assert.Equal(t, 1, result.Succeeded)
}

func TestBasicInvalidDirectory(t *testing.T) {
	env, _ := newEnv(t, filter.File(`.*`), "")
	file := filepath.Join(t.TempDir(), "file.pak")
	populate(t, filepath.Dir(file), "file.pak")

	for _, dir := range []string{filepath.Join(t.TempDir(), "missing"), file} {
		_, err := Files(context.Background(), env, (&recorder{}).direct, module.BatchArgument{Directory: dir})
		var ise *module.InvalidSourceError
		require.True(t, errors.As(err, &ise), dir)
		assert.Equal(t, fsutil.KindDirectory, ise.Expected)
		assert.Equal(t, dir, ise.Path)
	}
}

func TestBasicStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "a.pak", "b.pak")

	env, _ := newEnv(t, filter.File(`\.pak$`), "")
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	direct := func(ctx context.Context, env *module.Env, arg *module.Argument) error {
		cancel()
		return rec.direct(ctx, env, arg)
	}

	result, err := Files(ctx, env, direct, module.BatchArgument{Directory: dir})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Attempted)
	assert.True(t, result.Aborted)
}

func TestFor(t *testing.T) {
	noop := func(context.Context, *module.Env, *module.Argument) error { return nil }
	dirs := module.New("pack").Direct(noop).Filter(filter.Directory(`x`)).MustBuild()
	files := module.New("unpack").Direct(noop).Filter(filter.File(`x`)).MustBuild()
	none := module.New("digest").Direct(noop).MustBuild()

	env := &module.Env{Module: dirs, Reporter: console.New(&bytes.Buffer{})}
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "x"), 0o755))
	populate(t, dir, "xfile")

	rec := &recorder{}
	_, err := For(dirs)(context.Background(), env, rec.direct, module.BatchArgument{Directory: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, rec.calls)

	assert.NotNil(t, For(files))
	assert.NotNil(t, For(none))
}
