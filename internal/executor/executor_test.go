package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/executor/internal/console"
	"github.com/mattjoyce/executor/internal/events"
	"github.com/mattjoyce/executor/internal/executor/mocks"
	"github.com/mattjoyce/executor/internal/filter"
	"github.com/mattjoyce/executor/internal/fsutil"
	"github.com/mattjoyce/executor/internal/history"
	"github.com/mattjoyce/executor/internal/log"
	"github.com/mattjoyce/executor/internal/module"
	"github.com/mattjoyce/executor/internal/registry"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

type fixture struct {
	exec     *Executor
	out      *bytes.Buffer
	resolver *mocks.MockCollaboratorResolver
	codec    *mocks.MockCollaborator
	history  *mocks.MockRecorder
}

func newFixture(t *testing.T, input string, descriptors ...*module.Descriptor) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	reg := registry.New()
	for _, d := range descriptors {
		require.NoError(t, reg.Register(d))
	}

	var out bytes.Buffer
	rep := console.New(&out, console.WithPrompter(console.NewLinePrompter(strings.NewReader(input), &out)))

	f := &fixture{
		out:      &out,
		resolver: mocks.NewMockCollaboratorResolver(ctrl),
		codec:    mocks.NewMockCollaborator(ctrl),
		history:  mocks.NewMockRecorder(ctrl),
	}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.exec = New(reg, rep,
		WithCollaborators(f.resolver),
		WithHistory(f.history),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	return f
}

func unpackModule() *module.Descriptor {
	return module.New("archive.unpack").
		Direct(module.Transform(false, module.Suffix(".out"))).
		Filter(filter.File(`\.pak$`)).
		Option(1).
		MustBuild()
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
}

func TestDirectRunsCollaboratorAndRecords(t *testing.T) {
	d := unpackModule()
	f := newFixture(t, "", d)
	dir := t.TempDir()
	writeFiles(t, dir, "a.pak")
	src := filepath.Join(dir, "a.pak")

	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil)
	f.codec.EXPECT().Transform(gomock.Any(), src, src+".out").Return(nil)
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *history.Entry) error {
		assert.Equal(t, "archive.unpack", e.Module)
		assert.Equal(t, history.ModeDirect, e.Mode)
		assert.Equal(t, src, e.Source)
		assert.Equal(t, src+".out", e.Destination)
		assert.Equal(t, history.StatusSucceeded, e.Status)
		assert.Equal(t, 1, e.Succeeded)
		assert.Positive(t, e.Duration())
		return nil
	})

	require.NoError(t, f.exec.Direct(context.Background(), "archive.unpack", module.NewArgument(src)))
	assert.Equal(t, 1, f.exec.Commands())

	out := f.out.String()
	assert.Contains(t, out, "Obtained: "+src)
	assert.Contains(t, out, "Output: "+src+".out")
	assert.Contains(t, out, "Finished in")
	assert.Less(t, strings.Index(out, "Obtained"), strings.Index(out, "Output"))
}

func TestDirectKeepsExplicitDestination(t *testing.T) {
	d := unpackModule()
	f := newFixture(t, "", d)
	dir := t.TempDir()
	writeFiles(t, dir, "a.pak")
	src := filepath.Join(dir, "a.pak")
	dst := filepath.Join(dir, "custom")

	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil)
	f.codec.EXPECT().Transform(gomock.Any(), src, dst).Return(nil)
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	arg := module.NewArgument(src).Set(module.FieldDestination, dst)
	require.NoError(t, f.exec.Direct(context.Background(), d.ID(), arg))
}

func TestDirectInvalidSourceHasNoSideEffects(t *testing.T) {
	f := newFixture(t, "", unpackModule())
	missing := filepath.Join(t.TempDir(), "missing.pak")

	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *history.Entry) error {
		assert.Equal(t, history.StatusFailed, e.Status)
		assert.Empty(t, e.Destination)
		return nil
	})

	err := f.exec.Direct(context.Background(), "archive.unpack", module.NewArgument(missing))
	var ise *module.InvalidSourceError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, fsutil.KindFile, ise.Expected)
	assert.Equal(t, missing, ise.Path)

	assert.Zero(t, f.exec.Commands())
	assert.NotContains(t, f.out.String(), "Obtained")
	assert.Contains(t, f.out.String(), "Error: ")
}

func TestDirectCollaboratorFailure(t *testing.T) {
	d := unpackModule()
	f := newFixture(t, "", d)
	dir := t.TempDir()
	writeFiles(t, dir, "a.pak")
	src := filepath.Join(dir, "a.pak")

	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil)
	f.codec.EXPECT().Transform(gomock.Any(), src, src+".out").
		Return(&module.CollaboratorError{ID: d.ID(), Source: src, Stderr: "bad magic", Err: errors.New("exit status 2")})
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *history.Entry) error {
		assert.Equal(t, history.StatusFailed, e.Status)
		assert.Equal(t, "bad magic", e.Stderr)
		assert.Zero(t, e.Succeeded)
		return nil
	})

	err := f.exec.Direct(context.Background(), d.ID(), module.NewArgument(src))
	var ce *module.CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, f.exec.Commands())

	// The destination was echoed before the failure.
	assert.Contains(t, f.out.String(), "Output: "+src+".out")
}

func TestDirectHistoryFailureIsNotFatal(t *testing.T) {
	d := unpackModule()
	f := newFixture(t, "", d)
	dir := t.TempDir()
	writeFiles(t, dir, "a.pak")

	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil)
	f.codec.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	require.NoError(t, f.exec.Direct(context.Background(), d.ID(), module.NewArgument(filepath.Join(dir, "a.pak"))))
}

func TestBatchDefaultsToBasic(t *testing.T) {
	d := unpackModule()
	f := newFixture(t, "", d)
	dir := t.TempDir()
	writeFiles(t, dir, "a.pak", "b.pak", "c.pak", "x.txt", "y.txt")

	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil).Times(3)
	gomock.InOrder(
		f.codec.EXPECT().Transform(gomock.Any(), filepath.Join(dir, "a.pak"), gomock.Any()).Return(nil),
		f.codec.EXPECT().Transform(gomock.Any(), filepath.Join(dir, "b.pak"), gomock.Any()).Return(nil),
		f.codec.EXPECT().Transform(gomock.Any(), filepath.Join(dir, "c.pak"), gomock.Any()).Return(nil),
	)
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *history.Entry) error {
		assert.Equal(t, history.ModeBatch, e.Mode)
		assert.Equal(t, dir, e.Source)
		assert.NotEmpty(t, e.RunID)
		assert.Equal(t, 3, e.Attempted)
		assert.Equal(t, 3, e.Succeeded)
		return nil
	})

	result, err := f.exec.Batch(context.Background(), d.ID(), module.BatchArgument{Directory: dir})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 2, result.Skipped)
	assert.Contains(t, f.out.String(), "Processed 3 entries")
	assert.Equal(t, 1, f.exec.Commands())
}

func TestBatchIsolatesCollaboratorFailure(t *testing.T) {
	d := unpackModule()
	f := newFixture(t, "", d)
	dir := t.TempDir()
	writeFiles(t, dir, "a.pak", "b.pak", "c.pak")

	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil).Times(3)
	f.codec.EXPECT().Transform(gomock.Any(), filepath.Join(dir, "a.pak"), gomock.Any()).Return(nil)
	f.codec.EXPECT().Transform(gomock.Any(), filepath.Join(dir, "b.pak"), gomock.Any()).Return(errors.New("corrupt"))
	f.codec.EXPECT().Transform(gomock.Any(), filepath.Join(dir, "c.pak"), gomock.Any()).Return(nil)
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *history.Entry) error {
		assert.Equal(t, history.StatusFailed, e.Status)
		assert.Equal(t, "1 of 3 entries failed", e.Error)
		return nil
	})

	result, err := f.exec.Batch(context.Background(), d.ID(), module.BatchArgument{Directory: dir})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Failures, 1)

	var ce *module.CollaboratorError
	assert.True(t, errors.As(result.Failures[0].Err, &ce))
}

func TestBatchAbortPolicy(t *testing.T) {
	d := unpackModule()
	f := newFixture(t, "", d)
	WithPolicy(module.AbortOnFailure)(f.exec)
	dir := t.TempDir()
	writeFiles(t, dir, "a.pak", "b.pak", "c.pak")

	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil).Times(2)
	f.codec.EXPECT().Transform(gomock.Any(), filepath.Join(dir, "a.pak"), gomock.Any()).Return(nil)
	f.codec.EXPECT().Transform(gomock.Any(), filepath.Join(dir, "b.pak"), gomock.Any()).Return(errors.New("corrupt"))
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	result, err := f.exec.Batch(context.Background(), d.ID(), module.BatchArgument{Directory: dir})
	require.Error(t, err)
	assert.True(t, result.Aborted)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, strings.Count(f.out.String(), "corrupt"))
}

func TestBatchUsesDeclaredForward(t *testing.T) {
	var gotDirect bool
	direct := func(context.Context, *module.Env, *module.Argument) error { return nil }
	d := module.New("custom").
		Direct(direct).
		Batch(func(_ context.Context, env *module.Env, fn module.DirectFunc, arg module.BatchArgument) (*module.BatchResult, error) {
			gotDirect = fn != nil
			assert.Equal(t, "custom", env.Module.ID())
			return &module.BatchResult{Attempted: 7, Succeeded: 7}, nil
		}).
		MustBuild()
	f := newFixture(t, "", d)
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	result, err := f.exec.Batch(context.Background(), "custom", module.BatchArgument{Directory: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, gotDirect)
	assert.Equal(t, 7, result.Succeeded)
}

func TestAsyncPromptsForSecondaryInput(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "old.bin", "new.bin")
	before := filepath.Join(dir, "old.bin")
	after := filepath.Join(dir, "new.bin")

	afterPrompt := module.Prompt{Field: "after", Message: "Select the modified file", Kind: fsutil.KindFile}
	d := module.New("patch.create").
		Direct(module.Transform(false, module.Suffix(".patch"), afterPrompt)).
		Async(module.PromptedAsync).
		Prompt(afterPrompt.Field, afterPrompt.Message, afterPrompt.Kind).
		MustBuild()

	// The first answer does not exist, so the reporter asks again.
	f := newFixture(t, filepath.Join(dir, "nope")+"\n"+after+"\n", d)
	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil)
	f.codec.EXPECT().Transform(gomock.Any(), before, before+".patch").Return(nil)
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *history.Entry) error {
		assert.Equal(t, history.ModeAsync, e.Mode)
		assert.Equal(t, before+".patch", e.Destination)
		return nil
	})

	require.NoError(t, f.exec.Async(context.Background(), d.ID(), module.AsyncArgument{Source: before}))
	assert.Equal(t, 2, strings.Count(f.out.String(), "Select the modified file"))
	assert.Contains(t, f.out.String(), "try again")
}

func TestForwardErrors(t *testing.T) {
	direct := func(context.Context, *module.Env, *module.Argument) error { return nil }
	off := module.New("off").Direct(direct).Disabled().MustBuild()
	plain := module.New("plain").Direct(direct).MustBuild()
	f := newFixture(t, "", off, plain)
	ctx := context.Background()

	err := f.exec.Direct(ctx, "nonexistent", module.NewArgument("x"))
	var nf *module.NotFoundError
	require.True(t, errors.As(err, &nf))

	err = f.exec.Direct(ctx, "off", module.NewArgument("x"))
	require.ErrorIs(t, err, ErrDisabled)

	_, err = f.exec.Batch(ctx, "off", module.BatchArgument{Directory: "."})
	require.ErrorIs(t, err, ErrDisabled)

	err = f.exec.Async(ctx, "plain", module.AsyncArgument{Source: "x"})
	require.ErrorIs(t, err, ErrNoAsync)

	assert.Zero(t, f.exec.Commands())
	assert.Equal(t, 4, strings.Count(f.out.String(), "Error: "))
}

func TestSelectAndClassify(t *testing.T) {
	d := unpackModule()
	direct := func(context.Context, *module.Env, *module.Argument) error { return nil }
	digest := module.New("digest").Direct(direct).MustBuild()
	f := newFixture(t, "", d, digest)

	got, err := f.exec.Select("digest")
	require.NoError(t, err)
	assert.Same(t, digest, got)

	dir := t.TempDir()
	writeFiles(t, dir, "a.pak")
	matches := f.exec.Classify(filepath.Join(dir, "a.pak"))
	require.Len(t, matches, 1)
	assert.Same(t, d, matches[0])
	assert.Same(t, f.exec.Registry(), f.exec.Registry())
}

func TestForwardPublishesLifecycleEvents(t *testing.T) {
	d := unpackModule()
	f := newFixture(t, "", d)
	hub := events.NewHub(10)
	WithEvents(hub)(f.exec)

	dir := t.TempDir()
	writeFiles(t, dir, "a.pak")
	src := filepath.Join(dir, "a.pak")

	f.resolver.EXPECT().Resolve(gomock.Any(), d).Return(f.codec, nil).Times(2)
	f.codec.EXPECT().Transform(gomock.Any(), src, src+".out").Return(nil)
	f.codec.EXPECT().Transform(gomock.Any(), src, src+".out").Return(errors.New("bad magic"))
	f.history.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	require.NoError(t, f.exec.Direct(context.Background(), "archive.unpack", module.NewArgument(src)))
	require.Error(t, f.exec.Direct(context.Background(), "archive.unpack", module.NewArgument(src)))

	evs := hub.Since(0)
	require.Len(t, evs, 4)
	assert.Equal(t, []string{events.ForwardStarted, events.ForwardCompleted, events.ForwardStarted, events.ForwardFailed},
		[]string{evs[0].Type, evs[1].Type, evs[2].Type, evs[3].Type})

	var done events.Forward
	require.NoError(t, json.Unmarshal(evs[1].Data, &done))
	assert.Equal(t, "archive.unpack", done.Module)
	assert.Equal(t, src+".out", done.Destination)
	assert.Positive(t, done.DurationMS)

	var failed events.Forward
	require.NoError(t, json.Unmarshal(evs[3].Data, &failed))
	assert.Contains(t, failed.Error, "bad magic")
}
