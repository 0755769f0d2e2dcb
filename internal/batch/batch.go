// Package batch applies a module's direct forward across the entries of a directory.
package batch

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mattjoyce/executor/internal/filter"
	"github.com/mattjoyce/executor/internal/fsutil"
	"github.com/mattjoyce/executor/internal/i18n"
	"github.com/mattjoyce/executor/internal/log"
	"github.com/mattjoyce/executor/internal/module"
)

type options struct {
	policy module.FailurePolicy
	match  func(path string) bool
}

// Option configures a single Basic run.
type Option func(*options)

// WithPolicy overrides the failure policy carried by the Env.
func WithPolicy(p module.FailurePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithMatch replaces the module filter as the per-entry gate. Modules without
// a filter use it to accept every entry of the enumerated kind.
func WithMatch(match func(path string) bool) Option {
	return func(o *options) { o.match = match }
}

// MatchAll accepts every entry.
func MatchAll(string) bool { return true }

// Basic enumerates the immediate children of arg.Directory (subdirectories when
// expectDirectory, files otherwise) in lexicographic order and calls direct once
// for every entry accepted by the module's filter. Entries are processed strictly
// one after another.
//
// Under module.IsolateFailures a failing entry is recorded and reported and the
// remaining entries still run; the returned error is nil. Under
// module.AbortOnFailure the first failure stops the run and is returned along
// with the partial result.
func Basic(ctx context.Context, env *module.Env, direct module.DirectFunc, arg module.BatchArgument, expectDirectory bool, opts ...Option) (*module.BatchResult, error) {
	o := options{policy: env.Policy}
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy == "" {
		o.policy = module.IsolateFailures
	}
	if o.match == nil {
		f := env.Module.Filter()
		o.match = func(path string) bool { return filter.Match(f, path) }
	}

	kind := fsutil.KindFor(expectDirectory)
	if !fsutil.Is(arg.Directory, fsutil.KindDirectory) {
		return nil, &module.InvalidSourceError{Expected: fsutil.KindDirectory, Path: arg.Directory}
	}
	entries, err := fsutil.Children(arg.Directory, kind)
	if err != nil {
		return nil, &module.InvalidSourceError{Expected: fsutil.KindDirectory, Path: arg.Directory, Err: err}
	}

	result := &module.BatchResult{RunID: uuid.NewString()}
	logger := runLogger(env, result.RunID)

	var matched []string
	for _, entry := range entries {
		if o.match(entry) {
			matched = append(matched, entry)
		} else {
			result.Skipped++
		}
	}
	logger.Debug("batch started",
		"directory", arg.Directory,
		"kind", kind,
		"entries", len(entries),
		"matched", len(matched),
		"policy", o.policy,
	)

	for _, entry := range matched {
		if err := ctx.Err(); err != nil {
			result.Aborted = true
			env.Reporter.Error(err)
			logger.Warn("batch cancelled", "attempted", result.Attempted, "error", err)
			return result, err
		}

		result.Attempted++
		if err := direct(ctx, env, module.NewArgument(entry)); err != nil {
			result.Failures = append(result.Failures, module.ItemFailure{Path: entry, Err: err})
			env.Reporter.Error(err)
			logger.Warn("batch entry failed", "source", entry, "error", err)

			if o.policy == module.AbortOnFailure {
				result.Aborted = true
				env.Reporter.Finished(env.Reporter.Localize(i18n.KeyAborted, result.Attempted, len(matched)))
				return result, err
			}
			continue
		}
		result.Succeeded++
	}

	env.Reporter.Finished(env.Reporter.Localize(i18n.KeyProcessed, result.Succeeded))
	if n := len(result.Failures); n > 0 {
		env.Reporter.Finished(env.Reporter.Localize(i18n.KeyFailed, n, result.Attempted))
	}
	logger.Info("batch completed",
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", len(result.Failures),
	)
	return result, nil
}

// Files is a module.BatchFunc over the files of a directory.
func Files(ctx context.Context, env *module.Env, direct module.DirectFunc, arg module.BatchArgument) (*module.BatchResult, error) {
	return Basic(ctx, env, direct, arg, false)
}

// Directories is a module.BatchFunc over the subdirectories of a directory.
func Directories(ctx context.Context, env *module.Env, direct module.DirectFunc, arg module.BatchArgument) (*module.BatchResult, error) {
	return Basic(ctx, env, direct, arg, true)
}

// For returns the default batch forward for d, following the kind of its filter.
func For(d *module.Descriptor) module.BatchFunc {
	if f := d.Filter(); f != nil && f.Kind == fsutil.KindDirectory {
		return Directories
	}
	return Files
}

func runLogger(env *module.Env, runID string) *slog.Logger {
	logger := env.Logger
	if logger == nil {
		logger = log.WithComponent("batch")
	}
	return logger.With("module", env.Module.ID(), "run_id", runID)
}
