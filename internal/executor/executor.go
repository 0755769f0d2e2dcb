// Package executor wires registered modules to their environment and runs
// their forwards one at a time.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/executor/internal/batch"
	"github.com/mattjoyce/executor/internal/console"
	"github.com/mattjoyce/executor/internal/counter"
	"github.com/mattjoyce/executor/internal/events"
	"github.com/mattjoyce/executor/internal/history"
	"github.com/mattjoyce/executor/internal/log"
	"github.com/mattjoyce/executor/internal/module"
	"github.com/mattjoyce/executor/internal/registry"
	"github.com/mattjoyce/executor/internal/timing"
)

var (
	// ErrDisabled is returned when a forward is invoked on a disabled module.
	ErrDisabled = errors.New("module is disabled")
	// ErrNoAsync is returned when a module declares no async forward.
	ErrNoAsync = errors.New("module has no async forward")
)

// Executor is the invocation surface over a registry. Forwards are serialized:
// at most one direct, batch or async call runs at any time.
type Executor struct {
	mu sync.Mutex

	registry      *registry.Registry
	reporter      module.Reporter
	config        module.ConfigSource
	collaborators module.CollaboratorResolver
	history       history.Recorder
	events        events.Publisher
	policy        module.FailurePolicy
	commands      counter.Counter
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithConfig sets where module configuration is loaded from.
func WithConfig(c module.ConfigSource) Option {
	return func(e *Executor) { e.config = c }
}

// WithCollaborators sets the collaborator resolver.
func WithCollaborators(r module.CollaboratorResolver) Option {
	return func(e *Executor) { e.collaborators = r }
}

// WithHistory records every invocation in h.
func WithHistory(h history.Recorder) Option {
	return func(e *Executor) { e.history = h }
}

// WithEvents publishes forward lifecycle events to p.
func WithEvents(p events.Publisher) Option {
	return func(e *Executor) { e.events = p }
}

// WithPolicy sets the batch failure policy.
func WithPolicy(p module.FailurePolicy) Option {
	return func(e *Executor) { e.policy = p }
}

// WithClock replaces time.Now for history timestamps and stopwatches.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New returns an Executor over reg reporting to reporter. A nil reporter discards output.
func New(reg *registry.Registry, reporter module.Reporter, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		reporter: reporter,
		policy:   module.IsolateFailures,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reporter == nil {
		e.reporter = console.New(io.Discard)
	}
	if e.logger == nil {
		e.logger = log.WithComponent("executor")
	}
	return e
}

// Registry returns the module catalog.
func (e *Executor) Registry() *registry.Registry { return e.registry }

// Reporter returns the console channel forwards report to.
func (e *Executor) Reporter() module.Reporter { return e.reporter }

// Commands returns the number of commands executed this session. It does not
// wait for a running forward.
func (e *Executor) Commands() int {
	return e.commands.Value()
}

// Select returns the module with id.
func (e *Executor) Select(id string) (*module.Descriptor, error) {
	return e.registry.Lookup(id)
}

// Classify returns the enabled modules applicable to path.
func (e *Executor) Classify(path string) []*module.Descriptor {
	return e.registry.Classify(path)
}

// Direct runs a module's direct forward on a single input.
func (e *Executor) Direct(ctx context.Context, id string, arg *module.Argument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.selectEnabled(id)
	if err != nil {
		return e.fail(err)
	}
	if arg == nil {
		return e.fail(&module.InvalidSourceError{Path: "", Err: errors.New("no argument")})
	}

	entry := e.begin(d, history.ModeDirect, arg.Source)
	err = d.Direct()(ctx, e.env(d), arg)
	entry.Destination, _ = arg.Destination()
	entry.Attempted = 1
	if err == nil {
		entry.Succeeded = 1
	}
	e.finish(ctx, entry, err, true)
	return err
}

// Batch runs a module's batch forward over a directory. Modules without a
// batch forward get batch.For(d) with their own direct forward.
func (e *Executor) Batch(ctx context.Context, id string, arg module.BatchArgument) (*module.BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.selectEnabled(id)
	if err != nil {
		return nil, e.fail(err)
	}

	fn := d.Batch()
	if fn == nil {
		fn = batch.For(d)
	}

	entry := e.begin(d, history.ModeBatch, arg.Directory)
	result, err := fn(ctx, e.env(d), d.Direct(), arg)
	if result != nil {
		entry.RunID = result.RunID
		entry.Attempted = result.Attempted
		entry.Succeeded = result.Succeeded
		if err == nil && len(result.Failures) > 0 {
			entry.Status = history.StatusFailed
			entry.Error = fmt.Sprintf("%d of %d entries failed", len(result.Failures), result.Attempted)
		}
	}
	// Batch already reported the entry failure that aborted it.
	e.finish(ctx, entry, err, result == nil || !result.Aborted)
	return result, err
}

// Async runs a module's deferred, parameterized forward.
func (e *Executor) Async(ctx context.Context, id string, arg module.AsyncArgument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.selectEnabled(id)
	if err != nil {
		return e.fail(err)
	}
	fn := d.Async()
	if fn == nil {
		return e.fail(fmt.Errorf("%s: %w", id, ErrNoAsync))
	}

	entry := e.begin(d, history.ModeAsync, arg.Source)
	env := e.env(d)
	err = fn(ctx, env, arg)
	entry.Destination = env.Destination()
	entry.Attempted = 1
	if err == nil {
		entry.Succeeded = 1
	}
	e.finish(ctx, entry, err, true)
	return err
}

func (e *Executor) selectEnabled(id string) (*module.Descriptor, error) {
	d, err := e.registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !d.Enabled() {
		return nil, fmt.Errorf("%s: %w", id, ErrDisabled)
	}
	return d, nil
}

func (e *Executor) env(d *module.Descriptor) *module.Env {
	return &module.Env{
		Module:        d,
		Reporter:      e.reporter,
		Timer:         timing.New(e.reporter, timing.WithClock(e.now)),
		Config:        e.config,
		Collaborators: e.collaborators,
		Policy:        e.policy,
		Logger:        log.WithModule(d.ID()),
	}
}

func (e *Executor) begin(d *module.Descriptor, mode history.Mode, source string) *history.Entry {
	e.commands.Increase()
	e.logger.Debug("forward started", "module", d.ID(), "mode", mode, "source", source)
	entry := &history.Entry{
		Module:    d.ID(),
		Mode:      mode,
		Source:    source,
		Status:    history.StatusSucceeded,
		StartedAt: e.now(),
	}
	e.publish(events.ForwardStarted, entry)
	return entry
}

func (e *Executor) publish(eventType string, entry *history.Entry) {
	if e.events == nil {
		return
	}
	payload := events.Forward{
		Module:      entry.Module,
		Mode:        string(entry.Mode),
		Source:      entry.Source,
		Destination: entry.Destination,
		RunID:       entry.RunID,
		Attempted:   entry.Attempted,
		Succeeded:   entry.Succeeded,
		Error:       entry.Error,
	}
	if !entry.CompletedAt.IsZero() {
		payload.DurationMS = entry.Duration().Milliseconds()
	}
	e.events.Publish(eventType, payload)
}

// finish reports err when report is set, records the entry and logs the outcome.
// A forward rejected for an invalid source never ran, so it is taken off the tally.
func (e *Executor) finish(ctx context.Context, entry *history.Entry, err error, report bool) {
	entry.CompletedAt = e.now()
	if err != nil {
		entry.Status = history.StatusFailed
		entry.Error = err.Error()
		var ce *module.CollaboratorError
		if errors.As(err, &ce) {
			entry.Stderr = ce.Stderr
		}
		var ise *module.InvalidSourceError
		if errors.As(err, &ise) {
			e.commands.Decrease()
		}
		if report {
			e.reporter.Error(err)
		}
		e.logger.Warn("forward failed", "module", entry.Module, "mode", entry.Mode, "error", err)
	} else {
		e.logger.Info("forward completed",
			"module", entry.Module,
			"mode", entry.Mode,
			"duration", entry.Duration(),
		)
	}

	if entry.Status == history.StatusFailed {
		e.publish(events.ForwardFailed, entry)
	} else {
		e.publish(events.ForwardCompleted, entry)
	}

	if e.history == nil {
		return
	}
	// Recording must not be cancelled with the forward that produced it.
	if rerr := e.history.Record(context.WithoutCancel(ctx), entry); rerr != nil {
		e.logger.Error("failed to record history", "module", entry.Module, "error", rerr)
	}
}

func (e *Executor) fail(err error) error {
	e.reporter.Error(err)
	return err
}
