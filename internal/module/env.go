package module

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/executor/internal/fsutil"
)

//go:generate mockgen -destination=../executor/mocks/mock_module.go -package=mocks github.com/mattjoyce/executor/internal/module Collaborator,CollaboratorResolver

// Reporter is the user-facing status channel.
type Reporter interface {
	Obtained(path string)
	Output(path string)
	Finished(message string)
	Elapsed(d time.Duration)
	Error(err error)
	Path(ctx context.Context, prompt string, kind fsutil.Kind) (string, error)
	Localize(key string, args ...any) string
}

// Timer is a reentrancy-tolerant stopwatch.
type Timer interface {
	StartSafe()
	StopSafe() (time.Duration, bool)
}

// ConfigSource decodes a module's configuration blob into into.
type ConfigSource interface {
	Load(d *Descriptor, into any) error
}

// Collaborator is the codec boundary: a uniform source -> destination transformation.
type Collaborator interface {
	Transform(ctx context.Context, source, destination string) error
}

// ParamBinder is implemented by collaborators that accept extra named inputs.
type ParamBinder interface {
	Bind(params map[string]string) Collaborator
}

// CollaboratorResolver returns the collaborator a module delegates to.
type CollaboratorResolver interface {
	Resolve(ctx context.Context, d *Descriptor) (Collaborator, error)
}

// FailurePolicy decides what a batch does when one item fails.
type FailurePolicy string

const (
	// IsolateFailures records the failure and continues with the next entry.
	IsolateFailures FailurePolicy = "isolate"
	// AbortOnFailure stops the batch at the first failing entry.
	AbortOnFailure FailurePolicy = "abort"
)

// ParseFailurePolicy maps a config string to a policy. Empty means isolate.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", IsolateFailures:
		return IsolateFailures, nil
	case AbortOnFailure:
		return AbortOnFailure, nil
	default:
		return "", fmt.Errorf("invalid failure policy %q (valid: isolate, abort)", s)
	}
}

// ItemFailure is one failed batch entry.
type ItemFailure struct {
	Path string
	Err  error
}

// BatchResult tallies a batch run.
type BatchResult struct {
	RunID     string
	Attempted int
	Succeeded int
	Skipped   int
	Failures  []ItemFailure
	Aborted   bool
}

// Env is everything a forward needs besides its argument.
type Env struct {
	Module        *Descriptor
	Reporter      Reporter
	Timer         Timer
	Config        ConfigSource
	Collaborators CollaboratorResolver
	Policy        FailurePolicy
	Logger        *slog.Logger

	destination string
}

// SetDestination records the output path of a forward that built its own argument.
func (e *Env) SetDestination(path string) { e.destination = path }

// Destination returns the path recorded by SetDestination.
func (e *Env) Destination() string { return e.destination }

// Collaborator resolves the current module's collaborator.
func (e *Env) Collaborator(ctx context.Context) (Collaborator, error) {
	if e.Collaborators == nil {
		return nil, fmt.Errorf("module %q: no collaborator resolver configured", e.Module.ID())
	}
	return e.Collaborators.Resolve(ctx, e.Module)
}

// LoadConfiguration decodes the current module's configuration into into.
func (e *Env) LoadConfiguration(into any) error {
	if e.Config == nil {
		return nil
	}
	return e.Config.Load(e.Module, into)
}
