package collab

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mattjoyce/executor/internal/log"
	"github.com/mattjoyce/executor/internal/module"
)

// CommandConfig is the collaborator section of a module's JSON configuration.
//
//	{"command": ["unpak", "-o", "{destination}", "{source}"], "timeout": "60s"}
type CommandConfig struct {
	Command []string          `json:"command"`
	Timeout string            `json:"timeout,omitempty"`
	Workdir string            `json:"workdir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Resolver maps modules to collaborators: an in-process builtin when one is
// registered for the module id, otherwise a Command built from the module's
// configuration.
type Resolver struct {
	config         module.ConfigSource
	builtins       map[string]module.Collaborator
	timeout        time.Duration
	maxStderrBytes int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithBuiltins registers in-process collaborators by module id.
func WithBuiltins(builtins map[string]module.Collaborator) ResolverOption {
	return func(r *Resolver) {
		for id, c := range builtins {
			r.builtins[id] = c
		}
	}
}

// WithLimits sets the default timeout and stderr cap for commands.
func WithLimits(timeout time.Duration, maxStderrBytes int) ResolverOption {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
		if maxStderrBytes > 0 {
			r.maxStderrBytes = maxStderrBytes
		}
	}
}

// NewResolver returns a Resolver reading command configuration from config.
func NewResolver(config module.ConfigSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		config:         config,
		builtins:       make(map[string]module.Collaborator),
		timeout:        DefaultTimeout,
		maxStderrBytes: DefaultMaxStderrBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the collaborator for d.
func (r *Resolver) Resolve(_ context.Context, d *module.Descriptor) (module.Collaborator, error) {
	if c, ok := r.builtins[d.ID()]; ok {
		return c, nil
	}
	if r.config == nil {
		return nil, &module.ConfigurationMissingError{ID: d.ID(), Path: d.ConfigurationFile(), Err: errors.New("no configuration source")}
	}

	var cfg CommandConfig
	if err := r.config.Load(d, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Command) == 0 {
		return nil, &module.ConfigurationMissingError{
			ID:   d.ID(),
			Path: d.ConfigurationFile(),
			Err:  errors.New("no collaborator command configured"),
		}
	}

	timeout := r.timeout
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("module %q: invalid timeout %q: %w", d.ID(), cfg.Timeout, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("module %q: timeout must be positive", d.ID())
		}
		timeout = parsed
	}

	return &Command{
		ID:             d.ID(),
		Args:           cfg.Command,
		Dir:            cfg.Workdir,
		Env:            envList(cfg.Env),
		Timeout:        timeout,
		MaxStderrBytes: r.maxStderrBytes,
		logger:         log.WithModule(d.ID()).With("component", "collab"),
	}, nil
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
