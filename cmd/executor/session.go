package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/mattjoyce/executor/internal/collab"
	"github.com/mattjoyce/executor/internal/config"
	"github.com/mattjoyce/executor/internal/console"
	"github.com/mattjoyce/executor/internal/executor"
	"github.com/mattjoyce/executor/internal/history"
	"github.com/mattjoyce/executor/internal/i18n"
	"github.com/mattjoyce/executor/internal/log"
	"github.com/mattjoyce/executor/internal/modules"
	"github.com/mattjoyce/executor/internal/registry"
)

// session is everything one CLI invocation dispatches through.
type session struct {
	cfg      *config.Config
	reporter *console.Reporter
	history  *history.Store
	exec     *executor.Executor
	logger   *slog.Logger
}

type sessionIO struct {
	in  io.Reader
	out io.Writer
}

// streams is replaced in tests.
var streams = func() sessionIO {
	return sessionIO{in: os.Stdin, out: os.Stdout}
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	log.SetupWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// openSession loads configuration, applies overrides and wires the executor
// over the default module registry. extra is appended to the executor options.
func openSession(ctx context.Context, configPath string, sio sessionIO, overrides []func(*config.Config), extra ...executor.Option) (*session, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	logger := log.WithComponent("cli")

	s := &session{
		cfg:      cfg,
		reporter: console.New(sio.out, console.WithLocale(cfg.Locale), console.WithPrompter(prompterFor(sio))),
		logger:   logger,
	}

	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		if n, err := store.Prune(ctx, cfg.History.Retention); err != nil {
			logger.Warn("failed to prune history", "error", err)
		} else if n > 0 {
			logger.Debug("pruned history", "removed", n)
		}
		s.history = store
	}

	var storeOpts []config.StoreOption
	if cfg.VerifyIntegrity {
		storeOpts = append(storeOpts, config.WithIntegrity())
	}
	store := config.NewStore(cfg.ConfigRoot, storeOpts...)
	resolver := collab.NewResolver(store,
		collab.WithBuiltins(modules.Builtins()),
		collab.WithLimits(cfg.Collaborator.Timeout, cfg.Collaborator.MaxStderrBytes),
	)

	opts := []executor.Option{
		executor.WithConfig(store),
		executor.WithCollaborators(resolver),
		executor.WithPolicy(cfg.FailurePolicy()),
		executor.WithLogger(log.WithComponent("executor")),
	}
	if s.history != nil {
		opts = append(opts, executor.WithHistory(s.history))
	}
	s.exec = executor.New(registry.Default, s.reporter, append(opts, extra...)...)

	logger.Debug("session ready",
		"config", cfg.SourceFile,
		"config_root", cfg.ConfigRoot,
		"modules", registry.Default.Len(),
		"history", cfg.History.Enabled,
	)
	return s, nil
}

// prompterFor answers path prompts through a text input on terminals and
// line by line otherwise.
func prompterFor(sio sessionIO) console.Prompter {
	if f, ok := sio.in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return console.NewTUIPrompter()
	}
	return console.NewLinePrompter(sio.in, sio.out)
}

// Close prints the session tally and closes the history database.
func (s *session) Close() {
	if s.exec.Commands() > 0 {
		s.reporter.Finished(s.reporter.Localize(i18n.KeyCommands, s.exec.Commands()))
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("failed to close history", "error", err)
		}
	}
}
