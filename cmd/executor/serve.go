package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/executor/internal/api"
	"github.com/mattjoyce/executor/internal/config"
	"github.com/mattjoyce/executor/internal/events"
	"github.com/mattjoyce/executor/internal/executor"
	"github.com/mattjoyce/executor/internal/lock"
	"github.com/mattjoyce/executor/internal/log"
)

func runServe(args []string) int {
	var configPath, listen string

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file or directory")
	fs.StringVar(&listen, "listen", "", "Listen address (overrides api.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	var overrides []func(*config.Config)
	if listen != "" {
		overrides = append(overrides, func(c *config.Config) { c.API.Listen = listen })
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Path prompts cannot be answered over HTTP; async requests carry every parameter.
	sio := sessionIO{in: eofReader{}, out: os.Stdout}
	hub := events.NewHub(256)
	s, err := openSession(ctx, configPath, sio, overrides, executor.WithEvents(hub))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer s.Close()

	logger := log.WithComponent("main")
	logger.Info("executor starting", "version", version, "config", s.cfg.SourceFile)

	lockPath := lock.PathFor(s.cfg.History.Path)
	instance, err := lock.Acquire(lockPath)
	if err != nil {
		logger.Error("failed to acquire instance lock (another server may be running)", "path", lockPath, "error", err)
		return 1
	}
	defer instance.Release()
	logger.Info("acquired instance lock", "path", lockPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	server := api.New(api.Config{Listen: s.cfg.API.Listen, Token: s.cfg.API.Token}, s.exec, hub, log.WithComponent("api"))
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("api: %w", err)
		}
		close(errCh)
	}()
	if s.cfg.API.Token == "" {
		logger.Warn("API token not set; every route is unauthenticated", "listen", s.cfg.API.Listen)
	}
	logger.Info("executor serving (press Ctrl+C to stop)", "listen", s.cfg.API.Listen, "modules", s.exec.Registry().Len())

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		<-errCh
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("component failed", "error", err)
			return 1
		}
	}

	logger.Info("executor stopped", "commands", s.exec.Commands())
	return 0
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, errors.New("no interactive input while serving") }
