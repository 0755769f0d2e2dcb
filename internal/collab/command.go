package collab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"syscall"
	"time"

	"github.com/mattjoyce/executor/internal/log"
	"github.com/mattjoyce/executor/internal/module"
)

const (
	// DefaultTimeout bounds a single tool invocation.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxStderrBytes caps the amount of stderr captured from a tool.
	DefaultMaxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Command runs an external tool once per transformation. Args is an argv
// template: {source}, {destination} and any bound parameter name are replaced
// before the tool starts.
type Command struct {
	ID             string
	Args           []string
	Dir            string
	Env            []string
	Timeout        time.Duration
	Grace          time.Duration
	MaxStderrBytes int

	params map[string]string
	logger *slog.Logger
}

// Bind returns a copy of c with extra placeholder values.
func (c *Command) Bind(params map[string]string) module.Collaborator {
	cp := *c
	cp.params = make(map[string]string, len(c.params)+len(params))
	for k, v := range c.params {
		cp.params[k] = v
	}
	for k, v := range params {
		cp.params[k] = v
	}
	return &cp
}

// Transform runs the tool. A non-zero exit, a timeout or a cancelled context
// yields a *module.CollaboratorError carrying the captured stderr.
func (c *Command) Transform(ctx context.Context, source, destination string) error {
	argv, err := c.argv(source, destination)
	if err != nil {
		return &module.CollaboratorError{ID: c.ID, Source: source, Destination: destination, Err: err}
	}

	stderr, err := c.run(ctx, argv)
	if err != nil {
		return &module.CollaboratorError{
			ID:          c.ID,
			Source:      source,
			Destination: destination,
			Stderr:      stderr,
			Err:         err,
		}
	}
	return nil
}

func (c *Command) argv(source, destination string) ([]string, error) {
	if len(c.Args) == 0 {
		return nil, errors.New("no command configured")
	}
	values := map[string]string{
		module.FieldSource:      source,
		module.FieldDestination: destination,
	}
	for k, v := range c.params {
		values[k] = v
	}

	var missing string
	out := make([]string, len(c.Args))
	for i, arg := range c.Args {
		out[i] = placeholderPattern.ReplaceAllStringFunc(arg, func(m string) string {
			name := placeholderPattern.FindStringSubmatch(m)[1]
			v, ok := values[name]
			if !ok && missing == "" {
				missing = name
			}
			return v
		})
	}
	if missing != "" {
		return nil, fmt.Errorf("command placeholder {%s} has no value", missing)
	}
	return out, nil
}

// run starts the tool and waits for it, enforcing the timeout with SIGTERM
// followed by SIGKILL after the grace period. Returns the captured stderr.
func (c *Command) run(ctx context.Context, argv []string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	grace := c.Grace
	if grace <= 0 {
		grace = terminationGracePeriod
	}
	logger := c.logger
	if logger == nil {
		logger = log.WithComponent("collab").With("module", c.ID)
	}

	timeoutTimer := time.NewTimer(timeout)
	defer timeoutTimer.Stop()

	// Not CommandContext: termination is managed here so the tool gets SIGTERM first.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = grace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("spawning collaborator", "argv", argv, "timeout", timeout)

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start process: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var cause error
	select {
	case err := <-waitErr:
		stderrStr := c.truncate(stderr.String())
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				logger.Warn("collaborator exited with non-zero status", "exit_code", exitErr.ExitCode())
				return stderrStr, fmt.Errorf("%s exited with status %d", argv[0], exitErr.ExitCode())
			}
			return stderrStr, fmt.Errorf("wait for process: %w", err)
		}
		if stdout.Len() > 0 {
			logger.Debug("collaborator output", "stdout", c.truncate(stdout.String()))
		}
		return stderrStr, nil

	case <-timeoutTimer.C:
		logger.Warn("collaborator timed out, sending SIGTERM", "timeout", timeout)
		cause = fmt.Errorf("%s timed out after %v: %w", argv[0], timeout, context.DeadlineExceeded)

	case <-ctx.Done():
		logger.Warn("collaborator cancelled, sending SIGTERM")
		cause = fmt.Errorf("%s cancelled: %w", argv[0], ctx.Err())
	}

	if cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			logger.Error("failed to send SIGTERM", "error", err)
		}
	}

	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	select {
	case <-waitErr:
		logger.Info("collaborator exited after SIGTERM")
	case <-graceTimer.C:
		logger.Warn("collaborator did not exit after SIGTERM, sending SIGKILL")
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				logger.Error("failed to send SIGKILL", "error", err)
			}
		}
		<-waitErr
	}

	return c.truncate(stderr.String()), cause
}

// truncate caps s at MaxStderrBytes.
func (c *Command) truncate(s string) string {
	limit := c.MaxStderrBytes
	if limit <= 0 {
		limit = DefaultMaxStderrBytes
	}
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
