package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattjoyce/executor/internal/config"
	"github.com/mattjoyce/executor/internal/fsutil"
	"github.com/mattjoyce/executor/internal/module"
	"github.com/mattjoyce/executor/internal/registry"
)

// stringsFlag collects a repeatable flag.
type stringsFlag []string

func (f *stringsFlag) String() string { return strings.Join(*f, ",") }

func (f *stringsFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func parseAssignment(kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("expected FIELD=VALUE, got %q", kv)
	}
	return strings.TrimSpace(k), v, nil
}

func runDirect(args []string) int {
	var configPath, dest string
	var sets stringsFlag

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.StringVar(&dest, "dest", "", "Destination path (defaults to the module's own rule)")
	fs.Var(&sets, "set", "Extra argument field as FIELD=VALUE (repeatable)")

	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"--config": true, "-config": true, "--dest": true, "-dest": true, "--set": true, "-set": true})
	if err := fs.Parse(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	var id, source string
	switch len(positionals) {
	case 1:
		source = positionals[0]
	case 2:
		id, source = positionals[0], positionals[1]
	default:
		printRunHelp()
		return 1
	}

	arg := module.NewArgument(source)
	for _, kv := range sets {
		k, v, err := parseAssignment(kv)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --set: %v\n", err)
			return 1
		}
		arg.Set(k, v)
	}
	if dest != "" {
		arg.Set(module.FieldDestination, dest)
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, configPath, streams(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer s.Close()

	if id == "" {
		matches := s.exec.Classify(source)
		if len(matches) != 1 {
			ids := make([]string, 0, len(matches))
			for _, d := range matches {
				ids = append(ids, d.ID())
			}
			if len(ids) == 0 {
				fmt.Fprintf(os.Stderr, "No module applies to %s; pass a module id\n", source)
			} else {
				fmt.Fprintf(os.Stderr, "Several modules apply to %s (%s); pass a module id\n", source, strings.Join(ids, ", "))
			}
			return 1
		}
		id = matches[0].ID()
	}

	// Forward errors are already shown through the reporter.
	if err := s.exec.Direct(ctx, id, arg); err != nil {
		return 1
	}
	return 0
}

func runBatch(args []string) int {
	var configPath, policy string

	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.StringVar(&policy, "policy", "", "Failure policy override (isolate, abort)")

	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"--config": true, "-config": true, "--policy": true, "-policy": true})
	if err := fs.Parse(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positionals) != 2 {
		printBatchHelp()
		return 1
	}
	id, dir := positionals[0], positionals[1]

	var overrides []func(*config.Config)
	if policy != "" {
		p, err := module.ParseFailurePolicy(policy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --policy: %v\n", err)
			return 1
		}
		overrides = append(overrides, func(c *config.Config) { c.Batch.FailurePolicy = string(p) })
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, configPath, streams(), overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer s.Close()

	result, err := s.exec.Batch(ctx, id, module.BatchArgument{Directory: dir})
	if err != nil {
		return 1
	}
	if len(result.Failures) > 0 || result.Aborted {
		return 1
	}
	return 0
}

func runAsync(args []string) int {
	var configPath string

	fs := flag.NewFlagSet("async", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")

	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"--config": true, "-config": true})
	if err := fs.Parse(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positionals) < 2 {
		printAsyncHelp()
		return 1
	}

	arg := module.AsyncArgument{Source: positionals[1], Parameters: map[string]string{}}
	for _, kv := range positionals[2:] {
		k, v, err := parseAssignment(kv)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid parameter: %v\n", err)
			return 1
		}
		arg.Parameters[k] = v
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, configPath, streams(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer s.Close()

	if err := s.exec.Async(ctx, positionals[0], arg); err != nil {
		return 1
	}
	return 0
}

type classifyOutput struct {
	Path    string   `json:"path"`
	Kind    string   `json:"kind,omitempty"`
	Modules []string `json:"modules"`
}

func runClassify(args []string) int {
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output as JSON")

	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"--config": true, "-config": true})
	if err := fs.Parse(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positionals) != 1 {
		printClassifyHelp()
		return 1
	}
	path := positionals[0]

	if _, err := loadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	out := classifyOutput{Path: path, Modules: []string{}}
	kind, err := fsutil.Classify(path)
	if err == nil {
		out.Kind = string(kind)
	}
	for _, d := range registry.Default.Classify(path) {
		out.Modules = append(out.Modules, d.ID())
	}

	if jsonOut {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("%s does not exist\n", path)
		} else {
			fmt.Printf("%s: %v\n", path, err)
		}
		return 1
	}
	if len(out.Modules) == 0 {
		fmt.Printf("No module applies to %s (%s)\n", path, kind)
		return 0
	}
	fmt.Printf("%s (%s):\n", path, kind)
	for _, id := range out.Modules {
		fmt.Printf("  %s\n", id)
	}
	return 0
}
