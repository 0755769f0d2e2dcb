package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattjoyce/executor/internal/console"
	"github.com/mattjoyce/executor/internal/history"
	"github.com/mattjoyce/executor/internal/inspect"
)

func runHistoryNoun(args []string) int {
	if len(args) < 1 {
		printHistoryNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printHistoryNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: executor history list [--module ID] [--limit N] [--json] [--config PATH]")
			return 0
		}
		return runHistoryList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: executor history show <id|run_id> [--json] [--config PATH]")
			fmt.Println("Show one recorded invocation and whether its output is still on disk.")
			return 0
		}
		return runHistoryShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown history action: %s\n", action)
		return 1
	}
}

func printHistoryNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: executor history <action>")
	fmt.Fprintln(w, "Actions: list, show")
}

func openHistory(ctx context.Context, configPath string) (*history.Store, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (history.enabled: false)")
	}
	return history.Open(ctx, cfg.History.Path)
}

func runHistoryList(args []string) int {
	var configPath, moduleID string
	var limit int
	var jsonOut bool

	fs := flag.NewFlagSet("history list", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.StringVar(&moduleID, "module", "", "Only show this module")
	fs.IntVar(&limit, "limit", 20, "Maximum entries")
	fs.BoolVar(&jsonOut, "json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	store, err := openHistory(ctx, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		return 1
	}
	defer store.Close()

	entries, err := store.Recent(ctx, history.Filter{Module: moduleID, Limit: limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read history: %v\n", err)
		return 1
	}

	if jsonOut {
		if entries == nil {
			entries = []history.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	renderHistory(os.Stdout, entries)
	return 0
}

func renderHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No recorded invocations.")
		return
	}
	theme := console.NewTheme(w)
	for _, e := range entries {
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		status := theme.Finished.Render(string(e.Status))
		if e.Status == history.StatusFailed {
			status = theme.Error.Render(string(e.Status))
		}
		counts := ""
		if e.Mode == history.ModeBatch {
			counts = fmt.Sprintf(" %d/%d", e.Succeeded, e.Attempted)
		}
		fmt.Fprintf(w, "%s  %s  %-18s %-6s %s%s  %s\n",
			theme.Dim.Render(id),
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Module,
			e.Mode,
			status,
			counts,
			theme.Dim.Render(e.Duration().Round(time.Millisecond).String()),
		)
		fmt.Fprintf(w, "          %s\n", e.Source)
		if e.Error != "" {
			fmt.Fprintf(w, "          %s\n", theme.Error.Render(strings.SplitN(e.Error, "\n", 2)[0]))
		}
	}
}

func runHistoryShow(args []string) int {
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("history show", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output report in JSON")

	flags, positionals := splitFlagsAndPositionals(args, map[string]bool{"--config": true, "-config": true})
	if err := fs.Parse(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positionals) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: executor history show <id|run_id> [--json] [--config PATH]")
		return 1
	}

	ctx := context.Background()
	store, err := openHistory(ctx, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		return 1
	}
	defer store.Close()

	var report string
	if jsonOut {
		report, err = inspect.BuildJSONReport(ctx, store, positionals[0])
		report += "\n"
	} else {
		report, err = inspect.BuildReport(ctx, store, positionals[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		return 1
	}

	fmt.Print(report)
	return 0
}
