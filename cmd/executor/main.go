package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "module":
		return runModuleNoun(args)
	case "history":
		return runHistoryNoun(args)
	case "config":
		return runConfigNoun(args)

	// --- FORWARDS ---
	case "run", "direct":
		if hasHelpFlag(args) {
			printRunHelp()
			return 0
		}
		return runDirect(args)
	case "batch":
		if hasHelpFlag(args) {
			printBatchHelp()
			return 0
		}
		return runBatch(args)
	case "async":
		if hasHelpFlag(args) {
			printAsyncHelp()
			return 0
		}
		return runAsync(args)
	case "classify":
		if hasHelpFlag(args) {
			printClassifyHelp()
			return 0
		}
		return runClassify(args)
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "watch":
		if hasHelpFlag(args) {
			printWatchHelp()
			return 0
		}
		return runWatch(args)

	case "doctor":
		return runConfigCheck(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("executor %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = readBuildSetting("vcs.time")
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`executor - Dispatch registered processing modules over files and directories

Usage:
  executor <command> [args] [flags]
  executor <noun> <action> [flags]

Forwards:
  run <id> <source>          Run a module on one input (id may be omitted when exactly one module matches)
  batch <id> <directory>     Run a module on every matching entry of a directory
  async <id> <source> [k=v]  Run a module's deferred forward, prompting for missing inputs
  classify <path>            List the modules applicable to a path

Resources (Nouns):
  module    list, show       Registered modules
  history   list, show       Recorded invocations
  config    check, lock, show

Service:
  serve                      Expose the modules over HTTP
  watch                      Follow a running server's forwards live

General:
  version                    Show version information
  help                       Show this help message

Every command accepts --config PATH (file or directory containing executor.yaml).
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// splitFlagsAndPositionals lets flags follow positionals, which flag.Parse does not.
func splitFlagsAndPositionals(args []string, takesValue map[string]bool) ([]string, []string) {
	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positionals = append(positionals, arg)
			continue
		}

		flags = append(flags, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		if takesValue[arg] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return flags, positionals
}

func printRunHelp() {
	fmt.Println("Usage: executor run [<id>] <source> [--dest PATH] [--set FIELD=VALUE ...] [--config PATH]")
	fmt.Println("Run a module's direct forward. Without an id the source is classified and the single matching module is used.")
}

func printBatchHelp() {
	fmt.Println("Usage: executor batch <id> <directory> [--policy isolate|abort] [--config PATH]")
	fmt.Println("Run a module over every matching entry of a directory.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  Every attempted entry succeeded")
	fmt.Println("  1  One or more entries failed, or the batch could not start")
}

func printAsyncHelp() {
	fmt.Println("Usage: executor async <id> <source> [FIELD=PATH ...] [--config PATH]")
	fmt.Println("Run a module's deferred forward. Missing inputs are asked for interactively.")
}

func printClassifyHelp() {
	fmt.Println("Usage: executor classify <path> [--json] [--config PATH]")
}

func printServeHelp() {
	fmt.Println("Usage: executor serve [--listen ADDR] [--config PATH]")
	fmt.Println("Serve the module catalog and forwards over HTTP until interrupted.")
}

func printWatchHelp() {
	fmt.Println("Usage: executor watch [--api-url URL] [--token TOKEN] [--config PATH]")
	fmt.Println("Follow a running server's forward events and health in a live terminal view.")
	fmt.Println("Defaults come from api.listen and api.token in the configuration.")
}
