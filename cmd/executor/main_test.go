package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattjoyce/executor/internal/doctor"
	"github.com/mattjoyce/executor/internal/history"
	"github.com/mattjoyce/executor/internal/log"
	"github.com/mattjoyce/executor/internal/modules"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	// Drain concurrently so large outputs cannot fill the pipe buffer.
	stdoutCh := make(chan []byte)
	stderrCh := make(chan []byte)
	go func() { b, _ := io.ReadAll(stdoutR); stdoutCh <- b }()
	go func() { b, _ := io.ReadAll(stderrR); stderrCh <- b }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes := <-stdoutCh
	stderrBytes := <-stderrCh
	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func runCaptured(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int { return runCLI(args) })
}

// useStreams points session console output at a buffer for the test.
func useStreams(t *testing.T, in string) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	orig := streams
	streams = func() sessionIO { return sessionIO{in: strings.NewReader(in), out: &out} }
	t.Cleanup(func() { streams = orig })
	return &out
}

// writeWorkspace creates an executor.yaml with a module configuration root
// holding a valid file for every built-in module that needs one.
func writeWorkspace(t *testing.T) (configPath, root string) {
	t.Helper()
	dir := t.TempDir()
	root = filepath.Join(dir, "modules")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, d := range modules.All() {
		if !d.RequiresConfiguration() {
			continue
		}
		body := `{"command": ["sh", "-c", "cp \"$0\" \"$1\"", "{source}", "{destination}"], "timeout": "30s"}`
		if err := os.WriteFile(filepath.Join(root, d.ConfigurationFile()), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	configPath = filepath.Join(dir, "executor.yaml")
	yamlBody := `
log:
  level: error
config_root: modules
history:
  enabled: true
  path: data/history.db
  retention: 24h
`
	if err := os.WriteFile(configPath, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return configPath, root
}

func TestRunCLIUsage(t *testing.T) {
	code, stdout, _ := runCaptured(t)
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Fatalf("expected usage, got %q", stdout)
	}

	code, _, stderr := runCaptured(t, "bogus")
	if code != 1 || !strings.Contains(stderr, "Unknown command: bogus") {
		t.Fatalf("bogus command: exit=%d stderr=%q", code, stderr)
	}
}

func TestVersionJSON(t *testing.T) {
	orig := version
	version = "1.2.3"
	t.Cleanup(func() { version = orig })

	code, stdout, _ := runCaptured(t, "version", "--json")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("Unmarshal: %v (%q)", err, stdout)
	}
	if info.Version != "1.2.3" {
		t.Fatalf("version = %q", info.Version)
	}
}

func TestSplitFlagsAndPositionals(t *testing.T) {
	flags, positionals := splitFlagsAndPositionals(
		[]string{"digest", "a.bin", "--dest", "out.b3", "--json", "--config=x.yaml"},
		map[string]bool{"--dest": true},
	)
	if strings.Join(flags, " ") != "--dest out.b3 --json --config=x.yaml" {
		t.Fatalf("flags = %v", flags)
	}
	if strings.Join(positionals, " ") != "digest a.bin" {
		t.Fatalf("positionals = %v", positionals)
	}
}

func TestModuleListJSONFollowsMenuOrder(t *testing.T) {
	code, stdout, stderr := runCaptured(t, "module", "list", "--json")
	if code != 0 {
		t.Fatalf("exit = %d stderr=%q", code, stderr)
	}
	var rows []moduleRow
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(rows) != len(modules.All()) {
		t.Fatalf("rows = %d, want %d", len(rows), len(modules.All()))
	}
	if rows[0].ID != "archive.unpack" || rows[0].Option != "1" {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[len(rows)-1].ID != "digest" {
		t.Fatalf("last row = %+v", rows[len(rows)-1])
	}
}

func TestModuleShowUnknown(t *testing.T) {
	code, _, stderr := runCaptured(t, "module", "show", "nope")
	if code != 1 || !strings.Contains(stderr, "nope") {
		t.Fatalf("exit=%d stderr=%q", code, stderr)
	}
}

func TestConfigLockThenCheck(t *testing.T) {
	configPath, root := writeWorkspace(t)

	code, stdout, stderr := runCaptured(t, "config", "lock", "--config", configPath)
	if code != 0 {
		t.Fatalf("lock exit=%d stderr=%q", code, stderr)
	}
	if !strings.Contains(stdout, "Locked") {
		t.Fatalf("lock output = %q", stdout)
	}

	code, stdout, stderr = runCaptured(t, "config", "check", "--config", configPath, "--json")
	if code != 0 {
		t.Fatalf("check exit=%d stdout=%q stderr=%q", code, stdout, stderr)
	}
	var result doctor.Result
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid config, got %+v", result.Errors)
	}

	tampered := filepath.Join(root, modules.TextureDecode.ConfigurationFile())
	if err := os.WriteFile(tampered, []byte(`{"command": ["sh"]}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	code, stdout, _ = runCaptured(t, "config", "check", "--config", configPath)
	if code != 1 {
		t.Fatalf("tampered check exit = %d, output %q", code, stdout)
	}
	if !strings.Contains(stdout, "integrity") {
		t.Fatalf("expected integrity error, got %q", stdout)
	}
}

func TestRunDigestRecordsHistory(t *testing.T) {
	configPath, _ := writeWorkspace(t)
	console := useStreams(t, "")

	src := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	code, _, stderr := runCaptured(t, "run", "digest", src, "--config", configPath)
	if code != 0 {
		t.Fatalf("run exit=%d stderr=%q console=%q", code, stderr, console.String())
	}
	if _, err := os.Stat(src + ".b3"); err != nil {
		t.Fatalf("expected digest output: %v", err)
	}
	if !strings.Contains(console.String(), src+".b3") {
		t.Fatalf("console did not echo the output path: %q", console.String())
	}

	code, stdout, stderr := runCaptured(t, "history", "list", "--config", configPath, "--json")
	if code != 0 {
		t.Fatalf("history exit=%d stderr=%q", code, stderr)
	}
	var entries []history.Entry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(entries) != 1 || entries[0].Module != "digest" || entries[0].Status != history.StatusSucceeded {
		t.Fatalf("entries = %+v", entries)
	}

	code, stdout, _ = runCaptured(t, "history", "show", entries[0].ID, "--config", configPath)
	if code != 0 || !strings.Contains(stdout, "Module      : digest (direct)") {
		t.Fatalf("show exit=%d stdout=%q", code, stdout)
	}
}

func TestRunRejectsMissingSource(t *testing.T) {
	configPath, _ := writeWorkspace(t)
	console := useStreams(t, "")

	code, _, _ := runCaptured(t, "run", "digest", filepath.Join(t.TempDir(), "missing.bin"), "--config", configPath)
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(console.String(), "missing.bin") {
		t.Fatalf("console = %q", console.String())
	}
}

func TestBatchInvalidPolicy(t *testing.T) {
	code, _, stderr := runCaptured(t, "batch", "digest", t.TempDir(), "--policy", "sometimes")
	if code != 1 || !strings.Contains(stderr, "invalid failure policy") {
		t.Fatalf("exit=%d stderr=%q", code, stderr)
	}
}

func TestClassifyJSON(t *testing.T) {
	dir := t.TempDir()
	pak := filepath.Join(dir, "level.PAK")
	if err := os.WriteFile(pak, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	configPath, _ := writeWorkspace(t)

	code, stdout, _ := runCaptured(t, "classify", pak, "--json", "--config", configPath)
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	var out classifyOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Kind != "file" || len(out.Modules) != 1 || out.Modules[0] != "archive.unpack" {
		t.Fatalf("classify = %+v", out)
	}
}

func TestBaseURL(t *testing.T) {
	cases := map[string]string{
		":8080":          "http://localhost:8080",
		"127.0.0.1:9000": "http://127.0.0.1:9000",
	}
	for listen, want := range cases {
		if got := baseURL(listen); got != want {
			t.Errorf("baseURL(%q) = %q, want %q", listen, got, want)
		}
	}
}
