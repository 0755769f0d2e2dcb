package inspect

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/executor/internal/history"
)

func TestBuildReportRendersEntryAndOutputs(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	store, err := history.Open(context.Background(), filepath.Join(tmpDir, "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	dst := filepath.Join(tmpDir, "rock.png")
	if err := os.WriteFile(dst, []byte("png"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := &history.Entry{
		Module:      "texture.decode",
		Mode:        history.ModeDirect,
		Source:      filepath.Join(tmpDir, "rock.tex"),
		Destination: dst,
		Status:      history.StatusFailed,
		Attempted:   1,
		Error:       "collaborator failed",
		Stderr:      "line one\nline two\n",
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
	}
	if err := store.Record(context.Background(), e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	out, err := BuildReport(context.Background(), store, e.ID)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	for _, want := range []string{
		"Invocation Report",
		"Module      : texture.decode (direct)",
		"Status      : failed",
		"Entries     : 0 of 1 succeeded",
		"Duration    : 2s",
		dst + " (present)",
		"  line two",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Run ID") {
		t.Errorf("direct entry should not show a run id:\n%s", out)
	}

	raw, err := BuildJSONReport(context.Background(), store, e.ID)
	if err != nil {
		t.Fatalf("BuildJSONReport: %v", err)
	}
	var report Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(report.Outputs) != 1 || !report.Outputs[0].Exists {
		t.Fatalf("outputs = %+v, want one present output", report.Outputs)
	}
}

func TestBuildReportUnknownID(t *testing.T) {
	t.Parallel()

	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := BuildReport(context.Background(), store, "missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}
	if _, err := BuildReport(context.Background(), store, " "); err == nil {
		t.Fatal("expected error for empty id")
	}
}
