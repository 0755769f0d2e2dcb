// Package inspect renders a recorded invocation for the terminal or as JSON.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattjoyce/executor/internal/history"
)

// Getter looks up a recorded invocation by entry id or batch run id.
type Getter interface {
	Get(ctx context.Context, id string) (history.Entry, error)
}

// Report is the structured JSON representation of an invocation report.
type Report struct {
	ID          string   `json:"id"`
	RunID       string   `json:"run_id,omitempty"`
	Module      string   `json:"module"`
	Mode        string   `json:"mode"`
	Status      string   `json:"status"`
	Source      string   `json:"source"`
	Destination string   `json:"destination,omitempty"`
	Outputs     []Output `json:"outputs"`
	Attempted   int      `json:"attempted"`
	Succeeded   int      `json:"succeeded"`
	StartedAt   string   `json:"started_at"`
	Duration    string   `json:"duration"`
	Error       string   `json:"error,omitempty"`
	Stderr      string   `json:"stderr,omitempty"`
}

// Output is a produced path and whether it is still present on disk.
type Output struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// BuildReport renders a terminal-friendly report for an invocation.
func BuildReport(ctx context.Context, g Getter, id string) (string, error) {
	report, err := gatherReportData(ctx, g, id)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Invocation Report\n")
	fmt.Fprintf(&out, "ID          : %s\n", report.ID)
	if report.RunID != "" {
		fmt.Fprintf(&out, "Run ID      : %s\n", report.RunID)
	}
	fmt.Fprintf(&out, "Module      : %s (%s)\n", report.Module, report.Mode)
	fmt.Fprintf(&out, "Status      : %s\n", report.Status)
	fmt.Fprintf(&out, "Source      : %s\n", report.Source)
	fmt.Fprintf(&out, "Entries     : %d of %d succeeded\n", report.Succeeded, report.Attempted)
	fmt.Fprintf(&out, "Started     : %s\n", report.StartedAt)
	fmt.Fprintf(&out, "Duration    : %s\n", report.Duration)

	if len(report.Outputs) == 0 {
		fmt.Fprintf(&out, "Outputs     : <none>\n")
	} else {
		fmt.Fprintf(&out, "Outputs     :\n")
		for _, o := range report.Outputs {
			state := "present"
			if !o.Exists {
				state = "missing"
			}
			fmt.Fprintf(&out, "  - %s (%s)\n", o.Path, state)
		}
	}

	if report.Error != "" {
		fmt.Fprintf(&out, "Error       : %s\n", report.Error)
	}
	if report.Stderr != "" {
		fmt.Fprintf(&out, "Stderr      :\n")
		for _, line := range strings.Split(strings.TrimSpace(report.Stderr), "\n") {
			fmt.Fprintf(&out, "  %s\n", line)
		}
	}

	return out.String(), nil
}

// BuildJSONReport returns the machine-readable JSON report.
func BuildJSONReport(ctx context.Context, g Getter, id string) (string, error) {
	report, err := gatherReportData(ctx, g, id)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(ctx context.Context, g Getter, id string) (*Report, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id is required")
	}

	e, err := g.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:          e.ID,
		RunID:       e.RunID,
		Module:      e.Module,
		Mode:        string(e.Mode),
		Status:      string(e.Status),
		Source:      e.Source,
		Destination: e.Destination,
		Outputs:     make([]Output, 0, 1),
		Attempted:   e.Attempted,
		Succeeded:   e.Succeeded,
		StartedAt:   e.StartedAt.Format(time.RFC3339),
		Duration:    e.Duration().Round(time.Millisecond).String(),
		Error:       e.Error,
		Stderr:      e.Stderr,
	}
	if e.Destination != "" {
		_, statErr := os.Stat(e.Destination)
		report.Outputs = append(report.Outputs, Output{Path: e.Destination, Exists: statErr == nil})
	}
	return report, nil
}
