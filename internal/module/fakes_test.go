package module

import (
	"context"
	"fmt"
	"time"

	"github.com/mattjoyce/executor/internal/fsutil"
)

type recordingReporter struct {
	events  []string
	answers []string
}

func (r *recordingReporter) Obtained(path string)    { r.events = append(r.events, "obtained:"+path) }
func (r *recordingReporter) Output(path string)      { r.events = append(r.events, "output:"+path) }
func (r *recordingReporter) Finished(message string) { r.events = append(r.events, "finished:"+message) }
func (r *recordingReporter) Elapsed(time.Duration)   { r.events = append(r.events, "elapsed") }
func (r *recordingReporter) Error(err error)         { r.events = append(r.events, "error:"+err.Error()) }

func (r *recordingReporter) Path(_ context.Context, prompt string, _ fsutil.Kind) (string, error) {
	r.events = append(r.events, "prompt:"+prompt)
	if len(r.answers) == 0 {
		return "", fmt.Errorf("no answer")
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	return a, nil
}

func (r *recordingReporter) Localize(key string, args ...any) string {
	return fmt.Sprintf(key, args...)
}

type countingTimer struct {
	starts, stops int
}

func (t *countingTimer) StartSafe() { t.starts++ }
func (t *countingTimer) StopSafe() (time.Duration, bool) {
	t.stops++
	return 0, true
}

type funcCollaborator func(ctx context.Context, source, destination string) error

func (f funcCollaborator) Transform(ctx context.Context, source, destination string) error {
	return f(ctx, source, destination)
}

type staticResolver struct {
	c Collaborator
}

func (s staticResolver) Resolve(context.Context, *Descriptor) (Collaborator, error) {
	return s.c, nil
}
