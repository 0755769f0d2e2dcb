package collab

import "context"

// Func adapts an in-process function to module.Collaborator.
type Func func(ctx context.Context, source, destination string) error

// Transform calls f.
func (f Func) Transform(ctx context.Context, source, destination string) error {
	return f(ctx, source, destination)
}
