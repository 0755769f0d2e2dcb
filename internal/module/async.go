package module

import (
	"context"
	"fmt"
)

// PromptedAsync is the standard async forward. Every declared prompt whose
// parameter is missing is asked for through the reporter, then the module's
// direct forward runs with the completed argument.
func PromptedAsync(ctx context.Context, env *Env, arg AsyncArgument) error {
	a := arg.Argument()
	for _, p := range env.Module.Prompts() {
		if v, ok := a.Get(p.Field); ok && v != "" {
			continue
		}
		v, err := env.Reporter.Path(ctx, p.Message, p.Kind)
		if err != nil {
			return fmt.Errorf("module %q: read %s: %w", env.Module.ID(), p.Field, err)
		}
		a.Set(p.Field, v)
	}
	err := env.Module.Direct()(ctx, env, a)
	if dest, ok := a.Destination(); ok {
		env.SetDestination(dest)
	}
	return err
}
