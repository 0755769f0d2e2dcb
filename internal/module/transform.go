package module

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/executor/internal/fsutil"
)

// DestinationRule computes the default destination for a source.
type DestinationRule func(arg *Argument) string

// Suffix returns a rule appending ext to the source path.
func Suffix(ext string) DestinationRule {
	return func(arg *Argument) string { return arg.Source + ext }
}

// Transform returns the standard direct forward: validate the source, resolve the
// destination, echo both, then time a call into the module's collaborator.
// inputs are secondary paths that must be set and exist with their kind; they
// are bound into the collaborator when it implements ParamBinder.
func Transform(expectDirectory bool, destination DestinationRule, inputs ...Prompt) DirectFunc {
	return func(ctx context.Context, env *Env, arg *Argument) error {
		if err := IsValidSource(arg, expectDirectory); err != nil {
			return err
		}

		params := make(map[string]string, len(inputs))
		for _, in := range inputs {
			v, ok := arg.Get(in.Field)
			if !ok || v == "" {
				return &InvalidSourceError{Expected: in.Kind, Err: fmt.Errorf("%s is not set", in.Field)}
			}
			if !fsutil.Is(v, in.Kind) {
				return &InvalidSourceError{Expected: in.Kind, Path: v}
			}
			params[in.Field] = v
		}

		arg.DefinedOrDefault(FieldDestination, destination(arg))
		dst, _ := arg.Destination()

		env.Reporter.Obtained(arg.Source)
		env.Reporter.Output(dst)

		c, err := env.Collaborator(ctx)
		if err != nil {
			return err
		}
		if b, ok := c.(ParamBinder); ok && len(params) > 0 {
			c = b.Bind(params)
		}

		env.Timer.StartSafe()
		defer env.Timer.StopSafe()

		if err := c.Transform(ctx, arg.Source, dst); err != nil {
			var ce *CollaboratorError
			if errors.As(err, &ce) {
				return err
			}
			return &CollaboratorError{ID: env.Module.ID(), Source: arg.Source, Destination: dst, Err: err}
		}
		return nil
	}
}

// ReplaceExt returns a rule swapping the source extension for ext.
func ReplaceExt(ext string) DestinationRule {
	return func(arg *Argument) string {
		return strings.TrimSuffix(arg.Source, filepath.Ext(arg.Source)) + ext
	}
}
