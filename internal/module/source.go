package module

import (
	"github.com/mattjoyce/executor/internal/fsutil"
)

// IsValidSource fails with *InvalidSourceError when arg.Source does not exist
// or its kind does not match expectDirectory. It has no side effects.
func IsValidSource(arg *Argument, expectDirectory bool) error {
	expected := fsutil.KindFor(expectDirectory)
	if arg == nil || arg.Source == "" {
		return &InvalidSourceError{Expected: expected}
	}
	kind, err := fsutil.Classify(arg.Source)
	if err != nil {
		return &InvalidSourceError{Expected: expected, Path: arg.Source, Err: err}
	}
	if kind != expected {
		return &InvalidSourceError{Expected: expected, Path: arg.Source}
	}
	return nil
}
