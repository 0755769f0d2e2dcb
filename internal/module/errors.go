package module

import (
	"fmt"

	"github.com/mattjoyce/executor/internal/fsutil"
)

// InvalidSourceError reports a missing source or one of the wrong kind.
type InvalidSourceError struct {
	Expected fsutil.Kind
	Path     string
	Err      error
}

func (e *InvalidSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid source %q: expected %s: %v", e.Path, e.Expected, e.Err)
	}
	return fmt.Sprintf("invalid source %q: expected %s", e.Path, e.Expected)
}

func (e *InvalidSourceError) Unwrap() error { return e.Err }

// DuplicateIDError is returned when a module id is registered twice.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("module %q already registered", e.ID)
}

// NotFoundError is returned when no module has the requested id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module %q not found", e.ID)
}

// ConfigurationMissingError is returned when a module needs its configuration file and it is absent.
type ConfigurationMissingError struct {
	ID   string
	Path string
	Err  error
}

func (e *ConfigurationMissingError) Error() string {
	return fmt.Sprintf("module %q requires configuration %s", e.ID, e.Path)
}

func (e *ConfigurationMissingError) Unwrap() error { return e.Err }

// CollaboratorError wraps an opaque failure from the codec boundary.
type CollaboratorError struct {
	ID          string
	Source      string
	Destination string
	Stderr      string
	Err         error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("module %q failed on %s: %v", e.ID, e.Source, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
