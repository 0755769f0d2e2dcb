package module

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
)

const (
	// FieldSource is the wire name of Argument.Source.
	FieldSource = "source"
	// FieldDestination is the optional output path every module understands.
	FieldDestination = "destination"
)

// Argument is the input of a direct forward: a required source plus optional named fields.
// An absent field and an empty one are different things.
type Argument struct {
	Source string
	fields map[string]string
}

// NewArgument returns an Argument for source with no optional fields set.
func NewArgument(source string) *Argument {
	return &Argument{Source: source, fields: map[string]string{}}
}

// Get returns the value of field and whether it is set.
func (a *Argument) Get(field string) (string, bool) {
	if field == FieldSource {
		return a.Source, true
	}
	v, ok := a.fields[field]
	return v, ok
}

// Set assigns field unconditionally.
func (a *Argument) Set(field, value string) *Argument {
	if field == FieldSource {
		a.Source = value
		return a
	}
	if a.fields == nil {
		a.fields = map[string]string{}
	}
	a.fields[field] = value
	return a
}

// Destination returns the destination field.
func (a *Argument) Destination() (string, bool) {
	return a.Get(FieldDestination)
}

// DefinedOrDefault sets field to value only when field is unset. Explicit values are never overwritten.
func (a *Argument) DefinedOrDefault(field, value string) {
	if _, ok := a.Get(field); ok {
		return
	}
	a.Set(field, value)
}

// Fields returns a copy of the optional fields.
func (a *Argument) Fields() map[string]string {
	return maps.Clone(a.fields)
}

// Names returns the set optional field names in sorted order.
func (a *Argument) Names() []string {
	names := make([]string, 0, len(a.fields))
	for k := range a.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (a *Argument) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(a.fields)+1)
	maps.Copy(out, a.fields)
	out[FieldSource] = a.Source
	return json.Marshal(out)
}

func (a *Argument) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("argument must be an object of strings: %w", err)
	}
	src, ok := raw[FieldSource]
	if !ok || src == "" {
		return fmt.Errorf("argument: %s is required", FieldSource)
	}
	delete(raw, FieldSource)
	a.Source = src
	a.fields = raw
	return nil
}

// BatchArgument is the input of a batch forward.
type BatchArgument struct {
	Directory string `json:"directory"`
}

// AsyncArgument is the input of a deferred, parameterized forward.
// Parameters become optional fields of the Argument handed to the direct forward.
type AsyncArgument struct {
	Source     string            `json:"source"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Argument converts the async input into a direct Argument.
func (a AsyncArgument) Argument() *Argument {
	arg := NewArgument(a.Source)
	for k, v := range a.Parameters {
		arg.Set(k, v)
	}
	return arg
}
