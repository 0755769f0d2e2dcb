// Package filter gates paths by expected kind and name pattern.
package filter

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/mattjoyce/executor/internal/fsutil"
)

// Filter pairs an expected path kind with a pattern. Both must hold for a match.
type Filter struct {
	Kind    fsutil.Kind
	Pattern *regexp.Regexp
}

// New compiles pattern and returns a Filter for kind.
func New(kind fsutil.Kind, pattern string) (*Filter, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid filter kind %q (valid: file, directory)", kind)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile filter pattern %q: %w", pattern, err)
	}
	return &Filter{Kind: kind, Pattern: re}, nil
}

// MustNew is New for statically known filters; it panics on error.
func MustNew(kind fsutil.Kind, pattern string) *Filter {
	f, err := New(kind, pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// File is shorthand for a file filter.
func File(pattern string) *Filter { return MustNew(fsutil.KindFile, pattern) }

// Directory is shorthand for a directory filter.
func Directory(pattern string) *Filter { return MustNew(fsutil.KindDirectory, pattern) }

// Match reports whether path exists with the filter's kind and matches its pattern.
func (f *Filter) Match(path string) bool {
	if f == nil || f.Pattern == nil {
		return false
	}
	kind, err := fsutil.Classify(path)
	if err != nil {
		return false
	}
	return kind == f.Kind && f.Pattern.MatchString(path)
}

// Match is the nil-tolerant form of (*Filter).Match. A nil filter never matches.
func Match(f *Filter, path string) bool {
	return f.Match(path)
}

func (f *Filter) String() string {
	if f == nil || f.Pattern == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s %s", f.Kind, f.Pattern.String())
}

type wireFilter struct {
	Kind    fsutil.Kind `json:"kind"`
	Pattern string      `json:"pattern"`
}

func (f *Filter) MarshalJSON() ([]byte, error) {
	if f == nil || f.Pattern == nil {
		return []byte("null"), nil
	}
	return json.Marshal(wireFilter{Kind: f.Kind, Pattern: f.Pattern.String()})
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var w wireFilter
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := New(w.Kind, w.Pattern)
	if err != nil {
		return err
	}
	*f = *parsed
	return nil
}
