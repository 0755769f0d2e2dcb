// Package module declares processing modules: their descriptors, arguments,
// forward signatures and the error taxonomy shared by every forward.
package module

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattjoyce/executor/internal/filter"
	"github.com/mattjoyce/executor/internal/fsutil"
)

// DirectFunc processes a single input.
type DirectFunc func(ctx context.Context, env *Env, arg *Argument) error

// BatchFunc processes a directory. direct is the module's own direct forward,
// passed explicitly so batch routines never rely on an implicit receiver.
type BatchFunc func(ctx context.Context, env *Env, direct DirectFunc, arg BatchArgument) (*BatchResult, error)

// AsyncFunc runs a deferred, parameterized invocation.
type AsyncFunc func(ctx context.Context, env *Env, arg AsyncArgument) error

// Prompt declares a secondary input an async forward asks the user for when
// the parameter is not supplied.
type Prompt struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Kind    fsutil.Kind `json:"kind"`
}

// Descriptor is an immutable, registered module. Build it with New(id)...Build().
type Descriptor struct {
	id                    string
	description           string
	configurationFile     string
	requiresConfiguration bool
	direct                DirectFunc
	batch                 BatchFunc
	async                 AsyncFunc
	enabled               bool
	filter                *filter.Filter
	option                *int
	prompts               []Prompt
}

func (d *Descriptor) ID() string { return d.id }
func (d *Descriptor) Description() string { return d.description }
func (d *Descriptor) ConfigurationFile() string { return d.configurationFile }
func (d *Descriptor) RequiresConfiguration() bool { return d.requiresConfiguration }
func (d *Descriptor) Direct() DirectFunc { return d.direct }
func (d *Descriptor) Batch() BatchFunc { return d.batch }
func (d *Descriptor) Async() AsyncFunc { return d.async }
func (d *Descriptor) Enabled() bool { return d.enabled }
func (d *Descriptor) Filter() *filter.Filter { return d.filter }
func (d *Descriptor) Prompts() []Prompt { return append([]Prompt(nil), d.prompts...) }
func (d *Descriptor) String() string { return d.id }

// Option returns the menu ordering key, if any.
func (d *Descriptor) Option() (int, bool) {
	if d.option == nil {
		return 0, false
	}
	return *d.option, true
}

// Matches reports whether the module is enabled and its filter accepts path.
// Modules without a filter are reachable by id only.
func (d *Descriptor) Matches(path string) bool {
	return d.enabled && d.filter.Match(path)
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Builder collects the parts of a Descriptor. Build validates completeness.
type Builder struct {
	d Descriptor
}

// New starts a descriptor for id. Modules are enabled by default.
func New(id string) *Builder {
	return &Builder{d: Descriptor{id: strings.TrimSpace(id), enabled: true}}
}

func (b *Builder) Describe(text string) *Builder {
	b.d.description = text
	return b
}

func (b *Builder) Direct(fn DirectFunc) *Builder {
	b.d.direct = fn
	return b
}

func (b *Builder) Batch(fn BatchFunc) *Builder {
	b.d.batch = fn
	return b
}

func (b *Builder) Async(fn AsyncFunc) *Builder {
	b.d.async = fn
	return b
}

func (b *Builder) Filter(f *filter.Filter) *Builder {
	b.d.filter = f
	return b
}

func (b *Builder) Option(n int) *Builder {
	b.d.option = &n
	return b
}

func (b *Builder) Disabled() *Builder {
	b.d.enabled = false
	return b
}

// ConfigurationFile overrides the default "<id>.json" path, relative to the configuration root.
func (b *Builder) ConfigurationFile(path string) *Builder {
	b.d.configurationFile = path
	return b
}

// RequireConfiguration marks the configuration file as mandatory.
func (b *Builder) RequireConfiguration() *Builder {
	b.d.requiresConfiguration = true
	return b
}

func (b *Builder) Prompt(field, message string, kind fsutil.Kind) *Builder {
	b.d.prompts = append(b.d.prompts, Prompt{Field: field, Message: message, Kind: kind})
	return b
}

// Build validates the collected parts and returns the descriptor.
func (b *Builder) Build() (*Descriptor, error) {
	d := b.d
	if d.id == "" {
		return nil, fmt.Errorf("module id is required")
	}
	if !idPattern.MatchString(d.id) {
		return nil, fmt.Errorf("module id %q must match %s", d.id, idPattern)
	}
	if d.direct == nil {
		return nil, fmt.Errorf("module %q: direct forward is required", d.id)
	}
	if d.filter != nil && (d.filter.Pattern == nil || !d.filter.Kind.Valid()) {
		return nil, fmt.Errorf("module %q: filter is incomplete", d.id)
	}
	if d.configurationFile == "" {
		d.configurationFile = d.id + ".json"
	}
	if filepath.IsAbs(d.configurationFile) || strings.Contains(d.configurationFile, "..") {
		return nil, fmt.Errorf("module %q: configuration file must be relative to the configuration root: %s", d.id, d.configurationFile)
	}
	seen := make(map[string]struct{}, len(d.prompts))
	for _, p := range d.prompts {
		if p.Field == "" || p.Field == FieldSource {
			return nil, fmt.Errorf("module %q: prompt field %q is not allowed", d.id, p.Field)
		}
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("module %q: prompt %q has invalid kind %q", d.id, p.Field, p.Kind)
		}
		if _, dup := seen[p.Field]; dup {
			return nil, fmt.Errorf("module %q: prompt %q declared twice", d.id, p.Field)
		}
		seen[p.Field] = struct{}{}
	}
	d.prompts = append([]Prompt(nil), d.prompts...)
	return &d, nil
}

// MustBuild is Build for init-time declarations; it panics on error.
func (b *Builder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
