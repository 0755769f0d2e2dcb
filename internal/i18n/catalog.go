// Package i18n loads the embedded message catalogs and hands out printers
// that format status lines for a locale.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

// Message keys.
const (
	KeyObtained      = "console.obtained"
	KeyOutput        = "console.output"
	KeyElapsed       = "console.elapsed"
	KeyError         = "console.error"
	KeyPromptInvalid = "console.prompt.invalid"
	KeyProcessed     = "batch.processed"
	KeyFailed        = "batch.failed"
	KeyAborted       = "batch.aborted"
	KeyCommands      = "session.commands"
)

type catalogFile struct {
	Locale    string                       `yaml:"locale"`
	Namespace string                       `yaml:"namespace"`
	Messages  map[string]string            `yaml:"messages"`
	Plurals   map[string]map[string]string `yaml:"plurals"`
}

// Bundle holds every locale's messages. Plural messages select their form on
// the first argument and map a CLDR selector ("one", "=0", "other") to a format.
type Bundle struct {
	locales map[string]map[string]string
	plurals map[string]map[string]map[string]string
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	defaultErr    error
)

// Default loads and registers the embedded catalogs once per process.
func Default() (*Bundle, error) {
	defaultOnce.Do(func() {
		defaultBundle, defaultErr = LoadFromFS(embeddedFS)
		if defaultErr == nil {
			defaultErr = defaultBundle.Register()
		}
	})
	return defaultBundle, defaultErr
}

// LoadFromFS loads catalog files laid out as locales/<locale>/<namespace>.yaml.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{
		locales: map[string]map[string]string{},
		plurals: map[string]map[string]map[string]string{},
	}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := b.addFile(path, file); err != nil {
			return nil, err
		}
	}

	if !b.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return b, nil
}

func (b *Bundle) addFile(path string, file catalogFile) error {
	localeFromPath := filepath.Base(filepath.Dir(path))
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", path)
	}
	if locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", path, locale, localeFromPath)
	}
	if file.Messages == nil {
		return fmt.Errorf("catalog %s: messages map is required", path)
	}

	msgs, ok := b.locales[locale]
	if !ok {
		msgs = map[string]string{}
		b.locales[locale] = msgs
	}
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", path)
		}
		if _, exists := msgs[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, key, locale)
		}
		msgs[key] = value
	}

	forms, ok := b.plurals[locale]
	if !ok {
		forms = map[string]map[string]string{}
		b.plurals[locale] = forms
	}
	for key, cases := range file.Plurals {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: plural key cannot be blank", path)
		}
		if _, exists := msgs[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, key, locale)
		}
		if _, exists := forms[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, key, locale)
		}
		if _, ok := cases["other"]; !ok {
			return fmt.Errorf("catalog %s: plural %q needs an \"other\" form", path, key)
		}
		forms[key] = cases
	}
	return nil
}

// selectCases orders plural cases for plural.Selectf with "other" last.
func selectCases(cases map[string]string) []any {
	selectors := make([]string, 0, len(cases))
	for sel := range cases {
		if sel != "other" {
			selectors = append(selectors, sel)
		}
	}
	sort.Strings(selectors)
	selectors = append(selectors, "other")

	out := make([]any, 0, 2*len(selectors))
	for _, sel := range selectors {
		out = append(out, sel, cases[sel])
	}
	return out
}

// Register registers all catalog messages with x/text/message.
func (b *Bundle) Register() error {
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if base, _ := tag.Base(); base.String() != "und" {
			if baseTag, err := language.Parse(base.String()); err == nil && baseTag != tag {
				tags = append(tags, baseTag)
			}
		}
		for key, value := range b.locales[locale] {
			for _, t := range tags {
				if err := message.SetString(t, key, value); err != nil {
					return fmt.Errorf("register %s/%s: %w", locale, key, err)
				}
			}
		}
		for key, cases := range b.plurals[locale] {
			for _, t := range tags {
				if err := message.Set(t, key, plural.Selectf(1, "%d", selectCases(cases)...)); err != nil {
					return fmt.Errorf("register %s/%s: %w", locale, key, err)
				}
			}
		}
	}
	return nil
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// Locales returns all available locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Missing returns keys present in the base locale but absent from locale.
func (b *Bundle) Missing(locale string) []string {
	var out []string
	have, havePlural := b.locales[locale], b.plurals[locale]
	for key := range b.locales[BaseLocale] {
		if _, ok := have[key]; !ok {
			out = append(out, key)
		}
	}
	for key := range b.plurals[BaseLocale] {
		if _, ok := havePlural[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Printer returns a printer for locale, falling back to the base locale for
// unknown or unparsable tags.
func (b *Bundle) Printer(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil || !b.supports(tag) {
		tag = language.MustParse(BaseLocale)
	}
	return message.NewPrinter(tag)
}

func (b *Bundle) supports(tag language.Tag) bool {
	if b.HasLocale(tag.String()) {
		return true
	}
	base, _ := tag.Base()
	for _, locale := range b.Locales() {
		t, err := language.Parse(locale)
		if err != nil {
			continue
		}
		if lb, _ := t.Base(); lb == base {
			return true
		}
	}
	return false
}
