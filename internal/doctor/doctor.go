// Package doctor validates the executor configuration against the module catalog.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattjoyce/executor/internal/collab"
	"github.com/mattjoyce/executor/internal/config"
	"github.com/mattjoyce/executor/internal/i18n"
	"github.com/mattjoyce/executor/internal/registry"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against registered modules.
type Doctor struct {
	cfg      *config.Config
	registry *registry.Registry
	lookPath func(string) (string, error)
}

// New creates a Doctor from a loaded config and module registry.
func New(cfg *config.Config, reg *registry.Registry) *Doctor {
	return &Doctor{cfg: cfg, registry: reg, lookPath: exec.LookPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	if d.validateConfigRoot(r) {
		d.validateModules(r)
		d.warnOrphanFiles(r)
		d.validateIntegrity(r)
	}
	d.warnLocale(r)
	d.warnHistory(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateConfigRoot reports whether the configuration root is a usable directory.
func (d *Doctor) validateConfigRoot(r *Result) bool {
	info, err := os.Stat(d.cfg.ConfigRoot)
	switch {
	case errors.Is(err, os.ErrNotExist):
		d.addError(r, "config_root", "config_root", fmt.Sprintf("configuration root %s does not exist", d.cfg.ConfigRoot))
		return false
	case err != nil:
		d.addError(r, "config_root", "config_root", err.Error())
		return false
	case !info.IsDir():
		d.addError(r, "config_root", "config_root", fmt.Sprintf("configuration root %s is not a directory", d.cfg.ConfigRoot))
		return false
	}
	return true
}

// validateModules checks every module's configuration file and collaborator command.
func (d *Doctor) validateModules(r *Result) {
	for m := range d.registry.All() {
		field := "modules." + m.ID()
		path := filepath.Join(d.cfg.ConfigRoot, m.ConfigurationFile())

		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			if m.RequiresConfiguration() && m.Enabled() {
				d.addError(r, "modules", field, fmt.Sprintf("module %q requires %s", m.ID(), path))
			}
			continue
		}
		if err != nil {
			d.addError(r, "modules", field, fmt.Sprintf("read %s: %v", path, err))
			continue
		}

		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			d.addError(r, "modules", field, fmt.Sprintf("%s is not a JSON object: %v", path, err))
			continue
		}

		var cc collab.CommandConfig
		if err := json.Unmarshal(data, &cc); err != nil {
			d.addError(r, "modules", field+".command", fmt.Sprintf("invalid collaborator settings: %v", err))
			continue
		}
		if cc.Timeout != "" {
			if t, err := time.ParseDuration(cc.Timeout); err != nil || t <= 0 {
				d.addError(r, "modules", field+".timeout", fmt.Sprintf("invalid timeout %q", cc.Timeout))
			}
		}
		if len(cc.Command) == 0 {
			if m.RequiresConfiguration() {
				d.addError(r, "modules", field+".command", fmt.Sprintf("module %q has no collaborator command", m.ID()))
			}
			continue
		}
		if _, err := d.lookPath(cc.Command[0]); err != nil {
			d.addWarning(r, "modules", field+".command",
				fmt.Sprintf("collaborator %q not found on PATH", cc.Command[0]))
		}
	}
}

// warnOrphanFiles flags configuration files no module reads.
func (d *Doctor) warnOrphanFiles(r *Result) {
	known := make(map[string]bool, d.registry.Len())
	for m := range d.registry.All() {
		known[filepath.Clean(m.ConfigurationFile())] = true
	}

	entries, err := os.ReadDir(d.cfg.ConfigRoot)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if !known[e.Name()] {
			d.addWarning(r, "modules", e.Name(), "configuration file does not belong to any registered module")
		}
	}
}

// validateIntegrity verifies module configuration against .checksums.
func (d *Doctor) validateIntegrity(r *Result) {
	result, err := config.VerifyIntegrity(d.cfg.ConfigRoot)
	if err != nil {
		d.addError(r, "integrity", "", err.Error())
		return
	}
	for _, msg := range result.Errors {
		d.addError(r, "integrity", "", msg)
	}
	for _, msg := range result.Warnings {
		d.addWarning(r, "integrity", "", msg)
	}
}

func (d *Doctor) warnLocale(r *Result) {
	bundle, err := i18n.Default()
	if err != nil {
		d.addError(r, "locale", "locale", err.Error())
		return
	}
	if !bundle.HasLocale(d.cfg.Locale) {
		d.addWarning(r, "locale", "locale",
			fmt.Sprintf("no catalog for %q; messages fall back to %s", d.cfg.Locale, i18n.BaseLocale))
	}
}

func (d *Doctor) warnHistory(r *Result) {
	if !d.cfg.History.Enabled {
		return
	}
	if d.cfg.History.Retention == 0 {
		d.addWarning(r, "history", "history.retention", "retention is 0; history is never pruned")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
