package api

import (
	"github.com/mattjoyce/executor/internal/filter"
	"github.com/mattjoyce/executor/internal/module"
)

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ModulesLoaded    int    `json:"modules_loaded"`
	CommandsExecuted int    `json:"commands_executed"`
}

// ModuleSummary describes one registered module.
type ModuleSummary struct {
	ID                    string          `json:"id"`
	Description           string          `json:"description,omitempty"`
	Enabled               bool            `json:"enabled"`
	Option                *int            `json:"option,omitempty"`
	Filter                *filter.Filter  `json:"filter,omitempty"`
	ConfigurationFile     string          `json:"configuration_file"`
	RequiresConfiguration bool            `json:"requires_configuration"`
	Batch                 bool            `json:"batch"`
	Async                 bool            `json:"async"`
	Prompts               []module.Prompt `json:"prompts,omitempty"`
}

// ModuleListResponse is returned by GET /modules, in registration order.
type ModuleListResponse struct {
	Modules []ModuleSummary `json:"modules"`
}

// ClassifyRequest is the JSON body for POST /classify.
type ClassifyRequest struct {
	Path string `json:"path"`
}

// ClassifyResponse lists the modules applicable to a path.
type ClassifyResponse struct {
	Path    string   `json:"path"`
	Kind    string   `json:"kind,omitempty"`
	Modules []string `json:"modules"`
}

// DirectResponse is returned by POST /modules/{id}/direct and /async.
type DirectResponse struct {
	Module      string `json:"module"`
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	Status      string `json:"status"`
}

// BatchFailure is one failed entry of a batch.
type BatchFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BatchResponse is returned by POST /modules/{id}/batch.
type BatchResponse struct {
	Module    string         `json:"module"`
	RunID     string         `json:"run_id"`
	Attempted int            `json:"attempted"`
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
	Aborted   bool           `json:"aborted"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

func summarize(d *module.Descriptor) ModuleSummary {
	s := ModuleSummary{
		ID:                    d.ID(),
		Description:           d.Description(),
		Enabled:               d.Enabled(),
		Filter:                d.Filter(),
		ConfigurationFile:     d.ConfigurationFile(),
		RequiresConfiguration: d.RequiresConfiguration(),
		Batch:                 true,
		Async:                 d.Async() != nil,
		Prompts:               d.Prompts(),
	}
	if opt, ok := d.Option(); ok {
		s.Option = &opt
	}
	return s
}
