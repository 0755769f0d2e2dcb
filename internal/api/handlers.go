package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/executor/internal/executor"
	"github.com/mattjoyce/executor/internal/fsutil"
	"github.com/mattjoyce/executor/internal/module"
)

// maxBodyBytes caps request bodies; every request is a small JSON argument.
const maxBodyBytes = 1 << 20

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:           "ok",
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
		ModulesLoaded:    s.exec.Registry().Len(),
		CommandsExecuted: s.exec.Commands(),
	})
}

// handleListModules handles GET /modules.
func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	resp := ModuleListResponse{Modules: make([]ModuleSummary, 0, s.exec.Registry().Len())}
	for d := range s.exec.Registry().All() {
		resp.Modules = append(resp.Modules, summarize(d))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleGetModule handles GET /modules/{id}.
func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	d, err := s.exec.Registry().Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.writeForwardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summarize(d))
}

// handleClassify handles POST /classify.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	resp := ClassifyResponse{Path: req.Path, Modules: []string{}}
	if kind, err := fsutil.Classify(req.Path); err == nil {
		resp.Kind = string(kind)
	}
	for _, d := range s.exec.Registry().Classify(req.Path) {
		resp.Modules = append(resp.Modules, d.ID())
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleDirect handles POST /modules/{id}/direct with an Argument body.
func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var arg module.Argument
	if !s.decode(w, r, &arg) {
		return
	}

	if err := s.exec.Direct(r.Context(), id, &arg); err != nil {
		s.writeForwardError(w, err)
		return
	}
	dst, _ := arg.Destination()
	respondJSON(w, http.StatusOK, DirectResponse{Module: id, Source: arg.Source, Destination: dst, Status: "succeeded"})
}

// handleBatch handles POST /modules/{id}/batch.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var arg module.BatchArgument
	if !s.decode(w, r, &arg) {
		return
	}
	if arg.Directory == "" {
		s.writeError(w, http.StatusBadRequest, "directory is required")
		return
	}

	result, err := s.exec.Batch(r.Context(), id, arg)
	if err != nil && (result == nil || !result.Aborted) {
		s.writeForwardError(w, err)
		return
	}
	if result == nil {
		result = &module.BatchResult{}
	}

	resp := BatchResponse{
		Module:    id,
		RunID:     result.RunID,
		Attempted: result.Attempted,
		Succeeded: result.Succeeded,
		Skipped:   result.Skipped,
		Aborted:   result.Aborted,
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, BatchFailure{Path: f.Path, Error: f.Err.Error()})
	}
	status := http.StatusOK
	if len(resp.Failures) > 0 || resp.Aborted {
		status = http.StatusMultiStatus
	}
	respondJSON(w, status, resp)
}

// handleAsync handles POST /modules/{id}/async. Prompts cannot be answered
// over HTTP, so every declared prompt must be supplied in parameters.
func (s *Server) handleAsync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var arg module.AsyncArgument
	if !s.decode(w, r, &arg) {
		return
	}
	if arg.Source == "" {
		s.writeError(w, http.StatusBadRequest, "source is required")
		return
	}
	if d, err := s.exec.Registry().Lookup(id); err == nil {
		for _, p := range d.Prompts() {
			if arg.Parameters[p.Field] == "" {
				s.writeError(w, http.StatusBadRequest, "parameter "+p.Field+" is required")
				return
			}
		}
	}

	if err := s.exec.Async(r.Context(), id, arg); err != nil {
		s.writeForwardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DirectResponse{Module: id, Source: arg.Source, Status: "succeeded"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(into); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeForwardError maps the module error taxonomy to HTTP statuses.
func (s *Server) writeForwardError(w http.ResponseWriter, err error) {
	var (
		notFound *module.NotFoundError
		invalid  *module.InvalidSourceError
		missing  *module.ConfigurationMissingError
		collab   *module.CollaboratorError
	)
	switch {
	case errors.As(err, &notFound):
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: "not_found"})
	case errors.As(err, &invalid):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "invalid_source"})
	case errors.Is(err, executor.ErrDisabled):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "disabled"})
	case errors.Is(err, executor.ErrNoAsync):
		respondJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: err.Error(), Kind: "no_async"})
	case errors.As(err, &missing):
		respondJSON(w, http.StatusFailedDependency, ErrorResponse{Error: err.Error(), Kind: "configuration_missing"})
	case errors.As(err, &collab):
		respondJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error(), Kind: "collaborator", Stderr: collab.Stderr})
	default:
		s.logger.Error("forward failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// respondJSON is a helper to write JSON responses.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
