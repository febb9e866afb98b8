package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/streakflow/internal/core"
	"github.com/go-chi/chi/v5"
)

// maxUpdateBodySize bounds the body of a field update.
const maxUpdateBodySize = 64 << 10

// handleListPipelines returns the pipelines visible to the caller.
func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.service.ListPipelines(r.Context(), core.PrincipalFromContext(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipelines)
}

// handleGetPipeline returns one pipeline.
func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	pipeline, err := s.service.GetPipeline(r.Context(), core.PrincipalFromContext(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}

// handleListBoxes returns the resolved boxes of a pipeline.
func (s *Server) handleListBoxes(w http.ResponseWriter, r *http.Request) {
	boxes, err := s.service.ListBoxes(r.Context(), core.PrincipalFromContext(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boxes)
}

// handleGroupedBoxes returns the filtered boxes of a pipeline grouped by
// partnership and stage.
func (s *Server) handleGroupedBoxes(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBoxFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	view, err := s.service.GroupedBoxes(r.Context(), core.PrincipalFromContext(r.Context()), chi.URLParam(r, "key"), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGetBox returns one resolved box.
func (s *Server) handleGetBox(w http.ResponseWriter, r *http.Request) {
	box, err := s.service.GetBox(r.Context(), core.PrincipalFromContext(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, box)
}

// updateFieldRequest is the body of a field update. PipelineKey is
// advisory; the box's own pipeline decides access.
type updateFieldRequest struct {
	Value       json.RawMessage `json:"value"`
	PipelineKey string          `json:"pipelineKey,omitempty"`
}

// successResponse acknowledges a write.
type successResponse struct {
	Success bool `json:"success"`
}

// handleUpdateBoxField sets one field on one box. The value is forwarded to
// Streak verbatim.
func (s *Server) handleUpdateBoxField(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBodySize)

	var req updateFieldRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: decode body: %w", core.ErrInvalidRequest, err))
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		s.respondError(w, r, fmt.Errorf("%w: trailing data after body", core.ErrInvalidRequest))
		return
	}
	if len(req.Value) == 0 {
		s.respondError(w, r, fmt.Errorf("%w: value is required", core.ErrInvalidRequest))
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	err := s.service.UpdateBoxField(ctx, core.PrincipalFromContext(ctx), core.FieldUpdate{
		BoxKey:       chi.URLParam(r, "key"),
		FieldKey:     chi.URLParam(r, "fieldKey"),
		Value:        req.Value,
		PipelineHint: req.PipelineKey,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleAuthUser returns the caller's profile.
func (s *Server) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.CurrentUser(r.Context(), core.PrincipalFromContext(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// healthResponse is the body of /healthz.
type healthResponse struct {
	Status   string              `json:"status"`
	Upstream *core.LimiterStatus `json:"upstream,omitempty"`
}

// handleHealth reports liveness and, when limited, upstream slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if l := s.service.Limiter(); l != nil {
		status := l.Status()
		resp.Upstream = &status
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseBoxFilter reads q, partnership and live from the query string. live
// accepts anything strconv.ParseBool does; empty means either.
func parseBoxFilter(r *http.Request) (core.BoxFilter, error) {
	q := r.URL.Query()
	f := core.BoxFilter{
		Query:       strings.TrimSpace(q.Get("q")),
		Partnership: strings.TrimSpace(q.Get("partnership")),
	}
	if raw := strings.TrimSpace(q.Get("live")); raw != "" {
		live, err := strconv.ParseBool(raw)
		if err != nil {
			return core.BoxFilter{}, fmt.Errorf("%w: live must be true or false", core.ErrInvalidRequest)
		}
		f.PartnerPageLive = &live
	}
	return f, nil
}
