package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/streakflow/internal/core"
	"github.com/JonMunkholm/streakflow/internal/logging"
	"github.com/JonMunkholm/streakflow/internal/streak"
	"github.com/JonMunkholm/streakflow/internal/tenant"
	"github.com/JonMunkholm/streakflow/internal/web/templates"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// handleDashboard renders the visible pipelines grouped by tenant.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := core.PrincipalFromContext(r.Context())
	pipelines, err := s.service.ListPipelines(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.render(w, r, templates.Dashboard(templates.DashboardPage{
		User:    p,
		Tenants: groupByTenant(pipelines),
	}))
}

// handlePipelinePage renders one pipeline's grouped boxes.
func (s *Server) handlePipelinePage(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBoxFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	p := core.PrincipalFromContext(r.Context())
	view, err := s.service.GroupedBoxes(r.Context(), p, chi.URLParam(r, "key"), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	form := templates.FilterForm{Query: filter.Query, Partnership: filter.Partnership}
	if filter.PartnerPageLive != nil {
		form.Live = "false"
		if *filter.PartnerPageLive {
			form.Live = "true"
		}
	}
	s.render(w, r, templates.PipelineDetail(templates.PipelinePage{
		User:   p,
		View:   view,
		Filter: form,
	}))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}

// groupByTenant splits pipelines by their Tenant tag, BE before NL, keeping
// listing order inside each tenant. Tenants without pipelines are omitted.
func groupByTenant(pipelines []streak.Pipeline) []templates.TenantPipelines {
	byTenant := make(map[string][]streak.Pipeline)
	for _, pl := range pipelines {
		t := strings.ToUpper(pl.Tenant)
		byTenant[t] = append(byTenant[t], pl)
	}
	var out []templates.TenantPipelines
	for _, t := range tenant.All {
		if list := byTenant[t.String()]; len(list) > 0 {
			out = append(out, templates.TenantPipelines{Tenant: t.String(), Pipelines: list})
		}
	}
	return out
}
