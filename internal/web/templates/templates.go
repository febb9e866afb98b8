// Package templates renders the dashboard's server-side pages. The markup
// lives in the .templ files; run `templ generate` after editing them.
package templates

import (
	"net/url"

	"github.com/JonMunkholm/streakflow/internal/core"
	"github.com/JonMunkholm/streakflow/internal/streak"
)

// LoginPage is the data for Login.
type LoginPage struct {
	// Error is shown above the sign-in button, typically a denied domain.
	Error        string
	LoginEnabled bool
}

// TenantPipelines is one tenant's share of the dashboard.
type TenantPipelines struct {
	Tenant    string
	Pipelines []streak.Pipeline
}

// DashboardPage is the data for Dashboard.
type DashboardPage struct {
	User    *core.Principal
	Tenants []TenantPipelines
}

// FilterForm echoes the current filter back into the form.
type FilterForm struct {
	Query       string
	Partnership string
	Live        string // "", "true" or "false"
}

// PipelinePage is the data for PipelineDetail.
type PipelinePage struct {
	User   *core.Principal
	View   *core.PipelineView
	Filter FilterForm
}

// PipelinePath is the page URL of a pipeline.
func PipelinePath(key string) string {
	return "/pipelines/" + url.PathEscape(key)
}

func pipelineTitle(view *core.PipelineView) string {
	if view != nil && view.Pipeline != nil {
		return view.Pipeline.Name
	}
	return "Pipeline"
}

func displayName(u *core.Principal) string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2933}
.topbar{display:flex;justify-content:space-between;align-items:center;padding:.75rem 1.5rem;background:#102a43;color:#fff}
.topbar a{color:#fff;text-decoration:none}
main{max-width:72rem;margin:1.5rem auto;padding:0 1rem}
.card{background:#fff;border-radius:.5rem;padding:1rem 1.25rem;margin-bottom:1rem;box-shadow:0 1px 2px rgba(0,0,0,.08)}
.tenant{font-size:.75rem;font-weight:600;padding:.1rem .4rem;border-radius:.25rem;background:#d9e2ec}
.live{color:#2f8132;font-weight:600}
.alert{background:#fde8e8;border:1px solid #f5a3a3;padding:.75rem 1rem;border-radius:.5rem}
.muted{color:#627d98}
form.filters{display:flex;gap:.5rem;margin-bottom:1rem}
table{width:100%;border-collapse:collapse}
td,th{text-align:left;padding:.35rem .5rem;border-bottom:1px solid #e4e7eb}
`
