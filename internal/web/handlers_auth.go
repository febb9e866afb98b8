package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/streakflow/internal/auth"
	"github.com/JonMunkholm/streakflow/internal/core"
	"github.com/JonMunkholm/streakflow/internal/logging"
	"github.com/JonMunkholm/streakflow/internal/web/templates"
)

// loginFailedMessage is shown after a callback that could not be completed.
const loginFailedMessage = "Sign-in failed. Please try again."

// handleLoginPage renders the sign-in page. Signed-in users with an
// allowed domain go straight to the dashboard; others see why they were
// turned away.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := templates.LoginPage{LoginEnabled: s.oidc != nil}

	if p := core.PrincipalFromContext(r.Context()); p != nil {
		err := s.service.Authorize(p)
		if err == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		data.Error = core.FormatUserError(err)
	} else if r.URL.Query().Get("error") != "" {
		data.Error = loginFailedMessage
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Login(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render login page", "error", err)
	}
}

// handleLogin starts the OpenID Connect flow.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		s.respondError(w, r, core.ErrLoginUnavailable)
		return
	}
	http.Redirect(w, r, s.oidc.Start(w), http.StatusFound)
}

// handleCallback finishes the flow and issues the session cookie. The
// domain is not checked here; the gate denies foreign domains on every
// request and the login page explains why.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		s.respondError(w, r, core.ErrLoginUnavailable)
		return
	}
	log := logging.FromContext(r.Context())

	p, err := s.oidc.Finish(r.Context(), r)
	s.oidc.ClearFlow(w)
	if err != nil {
		if errors.Is(err, auth.ErrLoginFlow) {
			log.Warn("login callback rejected", "error", err)
		} else {
			log.Error("login callback failed", "error", err)
		}
		http.Redirect(w, r, "/login?error=1", http.StatusFound)
		return
	}

	if err := s.sessions.Issue(w, *p); err != nil {
		log.Error("issue session", "error", err)
		http.Redirect(w, r, "/login?error=1", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout clears the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}
