package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/streakflow/internal/core"
	"github.com/JonMunkholm/streakflow/internal/logging"
	"github.com/JonMunkholm/streakflow/internal/store"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Cookies holding the in-flight login state.
const (
	stateCookie = "oidc_state"
	nonceCookie = "oidc_nonce"
	flowTTL     = 10 * time.Minute
)

// ErrLoginFlow covers a callback that does not match the login it claims
// to finish: missing or mismatched state, missing code, bad nonce.
var ErrLoginFlow = errors.New("invalid login flow")

// OIDCOptions configures the login flow.
type OIDCOptions struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Secure sets the Secure flag on the state and nonce cookies.
	Secure bool

	// Users receives a profile upsert on every successful login.
	Users store.UserStore
}

// OIDC runs the authorization-code flow against one issuer.
type OIDC struct {
	oauth2   oauth2.Config
	verifier *oidc.IDTokenVerifier
	users    store.UserStore
	secure   bool
}

// idClaims are the ID token claims copied into the session.
type idClaims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
	Nonce      string `json:"nonce"`

	// EmailVerified is nil when the issuer does not send the claim.
	EmailVerified *bool `json:"email_verified"`
}

// NewOIDC discovers the issuer's endpoints and keys.
func NewOIDC(ctx context.Context, opts OIDCOptions) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, opts.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover issuer %s: %w", opts.Issuer, err)
	}
	users := opts.Users
	if users == nil {
		users = store.NewMemoryStore()
	}
	return &OIDC{
		oauth2: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: opts.ClientID}),
		users:    users,
		secure:   opts.Secure,
	}, nil
}

// Start records a fresh state and nonce in short-lived cookies and returns
// the issuer URL to redirect the browser to.
func (o *OIDC) Start(w http.ResponseWriter) string {
	state := uuid.NewString()
	nonce := uuid.NewString()
	o.setFlowCookie(w, stateCookie, state, int(flowTTL.Seconds()))
	o.setFlowCookie(w, nonceCookie, nonce, int(flowTTL.Seconds()))
	return o.oauth2.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Finish completes a callback: it checks the state, exchanges the code,
// verifies the ID token and nonce, and stores the user's profile.
func (o *OIDC) Finish(ctx context.Context, r *http.Request) (*core.Principal, error) {
	if msg := r.URL.Query().Get("error"); msg != "" {
		return nil, fmt.Errorf("%w: issuer returned %q", ErrLoginFlow, msg)
	}
	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
		return nil, fmt.Errorf("%w: state mismatch", ErrLoginFlow)
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrLoginFlow)
	}

	token, err := o.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("no id_token field in oauth2 token")
	}
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id_token claims: %w", err)
	}
	nonce, err := r.Cookie(nonceCookie)
	if err != nil || nonce.Value == "" || nonce.Value != claims.Nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrLoginFlow)
	}

	// The email domain is the only authorization, so an address the issuer
	// marks unverified must not sign in. Issuers that omit the claim are
	// trusted.
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, fmt.Errorf("%w: email %q is not verified", ErrLoginFlow, claims.Email)
	}

	p := &core.Principal{
		Subject:         idToken.Subject,
		Email:           claims.Email,
		FirstName:       claims.GivenName,
		LastName:        claims.FamilyName,
		ProfileImageURL: claims.Picture,
	}
	if _, err := o.users.UpsertUser(ctx, store.User{
		ID:              p.Subject,
		Email:           p.Email,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		ProfileImageURL: p.ProfileImageURL,
	}); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	logging.FromContext(ctx).Info("login completed",
		"issuer", idToken.Issuer,
		"subject", p.Subject,
		"email", p.Email,
	)
	return p, nil
}

// ClearFlow expires the state and nonce cookies.
func (o *OIDC) ClearFlow(w http.ResponseWriter) {
	o.setFlowCookie(w, stateCookie, "", -1)
	o.setFlowCookie(w, nonceCookie, "", -1)
}

func (o *OIDC) setFlowCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/callback",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   o.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
