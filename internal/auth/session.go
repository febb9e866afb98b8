// Package auth issues and verifies dashboard sessions and runs the OpenID
// Connect login flow that creates them.
//
// A session is an HS256-signed JWT in an HttpOnly cookie. It carries the
// subject, email and display names of the user; domain and tenant checks
// happen later, on every request, in core.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/streakflow/internal/core"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession means the request carries no session cookie.
var ErrNoSession = errors.New("no session cookie")

// Claims is the session token payload.
type Claims struct {
	Email           string `json:"email"`
	FirstName       string `json:"given_name,omitempty"`
	LastName        string `json:"family_name,omitempty"`
	ProfileImageURL string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// SessionOptions configures Sessions.
type SessionOptions struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	Secure     bool
}

// Sessions signs and reads session cookies.
type Sessions struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// NewSessions returns a session manager. The secret must not be empty.
func NewSessions(opts SessionOptions) (*Sessions, error) {
	if opts.Secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.CookieName == "" {
		opts.CookieName = "streakflow_session"
	}
	return &Sessions{
		secret:     []byte(opts.Secret),
		ttl:        opts.TTL,
		cookieName: opts.CookieName,
		secure:     opts.Secure,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Token signs a session token for p.
func (s *Sessions) Token(p core.Principal) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:           p.Email,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		ProfileImageURL: p.ProfileImageURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Parse verifies a session token and returns its principal.
func (s *Sessions) Parse(raw string) (*core.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAuthenticationRequired, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: session has no subject", core.ErrAuthenticationRequired)
	}
	return &core.Principal{
		Subject:         claims.Subject,
		Email:           claims.Email,
		FirstName:       claims.FirstName,
		LastName:        claims.LastName,
		ProfileImageURL: claims.ProfileImageURL,
	}, nil
}

// Issue sets the session cookie for p.
func (s *Sessions) Issue(w http.ResponseWriter, p core.Principal) error {
	token, err := s.Token(p)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FromRequest reads and verifies the session cookie.
func (s *Sessions) FromRequest(r *http.Request) (*core.Principal, error) {
	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrAuthenticationRequired, ErrNoSession)
	}
	return s.Parse(c.Value)
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
