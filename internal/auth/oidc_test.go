package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/streakflow/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "streakflow-test"

// fakeIssuer is a minimal OpenID provider: discovery, JWKS and a token
// endpoint that mints an RS256 ID token for whatever nonce it was given.
type fakeIssuer struct {
	srv *httptest.Server
	key *rsa.PrivateKey

	mu    sync.Mutex
	nonce string
	extra map[string]any
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"issuer":                                f.srv.URL,
			"authorization_endpoint":                f.srv.URL + "/authorize",
			"token_endpoint":                        f.srv.URL + "/token",
			"jwks_uri":                              f.srv.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		nonce := f.nonce
		f.mu.Unlock()

		now := time.Now()
		claims := jwt.MapClaims{
			"iss":         f.srv.URL,
			"sub":         "user-123",
			"aud":         testClientID,
			"iat":         now.Unix(),
			"exp":         now.Add(time.Hour).Unix(),
			"nonce":       nonce,
			"email":       "jane@techorama.be",
			"given_name":  "Jane",
			"family_name": "Doe",
			"picture":     "https://img.example.com/jane.png",
		}
		f.mu.Lock()
		for k, v := range f.extra {
			claims[k] = v
		}
		f.mu.Unlock()
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "k1"
		idToken, err := tok.SignedString(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) setNonce(n string) {
	f.mu.Lock()
	f.nonce = n
	f.mu.Unlock()
}

// setClaim adds or overrides a claim in minted ID tokens.
func (f *fakeIssuer) setClaim(name string, value any) {
	f.mu.Lock()
	if f.extra == nil {
		f.extra = make(map[string]any)
	}
	f.extra[name] = value
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func startLogin(t *testing.T, o *OIDC) (state, nonce string, cookies []*http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	loc, err := url.Parse(o.Start(rec))
	require.NoError(t, err)

	q := loc.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "openid")
	return q.Get("state"), q.Get("nonce"), rec.Result().Cookies()
}

func callbackRequest(state string, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/callback?code=abc&state="+url.QueryEscape(state), nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func newTestOIDC(t *testing.T, issuer *fakeIssuer, users store.UserStore) *OIDC {
	t.Helper()
	o, err := NewOIDC(context.Background(), OIDCOptions{
		Issuer:      issuer.srv.URL,
		ClientID:    testClientID,
		RedirectURL: "http://localhost:5000/api/callback",
		Users:       users,
	})
	require.NoError(t, err)
	return o
}

func TestOIDC_LoginFlow(t *testing.T) {
	issuer := newFakeIssuer(t)
	users := store.NewMemoryStore()
	o := newTestOIDC(t, issuer, users)

	state, nonce, cookies := startLogin(t, o)
	require.NotEmpty(t, state)
	require.NotEmpty(t, nonce)
	require.Len(t, cookies, 2)
	issuer.setNonce(nonce)

	p, err := o.Finish(context.Background(), callbackRequest(state, cookies))
	require.NoError(t, err)
	assert.Equal(t, "user-123", p.Subject)
	assert.Equal(t, "jane@techorama.be", p.Email)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, "Doe", p.LastName)

	u, err := users.GetUser(context.Background(), "user-123")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/jane.png", u.ProfileImageURL)
}

func TestOIDC_StateMismatch(t *testing.T) {
	issuer := newFakeIssuer(t)
	o := newTestOIDC(t, issuer, nil)

	_, nonce, cookies := startLogin(t, o)
	issuer.setNonce(nonce)

	_, err := o.Finish(context.Background(), callbackRequest("forged", cookies))
	assert.ErrorIs(t, err, ErrLoginFlow)
}

func TestOIDC_NonceMismatch(t *testing.T) {
	issuer := newFakeIssuer(t)
	o := newTestOIDC(t, issuer, nil)

	state, _, cookies := startLogin(t, o)
	issuer.setNonce("replayed")

	_, err := o.Finish(context.Background(), callbackRequest(state, cookies))
	assert.ErrorIs(t, err, ErrLoginFlow)
}

func TestOIDC_EmailVerified(t *testing.T) {
	tests := []struct {
		name     string
		verified any // nil leaves the claim out
		wantErr  bool
	}{
		{"claim absent", nil, false},
		{"verified", true, false},
		{"unverified", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := newFakeIssuer(t)
			users := store.NewMemoryStore()
			o := newTestOIDC(t, issuer, users)
			if tt.verified != nil {
				issuer.setClaim("email_verified", tt.verified)
			}

			state, nonce, cookies := startLogin(t, o)
			issuer.setNonce(nonce)

			p, err := o.Finish(context.Background(), callbackRequest(state, cookies))
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "jane@techorama.be", p.Email)
				return
			}
			assert.ErrorIs(t, err, ErrLoginFlow)
			assert.Nil(t, p)
			_, err = users.GetUser(context.Background(), "user-123")
			assert.ErrorIs(t, err, store.ErrUserNotFound, "unverified login must not store a profile")
		})
	}
}

func TestOIDC_IssuerError(t *testing.T) {
	issuer := newFakeIssuer(t)
	o := newTestOIDC(t, issuer, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/callback?error=access_denied", nil)
	_, err := o.Finish(context.Background(), req)
	assert.ErrorIs(t, err, ErrLoginFlow)
}

func TestOIDC_ClearFlow(t *testing.T) {
	issuer := newFakeIssuer(t)
	o := newTestOIDC(t, issuer, nil)

	rec := httptest.NewRecorder()
	o.ClearFlow(rec)
	for _, c := range rec.Result().Cookies() {
		assert.Negative(t, c.MaxAge, c.Name)
	}
}

func TestNewOIDC_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewOIDC(context.Background(), OIDCOptions{Issuer: srv.URL, ClientID: testClientID})
	assert.Error(t, err)
}
