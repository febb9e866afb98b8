package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/streakflow/internal/core"
)

// withRequestMetadata adds the client IP to ctx for audit logging. The
// address was already rewritten by TrustedRealIP.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithIPAddress(ctx, r.RemoteAddr)
}
