// Package identity resolves the display name of a connecting chat client.
// Session issuance lives elsewhere; this package only reads tokens.
package identity

import (
	"context"
	"net/http"
	"strings"
)

const (
	TokenCookie = "token"
	TokenQuery  = "token"
)

// Identity is who a connection speaks as. An anonymous identity has an empty
// DisplayName; the relay then assigns a guest label.
type Identity struct {
	DisplayName   string
	Authenticated bool
}

var Anonymous = Identity{}

// Provider maps a session token to an identity. Unknown or empty tokens are
// anonymous, not errors; errors mean the provider itself is unavailable.
type Provider interface {
	Identify(ctx context.Context, token string) (Identity, error)
}

type ProviderFunc func(ctx context.Context, token string) (Identity, error)

func (f ProviderFunc) Identify(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}

// AnonymousProvider treats everyone as a guest. Used when auth is disabled.
var AnonymousProvider Provider = ProviderFunc(func(context.Context, string) (Identity, error) {
	return Anonymous, nil
})

// TokenFromRequest extracts the session token: Authorization bearer header
// first, then the token cookie, then the token query parameter. Browsers
// cannot set headers on a WebSocket handshake, hence the fallbacks.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		if token := strings.TrimSpace(c.Value); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(TokenQuery))
}
