package auth

import (
	"net/http"
	"strings"

	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
)

const bearerPrefix = "Bearer "

// RequireAuth verifies the Bearer access token and attaches the caller's
// principal to the request context. Requests without a valid token are
// rejected with 401 before the handler runs.
func RequireAuth(tokens *TokenService, responder *httpx.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				responder.Error(w, r, httperr.Unauthorized(""))
				return
			}

			principal, err := tokens.VerifyAccess(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				responder.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(httpx.WithPrincipal(r.Context(), &principal)))
		})
	}
}

// RequireRole rejects authenticated callers whose role is not in the allow
// list. It must run after RequireAuth.
func RequireRole(responder *httpx.Responder, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := httpx.PrincipalFrom(r.Context())
			if principal == nil {
				responder.Error(w, r, httperr.Unauthorized(""))
				return
			}
			if !allowed[principal.Role] {
				responder.Error(w, r, httperr.Forbidden(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
