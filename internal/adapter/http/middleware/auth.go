package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iho/rideledger/internal/domain"
	"github.com/iho/rideledger/internal/infrastructure/auth"
)

const (
	// AccountIDHeader carries the caller in header identity mode.
	AccountIDHeader = "X-Account-ID"
	// AccountRoleHeader carries the caller's role in header identity mode.
	AccountRoleHeader = "X-Account-Role"
)

// AuthMiddleware verifies the bearer token with authenticator and stores the
// principal in the request context.
func AuthMiddleware(authenticator auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthenticated(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthenticated(w, "invalid authorization header format")
				return
			}

			p, err := authenticator.Authenticate(r.Context(), parts[1])
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, domain.ErrExpiredToken) {
					msg = "token has expired"
				}
				unauthenticated(w, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(domain.ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// HeaderIdentity trusts the X-Account-ID and X-Account-Role headers. It is
// meant for local development behind a trusted proxy only.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(AccountIDHeader))
		if id == "" {
			unauthenticated(w, "missing "+AccountIDHeader+" header")
			return
		}

		p := domain.Principal{
			AccountID: id,
			Role:      domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(AccountRoleHeader)))),
		}
		next.ServeHTTP(w, r.WithContext(domain.ContextWithPrincipal(r.Context(), p)))
	})
}

func unauthenticated(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "unauthenticated", message, "")
}
