package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"nextlogin/internal/apperr"
	"nextlogin/internal/token"
)

type contextKey string

const (
	claimsKey    contextKey = "sessionClaims"
	requestIDKey contextKey = "requestID"
)

// sessionCookieName is the HTTP-only cookie carrying the session token.
const sessionCookieName = "auth-token"

// RequestID tags every request with an id, echoed in the X-Request-ID
// header for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth wraps a handler so it only runs with a valid session.
// The token is taken from the Authorization header when present,
// falling back to the session cookie.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			if cookie, err := r.Cookie(sessionCookieName); err == nil {
				tokenString = cookie.Value
			}
		}
		if tokenString == "" {
			apperr.Write(w, apperr.Unauthorized("Unauthorized"))
			return
		}

		claims, ok := s.tokens.VerifySession(tokenString)
		if !ok {
			apperr.Write(w, apperr.Unauthorized("Unauthorized"))
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// sessionClaims returns the authenticated claims placed on the
// context by requireAuth.
func sessionClaims(ctx context.Context) *token.SessionClaims {
	claims, _ := ctx.Value(claimsKey).(*token.SessionClaims)
	return claims
}
