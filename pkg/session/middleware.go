package session

import (
	"net/http"
	"strings"
)

// Middleware authenticates requests with a Bearer session token.
type Middleware struct {
	tokens   *TokenManager
	optional bool // If true, allow requests without auth
}

// NewMiddleware creates session middleware.
func NewMiddleware(tokens *TokenManager, optional bool) *Middleware {
	return &Middleware{tokens: tokens, optional: optional}
}

// Handler wraps an HTTP handler with session authentication
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		sess, err := m.tokens.Verify(parts[1])
		if err != nil {
			unauthorizedResponse(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
