// Package middleware holds the HTTP middleware chain: authentication,
// correlation IDs, request logging, rate limiting, CORS, security
// headers and body size caps.
package middleware

import (
	"context"
	"net/http"

	"github.com/allez-events/server/internal/api/problem"
	"github.com/allez-events/server/internal/auth"
)

type contextKey string

const subjectKey contextKey = "auth_subject"

// Authenticate validates the bearer token and stores the parsed subject
// in the request context. Requests without a valid token get 401.
func Authenticate(manager *auth.JWTManager, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", err, env)
				return
			}

			claims, err := manager.Validate(token)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid token", err, env)
				return
			}

			subject, err := auth.ParseSubject(claims.Subject)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid token subject", err, env)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
		})
	}
}

// ContextWithSubject returns a context carrying the authenticated
// subject.
func ContextWithSubject(ctx context.Context, subject auth.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (auth.Subject, bool) {
	subject, ok := ctx.Value(subjectKey).(auth.Subject)
	return subject, ok
}
