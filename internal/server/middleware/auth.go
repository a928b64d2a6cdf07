// Package middleware provides HTTP middleware for authentication and request tracing.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// serviceKey is the context key for storing the authenticated caller.
const serviceKey ContextKey = "service"

// TokenValidator is an interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (ServiceGetter, error)
}

// ServiceGetter is an interface for extracting the calling service from token claims.
type ServiceGetter interface {
	GetService() string
}

// AuthMiddleware creates middleware that validates bearer tokens and adds the caller to the request context.
// A nil validator disables authentication.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), serviceKey, claims.GetService())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken parses "Bearer <token>", accepting any casing of the scheme.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="report-renderer"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}` + "\n"))
}

// GetService extracts the authenticated service name from the request context.
func GetService(r *http.Request) (string, error) {
	service, ok := r.Context().Value(serviceKey).(string)
	if !ok {
		return "", fmt.Errorf("service not found in request context")
	}
	return service, nil
}
