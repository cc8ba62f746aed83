package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/auth"
	"github.com/fusionbridge/fusion-bridge-core/internal/org"
)

// contextKey keeps request-context keys private to this package.
type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"

	// ctxKeyClaims holds the authenticated caller's token claims.
	ctxKeyClaims contextKey = "claims"
)

// requestIDMiddleware tags every request with an ID, honouring a
// client-supplied X-Request-ID when present.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

// loggingMiddleware emits one structured log line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	})
}

// recoveryMiddleware turns handler panics into 500 responses instead of
// dropping the connection.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panic",
					"error", v,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				respondInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Fallback CORS header values when the config leaves them empty.
const (
	defaultCORSMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	defaultCORSHeaders = "Authorization, Content-Type, X-Request-ID"
)

// corsMiddleware answers preflight requests and stamps CORS headers on
// responses to allowed origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", listOr(s.cfg.CORS.AllowedMethods, defaultCORSMethods))
			h.Set("Access-Control-Allow-Headers", listOr(s.cfg.CORS.AllowedHeaders, defaultCORSHeaders))
			h.Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// maxRequestBodySize caps request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

// bodySizeLimitMiddleware rejects oversized payloads before handlers
// read them.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates the Bearer token on protected routes and
// injects the caller's claims (user, organisation, role) into the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			respondUnauthorized(w, "authorization header is required")
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondUnauthorized(w, "authorization header must be a Bearer token")
			return
		}

		claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
		if err != nil {
			respondUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminMiddleware restricts a route to admin users. Must run after
// authMiddleware.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := callerClaims(r)
		if claims == nil || claims.Role != org.RoleAdmin {
			respondForbidden(w, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerClaims returns the authenticated caller's claims, or nil on
// unauthenticated routes.
func callerClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(ctxKeyClaims).(*auth.Claims)
	return claims
}

// callerOrgID returns the authenticated caller's organisation ID.
func callerOrgID(r *http.Request) string {
	if claims := callerClaims(r); claims != nil {
		return claims.OrganizationID
	}
	return ""
}

// originAllowed reports whether CORS permits the origin. An empty
// allow-list permits everything, for development setups.
func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.CORS.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// newRequestID returns 8 random bytes as hex.
func newRequestID() string {
	b := make([]byte, 8)
	//nolint:errcheck // crypto/rand.Read cannot fail on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// listOr renders a header value list, falling back when unconfigured.
func listOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}
