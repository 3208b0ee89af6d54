package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// ─── TRIGGER AUTH ─────────────────────────────────────────────────────────────

// serviceClaims is the part of a Supabase JWT the trigger check reads.
type serviceClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// requireServiceRole is chi middleware that accepts only callers presenting a
// bearer JWT signed with the project secret and carrying role=service_role,
// which is what database webhooks send. It is a pass-through when no secret
// is configured.
func (s *Server) requireServiceRole(next http.Handler) http.Handler {
	if s.cfg.JWTSecret == "" {
		return next
	}
	secret := []byte(s.cfg.JWTSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			respondErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		var claims serviceClaims
		_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			s.logger.Warn("trigger: invalid token", "error", err, logField(r))
			respondErr(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if claims.Role != "service_role" {
			respondErr(w, http.StatusForbidden, "service role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ─── RECOVERY ─────────────────────────────────────────────────────────────────

// recoverer turns a panic into the standard 500 envelope so the trigger
// retries, and logs the stack.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			s.logger.Error("panic",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
				logField(r),
			)
			respondErr(w, http.StatusInternalServerError, fmt.Sprint(rec))
		}()

		next.ServeHTTP(w, r)
	})
}

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RESPONSE HELPERS ─────────────────────────────────────────────────────────

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes a standard JSON error envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// logField returns a slog.Attr using the request ID for correlation.
func logField(r *http.Request) slog.Attr {
	return slog.String("request_id", middleware.GetReqID(r.Context()))
}
