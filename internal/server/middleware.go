package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

type contextKey string

const contextKeyEvalCtx contextKey = "pennant_eval_ctx"

// Headers read by ContextMiddleware.
const (
	HeaderStableID   = "X-Stable-ID"
	HeaderLocale     = "X-Locale"
	HeaderPlatform   = "X-Platform"
	HeaderAppVersion = "X-App-Version"
	// HeaderAxisPrefix + name carries a comma-separated axis value set.
	HeaderAxisPrefix = "X-Axis-"
)

// ContextMiddleware builds an evaluation context from request headers and
// stores it in the request context. The stable id falls back to the
// "stable_id" cookie; the locale falls back to the first Accept-Language tag.
func ContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), contextKeyEvalCtx, ContextFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ContextFromRequest extracts an evaluation context from r.
func ContextFromRequest(r *http.Request) domain.Context {
	id := r.Header.Get(HeaderStableID)
	if id == "" {
		if cookie, err := r.Cookie("stable_id"); err == nil {
			id = cookie.Value
		}
	}

	locale := r.Header.Get(HeaderLocale)
	if locale == "" {
		locale = firstLanguage(r.Header.Get("Accept-Language"))
	}

	evalCtx := domain.NewContext(domain.StableID(id)).
		WithLocale(locale).
		WithPlatform(r.Header.Get(HeaderPlatform))

	if raw := r.Header.Get(HeaderAppVersion); raw != "" {
		if v, err := domain.ParseVersion(raw); err == nil {
			evalCtx = evalCtx.WithVersion(v)
		}
	}

	for key, values := range r.Header {
		name, ok := strings.CutPrefix(key, HeaderAxisPrefix)
		if !ok || name == "" {
			continue
		}
		var set []string
		for _, v := range values {
			for part := range strings.SplitSeq(v, ",") {
				set = append(set, strings.TrimSpace(part))
			}
		}
		evalCtx = evalCtx.WithAxis(strings.ToLower(name), set...)
	}

	return evalCtx
}

// EvalContext returns the context stored by ContextMiddleware.
func EvalContext(ctx context.Context) (domain.Context, bool) {
	evalCtx, ok := ctx.Value(contextKeyEvalCtx).(domain.Context)
	return evalCtx, ok
}

func firstLanguage(header string) string {
	if header == "" {
		return ""
	}
	tag, _, _ := strings.Cut(header, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.TrimSpace(tag)
}

// RequestLogger logs each request with its status and duration.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			status := ww.Status()
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "admin request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
