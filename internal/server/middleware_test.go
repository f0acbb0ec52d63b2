package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderStableID, "user-42")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")
	req.Header.Set(HeaderPlatform, "android")
	req.Header.Set(HeaderAppVersion, "3.2.1")
	req.Header.Set("X-Axis-Cohort", "beta, staff")

	ctx := ContextFromRequest(req)
	assert.Equal(t, domain.StableID("user-42"), ctx.StableID())
	assert.Equal(t, "pt-BR", ctx.Locale())
	assert.Equal(t, "android", ctx.Platform())
	assert.Equal(t, domain.NewVersion(3, 2, 1), ctx.Version())

	cohort, ok := ctx.Axis("cohort")
	require.True(t, ok)
	assert.Equal(t, []string{"beta", "staff"}, cohort)
}

func TestContextFromRequest_Fallbacks(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "stable_id", Value: "cookie-id"})
	req.Header.Set(HeaderLocale, "fr-FR")
	req.Header.Set("Accept-Language", "de-DE")
	req.Header.Set(HeaderAppVersion, "not-a-version")

	ctx := ContextFromRequest(req)
	assert.Equal(t, domain.StableID("cookie-id"), ctx.StableID())
	assert.Equal(t, "fr-FR", ctx.Locale())
	assert.Equal(t, domain.Version{}, ctx.Version())
}

func TestContextMiddleware(t *testing.T) {
	var got domain.Context
	var found bool
	handler := ContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = EvalContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderStableID, "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, found)
	assert.Equal(t, domain.StableID("abc"), got.StableID())

	_, found = EvalContext(req.Context())
	assert.False(t, found)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("info", "json", &buf)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"path":"/brew"`)
}
