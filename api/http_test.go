package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/livepeer/catalyst-ingest/config"
	"github.com/stretchr/testify/require"
)

func TestInitServer(t *testing.T) {
	router := NewIngestAPIRouter(config.Cli{APIToken: "token", WorkDir: t.TempDir()}, nil)

	for _, route := range []struct{ method, path string }{
		{"GET", "/ok"},
		{"GET", "/metrics"},
		{"POST", "/api/ingest"},
		{"GET", "/api/ingest"},
		{"GET", "/api/ingest/abc"},
		{"DELETE", "/api/ingest/abc"},
	} {
		handle, _, _ := router.Lookup(route.method, route.path)
		require.NotNil(t, handle, "%s %s", route.method, route.path)
	}
}

func TestIngestRoutesRequireAuth(t *testing.T) {
	router := NewIngestAPIRouter(config.Cli{APIToken: "token", WorkDir: t.TempDir()}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/ingest", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/ok", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "OK", rr.Body.String())
}
