package httpapi_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/roniherschmann/visit-counter/internal/config"
	"github.com/roniherschmann/visit-counter/internal/core"
	"github.com/roniherschmann/visit-counter/internal/httpapi"
	"github.com/roniherschmann/visit-counter/internal/store"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func testConfig() config.Config {
	return config.Config{
		StoreBackend:       config.BackendMemory,
		TableName:          "visit-table",
		CORSAllowedOrigins: []string{"https://example.com"},
		VisitRateLimit:     100,
		VisitRateWindow:    time.Second,
	}
}

func newRouter(t *testing.T, cfg config.Config, s store.Store) http.Handler {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, time.November, 5, 12, 0, 0, 0, time.UTC))
	return httpapi.NewRouter(cfg, core.NewRecorder(s, core.WithClock(clock)), s)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw
}

func visitBody(hash string) string {
	return base64.StdEncoding.EncodeToString([]byte(`{"user_hash":"` + hash + `"}`))
}

func TestVisits(t *testing.T) {
	t.Parallel()

	t.Run("Scenario", func(t *testing.T) {
		s := store.NewMemory()
		h := newRouter(t, testConfig(), s)

		rw := do(t, h, http.MethodPost, "/visits", visitBody("abc123"))
		require.Equal(t, http.StatusOK, rw.Code)
		assert.Equal(t, "application/json", rw.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"visits":1}`, rw.Body.String())

		item, err := s.Get(context.Background(), "visit#Nov#2024")
		require.NoError(t, err)
		assert.Equal(t, []string{"abc123"}, item.UserHashes)

		rw = do(t, h, http.MethodPost, "/visits", visitBody("abc123"))
		require.Equal(t, http.StatusBadRequest, rw.Code)
		assert.JSONEq(t, `{"error":"visitor already exists"}`, rw.Body.String())

		rw = do(t, h, http.MethodGet, "/visits", "")
		require.Equal(t, http.StatusOK, rw.Code)
		assert.JSONEq(t, `{"visits":1}`, rw.Body.String())
	})

	t.Run("MissingBody", func(t *testing.T) {
		h := newRouter(t, testConfig(), store.NewMemory())
		rw := do(t, h, http.MethodPost, "/visits", "")
		require.Equal(t, http.StatusBadRequest, rw.Code)
		assert.JSONEq(t, `{"error":"missing event body"}`, rw.Body.String())
	})

	t.Run("PlainJSONBody", func(t *testing.T) {
		h := newRouter(t, testConfig(), store.NewMemory())
		rw := do(t, h, http.MethodPost, "/visits", `{"user_hash":"abc123"}`)
		require.Equal(t, http.StatusBadRequest, rw.Code)
		assert.Contains(t, rw.Body.String(), "malformed event body")
	})

	t.Run("TooLarge", func(t *testing.T) {
		h := newRouter(t, testConfig(), store.NewMemory())
		rw := do(t, h, http.MethodPost, "/visits", strings.Repeat("A", 128<<10))
		require.Equal(t, http.StatusBadRequest, rw.Code)
		assert.Equal(t, "application/json", rw.Header().Get("Content-Type"))
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		h := newRouter(t, testConfig(), store.NewMemory())
		rw := do(t, h, http.MethodGet, "/unknown", "")
		require.Equal(t, http.StatusBadRequest, rw.Code)
		assert.Equal(t, "application/json", rw.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":"Unsupported route: \"GET /unknown\""}`, rw.Body.String())
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		h := newRouter(t, testConfig(), store.NewMemory())
		rw := do(t, h, http.MethodDelete, "/visits", "")
		require.Equal(t, http.StatusBadRequest, rw.Code)
		assert.JSONEq(t, `{"error":"Unsupported route: \"DELETE /visits\""}`, rw.Body.String())
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.VisitRateLimit = 1
	cfg.VisitRateWindow = time.Hour
	h := newRouter(t, cfg, store.NewMemory())

	rw := do(t, h, http.MethodPost, "/visits", visitBody("first"))
	require.Equal(t, http.StatusOK, rw.Code)

	rw = do(t, h, http.MethodPost, "/visits", visitBody("second"))
	require.Equal(t, http.StatusTooManyRequests, rw.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rw.Body.String())

	// Reads are not limited.
	for i := 0; i < 3; i++ {
		rw = do(t, h, http.MethodGet, "/visits", "")
		require.Equal(t, http.StatusOK, rw.Code)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()
	h := newRouter(t, testConfig(), store.NewMemory())

	req := httptest.NewRequest(http.MethodOptions, "/visits", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, "https://example.com", rw.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/visits", nil)
	req.Header.Set("Origin", "https://evil.example")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))
}

type downStore struct {
	store.Store
}

func (downStore) Ping(context.Context) error { return xerrors.New("no route to host") }

func TestProbes(t *testing.T) {
	t.Parallel()

	h := newRouter(t, testConfig(), store.NewMemory())
	rw := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rw.Code)
	rw = do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rw.Code)

	h = newRouter(t, testConfig(), downStore{Store: store.NewMemory()})
	rw = do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
	rw = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rw.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	h := newRouter(t, testConfig(), store.NewMemory())
	do(t, h, http.MethodPost, "/visits", visitBody("m"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", bytes.NewReader(nil))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), "visit_requests_total")
}
