package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ipgate/internal/admission"
	"ipgate/internal/ban"
	"ipgate/internal/clientip"
	"ipgate/internal/gate"
	"ipgate/internal/models"
	"ipgate/internal/ratelimit"
	"ipgate/internal/storage"
	"ipgate/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatedRouter(t *testing.T) (http.Handler, *storage.MemoryStorage) {
	t.Helper()
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	limiter := ratelimit.NewSlidingWindowLimiter(5, time.Second, time.Minute)
	t.Cleanup(limiter.Close)

	registry := ban.NewRegistry(store)
	engine := admission.NewEngine(registry, tracker.New(store))
	g := gate.New(clientip.NewResolver(1), registry, engine, limiter)

	router := SetupRoutes(NewHandlers(WithStorage(store)), WithGate(g.Middleware))
	return router, store
}

func serve(router http.Handler, method, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRoutes_HelloThroughGate(t *testing.T) {
	router, store := newGatedRouter(t)

	for i := 0; i < 5; i++ {
		rr := serve(router, http.MethodGet, "/", "10.0.0.5:40000")
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
		assert.Equal(t, "Hello World! your ip is 10.0.0.5", rr.Body.String())
	}

	rr := serve(router, http.MethodGet, "/", "10.0.0.5:40000")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, models.MessageThrottled, body.Error)
	assert.Len(t, store.RequestLogs("10.0.0.5"), 1)
}

func TestRoutes_HealthIsExemptFromGate(t *testing.T) {
	router, store := newGatedRouter(t)
	require.NoError(t, store.InsertBan(t.Context(), "10.0.0.5"))

	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/", "10.0.0.5:40000").Code)

	for i := 0; i < 10; i++ {
		rr := serve(router, http.MethodGet, "/health", "10.0.0.5:40000")
		require.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	router, _ := newGatedRouter(t)

	rr := serve(router, http.MethodPost, "/", "10.0.0.5:40000")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, models.MessageNotAllowed, body.Error)
}

func TestRoutes_NotFound(t *testing.T) {
	router, _ := newGatedRouter(t)

	rr := serve(router, http.MethodGet, "/missing", "10.0.0.5:40000")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoutes_BannedClientRejectedOnEveryRoute(t *testing.T) {
	router, store := newGatedRouter(t)
	require.NoError(t, store.InsertBan(t.Context(), "10.0.0.5"))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/nope"},
		{http.MethodPost, "/"},
		{http.MethodDelete, "/admin/users"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := serve(router, tt.method, tt.path, "10.0.0.5:40000")
			assert.Equal(t, http.StatusForbidden, rr.Code)

			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, models.MessageBanned, body.Error)
		})
	}
}

func TestRoutes_UnknownPathsAreLimitedAndTracked(t *testing.T) {
	router, store := newGatedRouter(t)

	codes := make([]int, 0, 20)
	for range 20 {
		codes = append(codes, serve(router, http.MethodGet, "/x", "10.0.0.9:40000").Code)
	}

	want := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		switch {
		case i < 5:
			want = append(want, http.StatusNotFound)
		case i < 10:
			want = append(want, http.StatusTooManyRequests)
		default:
			want = append(want, http.StatusForbidden)
		}
	}
	assert.Equal(t, want, codes)
	assert.Len(t, store.RequestLogs("10.0.0.9"), 5)
	assert.Len(t, store.Bans("10.0.0.9"), 1)
}

func TestRoutes_HealthExemptForAnyMethod(t *testing.T) {
	router, store := newGatedRouter(t)
	require.NoError(t, store.InsertBan(t.Context(), "10.0.0.5"))

	rr := serve(router, http.MethodPost, "/health", "10.0.0.5:40000")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRoutes_WithoutGate(t *testing.T) {
	router := SetupRoutes(NewHandlers(), WithOTelMiddleware("ipgate-test"))

	for i := 0; i < 10; i++ {
		rr := serve(router, http.MethodGet, "/", "10.0.0.5:40000")
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())
}

func TestLoggingMiddleware_PassesStatus(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
