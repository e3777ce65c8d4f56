package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type routeConfig struct {
	otelServiceName string
	gate            func(http.Handler) http.Handler
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeConfig)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(c *routeConfig) {
		c.otelServiceName = serviceName
	}
}

// WithGate protects every route except /health with the admission gate.
func WithGate(middleware func(http.Handler) http.Handler) RouteOption {
	return func(c *routeConfig) {
		c.gate = middleware
	}
}

// SetupRoutes configures the HTTP routes
func SetupRoutes(handlers *Handlers, opts ...RouteOption) *mux.Router {
	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	router := mux.NewRouter()
	router.Use(recoveryMiddleware)
	router.Use(loggingMiddleware)

	if cfg.otelServiceName != "" {
		router.Use(otelmux.Middleware(cfg.otelServiceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health"
			}),
		))
	}

	gated := func(h http.Handler) http.Handler { return h }
	if cfg.gate != nil {
		gated = exemptHealth(cfg.gate)
		router.Use(gated)
	}

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/", handlers.Hello).Methods("GET")

	// mux skips router middleware for unmatched requests
	router.MethodNotAllowedHandler = gated(http.HandlerFunc(methodNotAllowedHandler))
	router.NotFoundHandler = gated(http.HandlerFunc(notFoundHandler))

	return router
}

// exemptHealth applies gate to every request except /health probes.
func exemptHealth(gate func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := gate(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}
