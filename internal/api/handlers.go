package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"ipgate/internal/clientip"
	"ipgate/internal/models"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains the HTTP handlers served behind the gate
type Handlers struct {
	store     Pinger
	version   string
	startTime time.Time
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

// WithStorage enables the storage component of the health check.
func WithStorage(store Pinger) HandlerOption {
	return func(h *Handlers) {
		h.store = store
	}
}

// WithVersion sets the version reported by the health check.
func WithVersion(version string) HandlerOption {
	return func(h *Handlers) {
		h.version = version
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(opts ...HandlerOption) *Handlers {
	h := &Handlers{startTime: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hello greets the client with its resolved address
// GET /
func (h *Handlers) Hello(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientip.FromContext(r.Context())
	if !ok {
		clientID = r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			clientID = host
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Hello World! your ip is %s", clientID)
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version
	response.Uptime = time.Since(h.startTime).Round(time.Second).String()
	statusCode := http.StatusOK

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			response.Status = models.StatusUnhealthy
			response.AddComponent("storage", models.StatusUnhealthy, err.Error())
			statusCode = http.StatusServiceUnavailable
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}

	h.writeJSONResponse(w, statusCode, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing left to send
		slog.Error("Error encoding JSON response", "error", err)
	}
}
