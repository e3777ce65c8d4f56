// Package gate - HTTP admission middleware.
//
// Every request is resolved to a client identifier and checked against the
// ban list before the micro-window limiter runs. Requests the limiter rejects
// take the limited path through the admission engine, which either throttles
// and records them or escalates the client to a ban.
package gate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"ipgate/internal/admission"
	"ipgate/internal/ban"
	"ipgate/internal/clientip"
	"ipgate/internal/models"
	"ipgate/internal/ratelimit"
	"ipgate/internal/tracker"
)

// TimezoneHeader carries the client's IANA zone name used to stamp
// request-log entries.
const TimezoneHeader = "timezone"

// DecisionError is reported to observers when a store failure prevents a
// decision.
const DecisionError = "error"

// Observer is notified of every gate decision. decision is one of the
// admission outcome names or DecisionError.
type Observer interface {
	RecordDecision(ctx context.Context, decision string)
}

// ErrorHandler writes the response for a request whose decision failed.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Gate is the admission middleware.
type Gate struct {
	resolver     *clientip.Resolver
	bans         *ban.Registry
	engine       *admission.Engine
	limiter      ratelimit.Limiter
	failMode     string
	errorHandler ErrorHandler
	observers    []Observer
	now          func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithFailMode selects how store failures are answered: models.FailModeError
// hands them to the error handler, models.FailModeOpen forwards the request
// and models.FailModeClosed rejects it as banned.
func WithFailMode(mode string) Option {
	return func(g *Gate) {
		if mode != "" {
			g.failMode = mode
		}
	}
}

// WithErrorHandler replaces the default 500 JSON error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(g *Gate) {
		if handler != nil {
			g.errorHandler = handler
		}
	}
}

// WithObserver registers an observer for gate decisions.
func WithObserver(observer Observer) Option {
	return func(g *Gate) {
		if observer != nil {
			g.observers = append(g.observers, observer)
		}
	}
}

// WithClock replaces the wall clock used to stamp limited-path requests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a gate.
func New(resolver *clientip.Resolver, bans *ban.Registry, engine *admission.Engine, limiter ratelimit.Limiter, opts ...Option) *Gate {
	g := &Gate{
		resolver:     resolver,
		bans:         bans,
		engine:       engine,
		limiter:      limiter,
		failMode:     models.FailModeError,
		errorHandler: InternalErrorHandler,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware wraps next with the gate.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	allowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.observe(r.Context(), admission.Allowed.String())
		next.ServeHTTP(w, r)
	})

	limitedPath := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.handleLimited(w, r, next)
	})

	limited := ratelimit.Middleware(g.limiter, clientKey, limitedPath)(allowed)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := g.resolver.Resolve(r)
		r = r.WithContext(clientip.WithClientID(r.Context(), clientID))

		banned, err := g.bans.IsBanned(r.Context(), clientID)
		if err != nil {
			g.fail(w, r, next, err)
			return
		}
		if banned {
			g.reject(w, r, admission.Banned)
			return
		}

		limited.ServeHTTP(w, r)
	})
}

func (g *Gate) handleLimited(w http.ResponseWriter, r *http.Request, next http.Handler) {
	clientID, _ := clientip.FromContext(r.Context())

	at, err := tracker.ZonedNow(r.Header.Get(TimezoneHeader), g.now())
	if err != nil {
		slog.Debug("Ignoring client timezone", "client_id", clientID, "error", err)
	}

	outcome, err := g.engine.Limited(r.Context(), clientID, at)
	if err != nil {
		g.fail(w, r, next, err)
		return
	}
	g.reject(w, r, outcome)
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, outcome admission.Outcome) {
	clientID, _ := clientip.FromContext(r.Context())
	switch outcome {
	case admission.Banned:
		slog.Warn("Rejected banned client", "client_id", clientID, "path", r.URL.Path)
	case admission.Throttled:
		slog.Info("Throttled client", "client_id", clientID, "path", r.URL.Path)
	default:
		slog.Error("Rejecting with unexpected outcome",
			"client_id", clientID,
			"path", r.URL.Path,
			"outcome", outcome.String(),
		)
	}

	g.observe(r.Context(), outcome.String())
	writeJSON(w, outcome.StatusCode(), models.NewErrorResponse(outcome.Message()))
}

func (g *Gate) fail(w http.ResponseWriter, r *http.Request, next http.Handler, err error) {
	clientID, _ := clientip.FromContext(r.Context())
	slog.Error("Admission decision failed",
		"client_id", clientID,
		"fail_mode", g.failMode,
		"error", err,
	)
	g.observe(r.Context(), DecisionError)

	switch g.failMode {
	case models.FailModeOpen:
		next.ServeHTTP(w, r)
	case models.FailModeClosed:
		writeJSON(w, admission.Banned.StatusCode(), models.NewErrorResponse(admission.Banned.Message()))
	default:
		g.errorHandler(w, r, err)
	}
}

func (g *Gate) observe(ctx context.Context, decision string) {
	for _, observer := range g.observers {
		observer.RecordDecision(ctx, decision)
	}
}

// InternalErrorHandler answers 500 with a generic JSON error body.
func InternalErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse(models.MessageInternalError))
}

func clientKey(r *http.Request) string {
	if clientID, ok := clientip.FromContext(r.Context()); ok {
		return clientID
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
