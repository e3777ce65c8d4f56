package main

import (
	"fmt"

	"ipgate/internal/admission"
	"ipgate/internal/ban"
	"ipgate/internal/clientip"
	"ipgate/internal/gate"
	"ipgate/internal/models"
	"ipgate/internal/observability"
	"ipgate/internal/ratelimit"
	"ipgate/internal/storage"
	"ipgate/internal/tracker"
)

// buildGate wires the ban registry, request tracker, admission engine and
// micro-window limiter into a gate. The caller owns the returned limiter.
func buildGate(cfg models.GateConfig, store storage.Store) (*gate.Gate, ratelimit.Limiter, error) {
	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("create limiter: %w", err)
	}

	decisions, err := observability.NewDecisionCounter()
	if err != nil {
		limiter.Close()
		return nil, nil, fmt.Errorf("create decision counter: %w", err)
	}

	bans := ban.NewRegistry(store)
	engine := admission.NewEngine(bans, tracker.New(store),
		admission.WithThreshold(cfg.Escalation.Threshold),
		admission.WithWindow(cfg.Escalation.Window),
	)

	g := gate.New(clientip.NewResolver(cfg.TrustedHops), bans, engine, limiter,
		gate.WithFailMode(cfg.FailMode),
		gate.WithObserver(decisions),
	)
	return g, limiter, nil
}
