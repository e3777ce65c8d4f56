// Package ban - Persistent ban list.
//
// A client is banned for as long as any ban entry exists for it. The registry
// never caches: every lookup goes to the store, so a ban recorded by another
// instance sharing the same database takes effect on the next request.
package ban

import (
	"context"

	"ipgate/internal/storage"
)

// Store is the subset of storage.Store the registry needs.
type Store interface {
	BanExists(ctx context.Context, clientID string) (bool, error)
	InsertBan(ctx context.Context, clientID string) error
}

var _ Store = (storage.Store)(nil)

// Registry answers ban queries and records new bans.
type Registry struct {
	store Store
}

// NewRegistry creates a registry backed by store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// IsBanned reports whether at least one ban entry exists for the client.
func (r *Registry) IsBanned(ctx context.Context, clientID string) (bool, error) {
	return r.store.BanExists(ctx, clientID)
}

// Ban records a new ban entry. It does not check for an existing ban, so
// concurrent callers may leave duplicates behind; IsBanned is true either way.
func (r *Registry) Ban(ctx context.Context, clientID string) error {
	return r.store.InsertBan(ctx, clientID)
}
