package storage

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is wrapped by every error caused by the backend failing
// to answer (network, timeout or driver errors).
var ErrStoreUnavailable = errors.New("store unavailable")

// unavailable wraps a backend error so callers can match ErrStoreUnavailable
// while keeping the driver error in the chain.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
