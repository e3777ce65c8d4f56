// Package models - Request-log and ban records.
//
// Both record types key off the client identifier and are stored independently;
// a ban can exist without any request-log entry for the same client.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestLogEntry records one request that went through the limited path.
// ObservedAt keeps the location chosen by the caller for display; comparisons
// always use the absolute instant. Entries are never updated.
type RequestLogEntry struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewRequestLogEntry creates an entry with a fresh ID. A zero timestamp
// defaults to the current time.
func NewRequestLogEntry(clientID string, observedAt time.Time) *RequestLogEntry {
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}
	return &RequestLogEntry{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ObservedAt: observedAt,
	}
}

// Zone returns the name of the location ObservedAt is expressed in.
func (e *RequestLogEntry) Zone() string {
	return e.ObservedAt.Location().String()
}

// ObservedAfter reports whether the entry was observed strictly after since.
func (e *RequestLogEntry) ObservedAfter(since time.Time) bool {
	return e.ObservedAt.After(since)
}

// BanEntry marks a client as banned. Its existence is the whole ban predicate:
// there is no expiry and duplicates for the same client are allowed.
type BanEntry struct {
	ID       string    `json:"id"`
	ClientID string    `json:"client_id"`
	BannedAt time.Time `json:"banned_at"`
}

// NewBanEntry creates a ban stamped with the current time.
func NewBanEntry(clientID string) *BanEntry {
	return &BanEntry{
		ID:       uuid.NewString(),
		ClientID: clientID,
		BannedAt: time.Now().UTC(),
	}
}
