package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestLogEntry(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, tokyo)
	entry := NewRequestLogEntry("10.0.0.5", at)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "10.0.0.5", entry.ClientID)
	assert.Equal(t, "Asia/Tokyo", entry.Zone())
	assert.True(t, entry.ObservedAt.Equal(at.UTC()))
}

func TestNewRequestLogEntry_DefaultsToNow(t *testing.T) {
	before := time.Now()
	entry := NewRequestLogEntry("10.0.0.5", time.Time{})

	assert.False(t, entry.ObservedAt.Before(before.Add(-time.Second)))
	assert.Equal(t, "UTC", entry.Zone())
}

func TestRequestLogEntry_ObservedAfterComparesInstants(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	instant := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := NewRequestLogEntry("10.0.0.5", instant.In(tokyo))

	assert.False(t, entry.ObservedAfter(instant))
	assert.True(t, entry.ObservedAfter(instant.Add(-time.Millisecond)))
}

func TestNewBanEntry(t *testing.T) {
	a := NewBanEntry("10.0.0.5")
	b := NewBanEntry("10.0.0.5")

	assert.Equal(t, "10.0.0.5", a.ClientID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.BannedAt.IsZero())
}
