package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse_JSONShape(t *testing.T) {
	data, err := json.Marshal(NewErrorResponse(MessageBanned))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"You are banned. Please contact support for further assistance."}`, string(data))

	data, err = json.Marshal(NewErrorResponse(MessageThrottled))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Too many requests from this IP, please try again later"}`, string(data))
}

func TestHealthCheckResponse_AddComponent(t *testing.T) {
	resp := NewHealthCheckResponse(StatusHealthy)
	resp.AddComponent("storage", StatusUnhealthy, "connection refused")

	require.Contains(t, resp.Components, "storage")
	assert.Equal(t, StatusUnhealthy, resp.Components["storage"].Status)
	assert.Equal(t, "connection refused", resp.Components["storage"].Message)
	assert.False(t, resp.Components["storage"].Timestamp.IsZero())
}
