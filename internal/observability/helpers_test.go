package observability

import (
	"context"
	"strings"
	"testing"

	"ipgate/internal/models"
	"ipgate/internal/version"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func setupTestProvider(t *testing.T) *Provider {
	t.Helper()
	metrics := models.MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}
	obs := models.ObservabilityConfig{
		ServiceName: "ipgate-test",
		Tracing: models.TracingConfig{
			Enabled:    true,
			Exporter:   "stdout",
			SampleRate: 1.0,
		},
	}
	provider, err := Setup(metrics, obs, version.Info{Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return provider
}

// findFamily returns the gathered family whose name starts with prefix.
func findFamily(t *testing.T, provider *Provider, prefix string) *dto.MetricFamily {
	t.Helper()
	families, err := provider.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if strings.HasPrefix(family.GetName(), prefix) {
			return family
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, label := range m.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}
