package observability

import (
	"log/slog"
	"testing"

	"github.com/couchcryptid/water-balance-service/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_RespectsLevel(t *testing.T) {
	tests := []struct {
		level, format string
		enabled       slog.Level
		disabled      slog.Level
	}{
		{"warn", "text", slog.LevelWarn, slog.LevelInfo},
		{"debug", "json", slog.LevelDebug, slog.LevelDebug - 1},
		{"error", "json", slog.LevelError, slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: tt.format})
			assert.True(t, logger.Enabled(t.Context(), tt.enabled))
			assert.False(t, logger.Enabled(t.Context(), tt.disabled))
		})
	}
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.ConsistencyMismatches.Add(3)
	a.DatasetLoads.WithLabelValues("csv", "success").Inc()

	assert.InDelta(t, 3.0, testutil.ToFloat64(a.ConsistencyMismatches), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.ConsistencyMismatches), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(a.DatasetLoads.WithLabelValues("csv", "success")), 1e-9)
}
