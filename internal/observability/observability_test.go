package observability

import (
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewMetricsForTesting_IsIsolated(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.SparseMonths.WithLabelValues("USW00014936").Inc()
	assert.InDelta(t, 1, testutil.ToFloat64(a.SparseMonths.WithLabelValues("USW00014936")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.SparseMonths.WithLabelValues("USW00014936")), 0)
	assert.Len(t, a.collectors(), 13)
}
