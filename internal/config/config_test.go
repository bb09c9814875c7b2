package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "raw_data", cfg.DataDir)
	assert.Equal(t, 1890, cfg.StartYear)
	assert.Equal(t, 2017, cfg.EndYear)
	assert.Equal(t, DefaultStationIDs, cfg.StationIDs)
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, cfg.Months())
	assert.Equal(t, 15, cfg.EnoughDays)
	assert.Equal(t, [2]int{1937, 1962}, cfg.Breakpoints)
	assert.Equal(t, []string{"YEAR"}, cfg.YieldPeriods)
	assert.Equal(t, filepath.Join("raw_data", "FF72F614-2177-381F-A4EB-D059F706EC14.csv"), cfg.YieldPath())
	assert.Equal(t, 3, cfg.KernelDegree)
	assert.InDelta(t, 0.5, cfg.KernelAlpha, 1e-12)
	assert.InDelta(t, 1.0, cfg.KernelCoef0, 1e-12)
	assert.Equal(t, "weather.csv", cfg.FeatureTablePath)
	assert.Equal(t, "predictions.csv", cfg.PredictionsPath)
	assert.False(t, cfg.FetchEnabled)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.KafkaFeatureTopic)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.HTTPAddr)
	assert.False(t, cfg.ShowProgress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/ghcnd")
	t.Setenv("START_YEAR", "1900")
	t.Setenv("END_YEAR", "1950")
	t.Setenv("STATION_IDS", "USW00014936, USW00014898")
	t.Setenv("START_MONTH", "5")
	t.Setenv("END_MONTH", "8")
	t.Setenv("ENOUGH_DAYS", "20")
	t.Setenv("TREND_BREAKPOINTS", "1940,1970")
	t.Setenv("YIELD_FILE", "/tmp/yield.csv")
	t.Setenv("YIELD_PERIODS", "YEAR,MARKETING YEAR")
	t.Setenv("KERNEL_DEGREE", "2")
	t.Setenv("KERNEL_ALPHA", "0.1")
	t.Setenv("FETCH_ENABLED", "true")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_FEATURE_TOPIC", "maize-features")
	t.Setenv("DATABASE_URL", "postgres://etl@localhost/maize?sslmode=disable")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHOW_PROGRESS", "1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/ghcnd", cfg.DataDir)
	assert.Equal(t, 1900, cfg.Window().StartYear)
	assert.Equal(t, 1950, cfg.Window().EndYear)
	assert.Equal(t, []string{"USW00014936", "USW00014898"}, cfg.StationIDs)
	assert.Equal(t, []int{5, 6, 7, 8}, cfg.Months())
	assert.Equal(t, 20, cfg.EnoughDays)
	assert.Equal(t, [2]int{1940, 1970}, cfg.Breakpoints)
	assert.Equal(t, "/tmp/yield.csv", cfg.YieldPath())
	assert.Equal(t, []string{"YEAR", "MARKETING YEAR"}, cfg.YieldPeriods)
	assert.Equal(t, 2, cfg.KernelDegree)
	assert.InDelta(t, 0.1, cfg.KernelAlpha, 1e-12)
	assert.True(t, cfg.FetchEnabled)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "maize-features", cfg.KafkaFeatureTopic)
	assert.Equal(t, "postgres://etl@localhost/maize?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.True(t, cfg.ShowProgress)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EmptyYieldFileDisablesPrediction(t *testing.T) {
	t.Setenv("YIELD_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.YieldPath())
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"START_YEAR", "eighteen-ninety", "START_YEAR"},
		{"END_YEAR", "1800", "START_YEAR/END_YEAR"},
		{"START_MONTH", "0", "START_MONTH/END_MONTH"},
		{"END_MONTH", "13", "START_MONTH/END_MONTH"},
		{"STATION_IDS", "A,A", "STATION_IDS"},
		{"ENOUGH_DAYS", "0", "ENOUGH_DAYS"},
		{"ENOUGH_DAYS", "40", "ENOUGH_DAYS"},
		{"TREND_BREAKPOINTS", "1962,1937", "TREND_BREAKPOINTS"},
		{"TREND_BREAKPOINTS", "1937", "TREND_BREAKPOINTS"},
		{"KERNEL_DEGREE", "0", "KERNEL_DEGREE"},
		{"KERNEL_ALPHA", "-1", "KERNEL_ALPHA"},
		{"FETCH_ENABLED", "maybe", "FETCH_ENABLED"},
		{"FETCH_TIMEOUT", "-5s", "FETCH_TIMEOUT"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
