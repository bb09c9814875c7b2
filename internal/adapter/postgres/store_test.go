package postgres

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

func TestFeatureRows(t *testing.T) {
	generated := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	table := domain.FeatureTable{
		Columns:     domain.BuildSchema([]string{"USW00014898"}, []int{6}),
		Rows:        []domain.FeatureRow{{Year: 1988, Values: []float64{290, 250, 350, 150, 110, 190, math.NaN(), 120}}},
		RunID:       "run-7",
		GeneratedAt: generated,
	}

	rows, err := featureRows(table)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "run-7", rows[0].RunID)
	assert.Equal(t, 1988, rows[0].Year)
	assert.Equal(t, generated, rows[0].GeneratedAt)

	var features map[string]*float64
	require.NoError(t, json.Unmarshal(rows[0].Features, &features))
	assert.Len(t, features, 8)
	assert.Nil(t, features["PRCPavg_USW00014898_month6"])
	require.NotNil(t, features["PRCPmax_USW00014898_month6"])
	assert.InDelta(t, 120.0, *features["PRCPmax_USW00014898_month6"], 0)
}

func TestFeatureRows_RaggedRow(t *testing.T) {
	table := domain.FeatureTable{
		Columns: domain.BuildSchema([]string{"USW00014898"}, []int{6}),
		Rows:    []domain.FeatureRow{{Year: 1988, Values: []float64{1}}},
	}
	_, err := featureRows(table)
	require.Error(t, err)
}

func TestPredictionRows(t *testing.T) {
	preds := []domain.Prediction{
		{Year: 1988, Actual: 84.6, Trend: 110, Departure: -0.23, PredictedDeparture: -0.1, Predicted: 99, TrendError: 25.4, PredictionError: -14.4, Improvement: 11, Win: true},
		{Year: 1989, Actual: 116.3, Trend: 111, PredictedDeparture: math.NaN(), Predicted: math.NaN(), PredictionError: math.NaN(), Improvement: math.Inf(-1)},
	}

	rows := predictionRows("run-7", preds)
	require.Len(t, rows, 2)

	assert.Equal(t, "run-7", rows[0].RunID)
	assert.True(t, rows[0].Win)
	require.NotNil(t, rows[0].Predicted)
	assert.InDelta(t, 99.0, *rows[0].Predicted, 0)
	assert.InDelta(t, 25.4, rows[0].TrendError, 0)

	assert.Nil(t, rows[1].PredictedDeparture)
	assert.Nil(t, rows[1].Predicted)
	assert.Nil(t, rows[1].PredictionError)
	assert.Nil(t, rows[1].Improvement)
	assert.InDelta(t, 116.3, rows[1].Actual, 0)
}

func TestOpen_UnreachableDatabase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Open(ctx, "postgres://maize@127.0.0.1:1/maize?sslmode=disable&connect_timeout=1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
}
