package predict

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// meanRegressor predicts the mean training target and records what it was trained on.
type meanRegressor struct {
	trained [][][]float64
}

type constModel float64

func (c constModel) Predict([]float64) float64 { return float64(c) }

func (m *meanRegressor) Fit(x [][]float64, y []float64) (Model, error) {
	m.trained = append(m.trained, x)
	sum := 0.0
	for _, v := range y {
		sum += v
	}
	return constModel(sum / float64(len(y))), nil
}

func TestMinMaxScale(t *testing.T) {
	nan := math.NaN()
	x := [][]float64{
		{1, 2, nan, 10},
		{3, 2, nan, nan},
		{nan, 2, nan, 20},
		{5, 2, nan, 30},
	}
	got := MinMaxScale(x)

	want := [][]float64{
		{0, 0, 0, 0},
		{0.5, 0, 0, 0.5},
		{0.5, 0, 0, 0.5},
		{1, 0, 0, 1},
	}
	for i := range want {
		assert.InDeltaSlice(t, want[i], got[i], 1e-12, "row %d", i)
	}
	assert.True(t, math.IsNaN(x[0][2]), "input must not be modified")
}

func TestKernelRidge_LinearKernelByHand(t *testing.T) {
	kr := KernelRidge{Degree: 1, Alpha: 1, Coef0: 0, Gamma: 1}
	// K = [[0 0] [0 1]], (K+I)a = [0 1] gives a = [0 0.5].
	m, err := kr.Fit([][]float64{{0}, {1}}, []float64{0, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, m.Predict([]float64{1}), 1e-12)
	assert.InDelta(t, 1.0, m.Predict([]float64{2}), 1e-12)
	assert.InDelta(t, 0.0, m.Predict([]float64{0}), 1e-12)
}

func TestKernelRidge_DefaultGammaIsInverseFeatures(t *testing.T) {
	kr := KernelRidge{Degree: 1, Alpha: 1, Coef0: 0}
	// gamma 0.5: K = [[1]], 2a = 3.
	m, err := kr.Fit([][]float64{{1, 1}}, []float64{3})
	require.NoError(t, err)

	assert.InDelta(t, 1.5, m.Predict([]float64{1, 1}), 1e-12)
	assert.InDelta(t, 3.0, m.Predict([]float64{2, 2}), 1e-12)
}

func TestKernelRidge_CubicFitsSmoothTarget(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i <= 20; i++ {
		v := float64(i) / 20
		x = append(x, []float64{v})
		y = append(y, v*v)
	}
	// v*v lies in the cubic feature space, so a light ridge nearly interpolates.
	m, err := KernelRidge{Degree: 3, Alpha: 1e-6, Coef0: 1}.Fit(x, y)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, m.Predict([]float64{0.5}), 1e-3)
	assert.InDelta(t, 0.5625, m.Predict([]float64{0.75}), 1e-3)
}

func TestKernelRidge_FitErrors(t *testing.T) {
	kr := DefaultKernelRidge()
	_, err := kr.Fit(nil, nil)
	require.Error(t, err)
	_, err = kr.Fit([][]float64{{1}}, []float64{1, 2})
	require.Error(t, err)
	_, err = KernelRidge{Degree: 0, Alpha: 1}.Fit([][]float64{{1}}, []float64{1})
	require.Error(t, err)
	_, err = KernelRidge{Degree: 3, Alpha: 0}.Fit([][]float64{{1}}, []float64{1})
	require.Error(t, err)
}

func yieldsFor(departures map[int]float64) []domain.YieldRecord {
	var out []domain.YieldRecord
	for year, d := range departures {
		out = append(out, domain.YieldRecord{Year: year, Value: 100 * (1 + d), Trend: 100, Departure: d})
	}
	return out
}

func tableFor(years ...int) domain.FeatureTable {
	var rows []domain.FeatureRow
	for i, y := range years {
		rows = append(rows, domain.FeatureRow{Year: y, Values: []float64{float64(10 * i), math.NaN()}})
	}
	return domain.FeatureTable{Rows: rows}
}

func TestLeaveOneOut_WinsAgainstTrend(t *testing.T) {
	reg := &meanRegressor{}
	metrics := observability.NewMetricsForTesting()
	e := NewEvaluator(reg, discardLogger(), metrics)

	yields := yieldsFor(map[int]float64{2000: 0.2, 2001: 0.2, 2002: 0.2, 2003: 0})
	preds, sum, err := e.LeaveOneOut(context.Background(), tableFor(2003, 2002, 2001, 2000), yields)
	require.NoError(t, err)
	require.Len(t, preds, 4)

	// 2000 is predicted from 0.2, 0.2 and 0.
	p := preds[0]
	assert.Equal(t, 2000, p.Year)
	assert.InDelta(t, 0.4/3, p.PredictedDeparture, 1e-12)
	assert.InDelta(t, 100*(1+0.4/3), p.Predicted, 1e-9)
	assert.InDelta(t, -20.0, p.TrendError, 1e-9)
	assert.InDelta(t, 120-p.Predicted, p.PredictionError, 1e-9)
	assert.InDelta(t, 20-math.Abs(p.PredictionError), p.Improvement, 1e-9)
	assert.True(t, p.Win)

	// 2003 is predicted from three 0.2s; the trend was exact.
	last := preds[3]
	assert.Equal(t, 2003, last.Year)
	assert.InDelta(t, 0.2, last.PredictedDeparture, 1e-12)
	assert.InDelta(t, 0, last.TrendError, 1e-9)
	assert.False(t, last.Win)

	assert.Equal(t, 3, sum.Wins)
	assert.Equal(t, 4, sum.Total)
	assert.InDelta(t, 15.0, sum.MeanTrendError, 1e-9)
	assert.Equal(t, "3 / 4", sum.String())
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.PredictionWins), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.PredictionYears), 0)

	require.Len(t, reg.trained, 4)
	for _, x := range reg.trained {
		require.Len(t, x, 3)
		for _, row := range x {
			for _, v := range row {
				assert.False(t, math.IsNaN(v))
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestLeaveOneOut_JoinsByYear(t *testing.T) {
	reg := &meanRegressor{}
	e := NewEvaluator(reg, discardLogger(), observability.NewMetricsForTesting())

	yields := yieldsFor(map[int]float64{2001: 0.1, 2002: 0, 2003: -0.1, 2004: 0, 2005: 0.3})
	preds, sum, err := e.LeaveOneOut(context.Background(), tableFor(2000, 2001, 2002, 2003, 2004), yields)
	require.NoError(t, err)

	years := make([]int, len(preds))
	for i, p := range preds {
		years[i] = p.Year
	}
	assert.Equal(t, []int{2001, 2002, 2003, 2004}, years)
	assert.Equal(t, 4, sum.Total)
}

func TestLeaveOneOut_TooFewYears(t *testing.T) {
	e := NewEvaluator(&meanRegressor{}, discardLogger(), observability.NewMetricsForTesting())
	_, _, err := e.LeaveOneOut(context.Background(), tableFor(2000, 2001), yieldsFor(map[int]float64{2000: 0, 2001: 0}))
	require.Error(t, err)
}

func TestLeaveOneOut_KernelRidge(t *testing.T) {
	e := NewEvaluator(DefaultKernelRidge(), discardLogger(), observability.NewMetricsForTesting())

	departures := make(map[int]float64)
	var rows []domain.FeatureRow
	for i := 0; i < 30; i++ {
		year := 1980 + i
		rain := float64(i % 7)
		heat := float64((i * 3) % 11)
		departures[year] = 0.02*rain - 0.01*heat
		rows = append(rows, domain.FeatureRow{Year: year, Values: []float64{rain, heat}})
	}

	preds, sum, err := e.LeaveOneOut(context.Background(), domain.FeatureTable{Rows: rows}, yieldsFor(departures))
	require.NoError(t, err)
	require.Len(t, preds, 30)
	for _, p := range preds {
		assert.False(t, math.IsNaN(p.PredictedDeparture), "year %d", p.Year)
		assert.Equal(t, p.Improvement > 0, p.Win)
	}
	assert.Equal(t, 30, sum.Total)
}

func TestLeaveOneOut_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEvaluator(&meanRegressor{}, discardLogger(), observability.NewMetricsForTesting())
	_, _, err := e.LeaveOneOut(ctx, tableFor(2000, 2001, 2002), yieldsFor(map[int]float64{2000: 0, 2001: 0, 2002: 0}))
	require.ErrorIs(t, err, context.Canceled)
}
