package predict

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
)

// minAlignedYears is the fewest years leave-one-out can train on meaningfully.
const minAlignedYears = 3

// Summary tallies how often the climate model beat the trend-only baseline.
type Summary struct {
	Wins                int
	Total               int
	MeanTrendError      float64 // mean |TrendError|
	MeanPredictionError float64 // mean |PredictionError|
}

func (s Summary) String() string {
	return fmt.Sprintf("%d / %d", s.Wins, s.Total)
}

// Evaluator runs leave-one-out cross-validation of a Regressor.
type Evaluator struct {
	regressor Regressor
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(regressor Regressor, logger *slog.Logger, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{regressor: regressor, logger: logger, metrics: metrics}
}

// LeaveOneOut joins table and yields by year, scales the features and, for
// each aligned year, trains on every other year and predicts the held-out
// departure. Results are in year order.
func (e *Evaluator) LeaveOneOut(ctx context.Context, table domain.FeatureTable, yields []domain.YieldRecord) ([]domain.Prediction, Summary, error) {
	x, aligned := join(table, yields)
	if len(aligned) < minAlignedYears {
		return nil, Summary{}, fmt.Errorf("need at least %d years with both features and yield, got %d", minAlignedYears, len(aligned))
	}
	x = MinMaxScale(x)
	y := make([]float64, len(aligned))
	for i, r := range aligned {
		y[i] = r.Departure
	}

	preds := make([]domain.Prediction, 0, len(aligned))
	var sum Summary
	for i, r := range aligned {
		if err := ctx.Err(); err != nil {
			return nil, Summary{}, err
		}
		model, err := e.regressor.Fit(without(x, i), without(y, i))
		if err != nil {
			return nil, Summary{}, fmt.Errorf("fit without %d: %w", r.Year, err)
		}
		p := evaluate(r, model.Predict(x[i]))
		preds = append(preds, p)

		sum.Total++
		if p.Win {
			sum.Wins++
		}
		sum.MeanTrendError += math.Abs(p.TrendError)
		sum.MeanPredictionError += math.Abs(p.PredictionError)
	}
	sum.MeanTrendError /= float64(sum.Total)
	sum.MeanPredictionError /= float64(sum.Total)

	e.metrics.PredictionWins.Set(float64(sum.Wins))
	e.metrics.PredictionYears.Set(float64(sum.Total))
	e.logger.Info("leave-one-out evaluation complete",
		"outperformed", sum.String(),
		"mean_trend_error", sum.MeanTrendError,
		"mean_prediction_error", sum.MeanPredictionError,
	)
	return preds, sum, nil
}

// evaluate derives the comparison columns for one held-out year.
func evaluate(r domain.YieldRecord, predictedDeparture float64) domain.Prediction {
	predicted := r.Trend * (1 + predictedDeparture)
	trendErr := r.Trend - r.Value
	predErr := r.Value - predicted
	improvement := math.Abs(trendErr) - math.Abs(predErr)
	return domain.Prediction{
		Year:               r.Year,
		Actual:             r.Value,
		Trend:              r.Trend,
		Departure:          r.Departure,
		PredictedDeparture: predictedDeparture,
		Predicted:          predicted,
		TrendError:         trendErr,
		PredictionError:    predErr,
		Improvement:        improvement,
		Win:                improvement > 0,
	}
}

// join returns the feature rows and yield records of the years present in
// both, in year order.
func join(table domain.FeatureTable, yields []domain.YieldRecord) ([][]float64, []domain.YieldRecord) {
	byYear := make(map[int]domain.YieldRecord, len(yields))
	for _, r := range yields {
		byYear[r.Year] = r
	}
	rows := slices.Clone(table.Rows)
	slices.SortFunc(rows, func(a, b domain.FeatureRow) int { return a.Year - b.Year })

	var (
		x       [][]float64
		aligned []domain.YieldRecord
	)
	for _, row := range rows {
		r, ok := byYear[row.Year]
		if !ok {
			continue
		}
		x = append(x, row.Values)
		aligned = append(aligned, r)
	}
	return x, aligned
}

func without[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
