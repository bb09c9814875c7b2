package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/yield"
)

// YieldTrend implements DepartureSource by reading a yield table from disk
// and removing the piecewise technological trend.
type YieldTrend struct {
	path        string
	periods     []string
	breakpoints yield.Breakpoints
	logger      *slog.Logger
}

// NewYieldTrend creates a YieldTrend over the table at path. Nil periods keep
// whole-year rows only.
func NewYieldTrend(path string, periods []string, bp yield.Breakpoints, logger *slog.Logger) *YieldTrend {
	return &YieldTrend{
		path:        path,
		periods:     periods,
		breakpoints: bp,
		logger:      logger,
	}
}

func (t *YieldTrend) Departures(ctx context.Context, window domain.StudyWindow) ([]domain.YieldRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("open yield table: %w", err)
	}
	defer f.Close()

	history, err := yield.ReadYields(f, t.path, t.periods)
	if err != nil {
		return nil, err
	}
	records, trend, err := yield.FitTrend(history, t.breakpoints, window)
	if err != nil {
		return nil, err
	}

	for _, era := range []domain.Era{domain.EraEarly, domain.EraMiddle, domain.EraModern} {
		line := trend.Lines[era]
		t.logger.Info("yield trend fitted",
			"era", era,
			"intercept", line.Intercept,
			"slope", line.Slope,
			"years", line.Points,
		)
	}
	return records, nil
}
