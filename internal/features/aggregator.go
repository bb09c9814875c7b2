// Package features turns station observation sets into the yearly wide
// feature table.
package features

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
)

// DefaultEnoughDays is the minimum number of observations a month needs
// before its own values are used instead of the climatology.
const DefaultEnoughDays = 15

// StationStore provides observation sets by station ID. *station.Cache implements it.
type StationStore interface {
	Get(ctx context.Context, stationID string) (*domain.ObservationSet, error)
}

// Aggregator computes monthly statistics with the sparse-month fallback.
type Aggregator struct {
	stations   StationStore
	enoughDays int
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu        sync.Mutex
	badMonths map[string]int
}

// NewAggregator creates an Aggregator. enoughDays below 1 selects DefaultEnoughDays.
func NewAggregator(stations StationStore, enoughDays int, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	if enoughDays < 1 {
		enoughDays = DefaultEnoughDays
	}
	return &Aggregator{
		stations:   stations,
		enoughDays: enoughDays,
		logger:     logger,
		metrics:    metrics,
		badMonths:  make(map[string]int),
	}
}

// Aggregate returns mean, min and max of one station's element for one year
// and month. When that month has fewer than enoughDays observations the
// statistic is computed over the same calendar month of every year instead,
// and the station's bad-month count goes up by one. If there are still no
// observations the statistic holds NaN. Only station loading can fail.
func (a *Aggregator) Aggregate(ctx context.Context, stationID string, year, month int, el domain.Element) (domain.MonthlyStat, error) {
	set, err := a.stations.Get(ctx, stationID)
	if err != nil {
		return domain.MonthlyStat{}, err
	}

	values := set.Values(year, month, el)
	if len(values) >= a.enoughDays {
		return domain.Summarize(values), nil
	}

	a.mu.Lock()
	a.badMonths[stationID]++
	a.mu.Unlock()
	a.metrics.SparseMonths.WithLabelValues(stationID).Inc()
	a.logger.Debug("sparse month, using climatology",
		"station", stationID,
		"year", year,
		"month", month,
		"element", el,
		"observations", len(values),
	)

	stat := domain.Summarize(set.Climatology(month, el))
	stat.Fallback = true
	return stat, nil
}

// BadMonths returns a copy of the per-station count of fallbacks so far.
func (a *Aggregator) BadMonths() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.badMonths)
}
