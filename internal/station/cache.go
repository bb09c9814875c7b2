// Package station holds the per-station observation cache that sits between
// raw .dly files and the monthly aggregator.
package station

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
)

// Source opens the raw .dly file of a station. Implementations report an
// absent file as *domain.MissingFileError.
type Source interface {
	Open(ctx context.Context, stationID string) (io.ReadCloser, error)
}

// Cache parses and filters each station file at most once and keeps the
// resulting observation set for the life of the process. It is safe for
// concurrent use: callers asking for a station that is still loading wait for
// the first load instead of starting another. Failures are cached too.
type Cache struct {
	source  Source
	window  domain.StudyWindow
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]*entry
	parses  int
	stats   domain.FilterStats
}

type entry struct {
	done chan struct{}
	set  *domain.ObservationSet
	err  error
}

// NewCache creates a cache reading station files from source and keeping
// observations inside window.
func NewCache(source Source, window domain.StudyWindow, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		source:  source,
		window:  window,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]*entry),
	}
}

// Get returns the observation set of stationID, loading it on first use.
func (c *Cache) Get(ctx context.Context, stationID string) (*domain.ObservationSet, error) {
	c.mu.Lock()
	if e, ok := c.entries[stationID]; ok {
		c.mu.Unlock()
		c.metrics.StationCache.WithLabelValues("hit").Inc()
		select {
		case <-e.done:
			return e.set, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &entry{done: make(chan struct{})}
	c.entries[stationID] = e
	c.mu.Unlock()

	c.metrics.StationCache.WithLabelValues("miss").Inc()
	e.set, e.err = c.load(ctx, stationID)
	close(e.done)
	return e.set, e.err
}

// Parses returns how many station files have been decoded.
func (c *Cache) Parses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parses
}

// FilterStats returns the filter tallies summed over every loaded station.
func (c *Cache) FilterStats() domain.FilterStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) load(ctx context.Context, stationID string) (*domain.ObservationSet, error) {
	rc, err := c.source.Open(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("open station %s: %w", stationID, err)
	}
	defer rc.Close()

	records, err := domain.ParseStationFile(rc, stationID+".dly", stationID)
	if err != nil {
		return nil, err
	}
	set, stats := domain.FilterRecords(stationID, records, c.window)

	c.mu.Lock()
	c.parses++
	c.stats.Add(stats)
	c.mu.Unlock()

	c.recordStats(stats)
	c.logger.Debug("station loaded",
		"station", stationID,
		"records", stats.Records,
		"observations", stats.Kept,
		"quality_flagged", stats.QualityFlagged,
		"synoptic", stats.Synoptic,
	)
	return set, nil
}

func (c *Cache) recordStats(s domain.FilterStats) {
	c.metrics.StationParses.Inc()
	c.metrics.ObservationsKept.Add(float64(s.Kept))
	c.metrics.RecordsDropped.WithLabelValues("element").Add(float64(s.WrongElement))
	c.metrics.RecordsDropped.WithLabelValues("window").Add(float64(s.OutOfWindow))
	c.metrics.ObservationsDropped.WithLabelValues("missing").Add(float64(s.Missing))
	c.metrics.ObservationsDropped.WithLabelValues("impossible_day").Add(float64(s.ImpossibleDay))
	c.metrics.ObservationsDropped.WithLabelValues("quality").Add(float64(s.QualityFlagged))
	c.metrics.ObservationsDropped.WithLabelValues("synoptic").Add(float64(s.Synoptic))
}
