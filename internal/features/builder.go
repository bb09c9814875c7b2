package features

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
)

// Result is a built feature table with the non-fatal conditions met on the way.
type Result struct {
	Table       domain.FeatureTable
	NoDataCells int
	BadMonths   map[string]int
}

// Builder assembles the wide feature table, one row per year.
type Builder struct {
	agg     *Aggregator
	logger  *slog.Logger
	metrics *observability.Metrics
	onYear  func(year int)
}

// NewBuilder creates a Builder over agg.
func NewBuilder(agg *Aggregator, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{agg: agg, logger: logger, metrics: metrics}
}

// OnYear registers fn to be called after each row is built.
func (b *Builder) OnYear(fn func(year int)) {
	b.onYear = fn
}

// Build returns one row per year in [startYear, endYear]. Columns follow
// domain.BuildSchema(stationIDs, months). Any station load failure aborts the
// build and no table is returned.
func (b *Builder) Build(ctx context.Context, stationIDs []string, months []int, startYear, endYear int) (Result, error) {
	window := domain.StudyWindow{StartYear: startYear, EndYear: endYear}
	if err := window.Validate(); err != nil {
		return Result{}, err
	}
	if err := domain.ValidateSchemaInputs(stationIDs, months); err != nil {
		return Result{}, err
	}

	cols := domain.BuildSchema(stationIDs, months)
	rows := make([]domain.FeatureRow, 0, window.Years())
	noData := 0

	for year := startYear; year <= endYear; year++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		row, empty, err := b.buildRow(ctx, cols, year)
		if err != nil {
			return Result{}, fmt.Errorf("build year %d: %w", year, err)
		}
		noData += empty
		rows = append(rows, row)
		if b.onYear != nil {
			b.onYear(year)
		}
	}

	b.metrics.NoDataCells.Add(float64(noData))
	table := domain.FeatureTable{
		Columns:     cols,
		Rows:        rows,
		RunID:       uuid.NewString(),
		GeneratedAt: domain.Now(),
	}
	b.logger.Info("feature table built",
		"run_id", table.RunID,
		"rows", len(rows),
		"columns", len(cols),
		"no_data_cells", noData,
	)
	return Result{Table: table, NoDataCells: noData, BadMonths: b.agg.BadMonths()}, nil
}

// buildRow fills one year's row column by column, aggregating each
// station/month/element once.
func (b *Builder) buildRow(ctx context.Context, cols []domain.Column, year int) (domain.FeatureRow, int, error) {
	row := domain.FeatureRow{Year: year, Values: make([]float64, len(cols))}
	empty := 0

	var (
		current domain.Column
		stat    domain.MonthlyStat
		loaded  bool
	)
	for i, col := range cols {
		if !loaded || col.StationID != current.StationID || col.Month != current.Month || col.Element != current.Element {
			var err error
			stat, err = b.agg.Aggregate(ctx, col.StationID, year, col.Month, col.Element)
			if err != nil {
				return domain.FeatureRow{}, 0, err
			}
			current, loaded = col, true
		}
		v := stat.Pick(col.Statistic)
		if math.IsNaN(v) {
			empty++
		}
		row.Values[i] = v
	}
	return row, empty, nil
}
