package features

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
	"github.com/couchcryptid/maize-yield-etl/internal/station"
)

const (
	stationA = "USW00014936"
	stationB = "USC00136719"
)

var testWindow = domain.StudyWindow{StartYear: 1890, EndYear: 2017}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(id string, year, month int, el domain.Element, values ...int) domain.RawStationRecord {
	rec := domain.RawStationRecord{StationID: id, Year: year, Month: month, Element: el}
	for i, v := range values {
		rec.Days[i].Reading = domain.Present(v)
	}
	return rec
}

func seq(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func newAggregator(t *testing.T, src *station.MemorySource) (*Aggregator, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	cache := station.NewCache(src, testWindow, discardLogger(), metrics)
	return NewAggregator(cache, DefaultEnoughDays, discardLogger(), metrics), metrics
}

func TestAggregate_FullMonthUsesOwnValues(t *testing.T) {
	src := station.NewMemorySource(nil)
	src.Put(stationA, record(stationA, 1900, 1, domain.ElementTMAX, seq(1, 31)...))
	agg, _ := newAggregator(t, src)

	stat, err := agg.Aggregate(context.Background(), stationA, 1900, 1, domain.ElementTMAX)
	require.NoError(t, err)

	assert.InDelta(t, 16.0, stat.Mean, 1e-9)
	assert.InDelta(t, 1.0, stat.Min, 0)
	assert.InDelta(t, 31.0, stat.Max, 0)
	assert.Equal(t, 31, stat.Count)
	assert.False(t, stat.Fallback)
	assert.Empty(t, agg.BadMonths())
}

func TestAggregate_SparseMonthFallsBackToClimatology(t *testing.T) {
	src := station.NewMemorySource(nil)
	src.Put(stationA,
		record(stationA, 1900, 1, domain.ElementTMAX, seq(1, 31)...),
		record(stationA, 1901, 1, domain.ElementTMAX, 100, 100, 100, 100, 100),
	)
	agg, metrics := newAggregator(t, src)

	stat, err := agg.Aggregate(context.Background(), stationA, 1901, 1, domain.ElementTMAX)
	require.NoError(t, err)

	// Every January TMAX value: 1..31 from 1900 plus five 100s from 1901.
	assert.InDelta(t, (496.0+500.0)/36.0, stat.Mean, 1e-9)
	assert.InDelta(t, 1.0, stat.Min, 0)
	assert.InDelta(t, 100.0, stat.Max, 0)
	assert.Equal(t, 36, stat.Count)
	assert.True(t, stat.Fallback)
	assert.Equal(t, map[string]int{stationA: 1}, agg.BadMonths())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SparseMonths.WithLabelValues(stationA)), 0)
}

func TestAggregate_ThresholdIsInclusive(t *testing.T) {
	src := station.NewMemorySource(nil)
	src.Put(stationA,
		record(stationA, 1900, 2, domain.ElementTMIN, seq(0, 15)...),
		record(stationA, 1901, 2, domain.ElementTMIN, seq(500, 20)...),
	)
	agg, _ := newAggregator(t, src)

	stat, err := agg.Aggregate(context.Background(), stationA, 1900, 2, domain.ElementTMIN)
	require.NoError(t, err)
	assert.False(t, stat.Fallback)
	assert.InDelta(t, 14.0, stat.Max, 0)
}

func TestAggregate_NoDataIsNaN(t *testing.T) {
	src := station.NewMemorySource(nil)
	src.Put(stationA, record(stationA, 1900, 1, domain.ElementTMAX, seq(1, 31)...))
	agg, _ := newAggregator(t, src)

	stat, err := agg.Aggregate(context.Background(), stationA, 1900, 6, domain.ElementPRCP)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(stat.Mean))
	assert.True(t, math.IsNaN(stat.Min))
	assert.True(t, math.IsNaN(stat.Max))
	assert.False(t, stat.HasData())
	assert.Equal(t, 1, agg.BadMonths()[stationA])
}

func TestAggregate_MissingStation(t *testing.T) {
	agg, _ := newAggregator(t, station.NewMemorySource(nil))

	_, err := agg.Aggregate(context.Background(), stationA, 1900, 1, domain.ElementTMAX)
	var missing *domain.MissingFileError
	require.ErrorAs(t, err, &missing)
}

func TestBuild_RowsAndColumns(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	src := station.NewMemorySource(nil)
	src.Put(stationA,
		record(stationA, 1900, 2, domain.ElementTMAX, seq(10, 28)...),
		record(stationA, 1900, 2, domain.ElementTMIN, seq(-10, 28)...),
		record(stationA, 1900, 2, domain.ElementPRCP, seq(0, 28)...),
	)
	src.Put(stationB, record(stationB, 1901, 2, domain.ElementTMAX, seq(50, 20)...))
	agg, metrics := newAggregator(t, src)
	b := NewBuilder(agg, discardLogger(), metrics)

	var seen []int
	b.OnYear(func(year int) { seen = append(seen, year) })

	res, err := b.Build(context.Background(), []string{stationA, stationB}, []int{2}, 1900, 1901)
	require.NoError(t, err)

	table := res.Table
	assert.Equal(t, []int{1900, 1901}, seen)
	assert.Equal(t, fake.Now(), table.GeneratedAt)
	assert.NotEmpty(t, table.RunID)
	require.Len(t, table.Columns, 2*domain.ColumnsPerStationMonth)
	require.Len(t, table.Rows, 2)
	if diff := cmp.Diff(domain.BuildSchema([]string{stationA, stationB}, []int{2}), table.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	row1900 := table.Rows[0]
	assert.Equal(t, 1900, row1900.Year)
	// Station A, Feb 1900: TMAX 10..37, TMIN -10..17, PRCP 0..27.
	want := []float64{23.5, 10, 37, 3.5, -10, 17, 13.5, 27}
	assert.InDeltaSlice(t, want, row1900.Values[:8], 1e-9)

	// Station B only has TMAX, in 1901. For 1900 it falls back to that
	// climatology; TMIN and PRCP have nothing at all.
	assert.InDeltaSlice(t, []float64{59.5, 50, 69}, row1900.Values[8:11], 1e-9)
	for _, v := range row1900.Values[11:16] {
		assert.True(t, math.IsNaN(v))
	}

	// Station A has no 1901 data so it reuses Feb 1900 for every element.
	row1901 := table.Rows[1]
	assert.InDeltaSlice(t, want, row1901.Values[:8], 1e-9)

	// 5 empty cells per year for station B.
	assert.Equal(t, 10, res.NoDataCells)
	assert.InDelta(t, 10, testutil.ToFloat64(metrics.NoDataCells), 0)
	assert.Equal(t, map[string]int{stationA: 3, stationB: 5}, res.BadMonths)
}

func TestBuild_IsDeterministic(t *testing.T) {
	src := station.NewMemorySource(nil)
	src.Put(stationA, record(stationA, 1950, 7, domain.ElementTMAX, seq(300, 31)...))
	src.Put(stationB, record(stationB, 1950, 7, domain.ElementPRCP, seq(0, 31)...))

	build := func() domain.FeatureTable {
		agg, metrics := newAggregator(t, src)
		res, err := NewBuilder(agg, discardLogger(), metrics).Build(context.Background(), []string{stationB, stationA}, []int{7, 6}, 1949, 1951)
		require.NoError(t, err)
		return res.Table
	}
	first, second := build(), build()

	assert.Equal(t, first.Header(), second.Header())
	assert.Equal(t, "TMAXavg_"+stationB+"_month7", first.Header()[1])
	nanEqual := cmp.Comparer(func(a, b float64) bool {
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	})
	if diff := cmp.Diff(first.Rows, second.Rows, nanEqual); diff != "" {
		t.Errorf("rows differ between runs (-first +second):\n%s", diff)
	}
}

func TestBuild_AbortsOnMissingStation(t *testing.T) {
	src := station.NewMemorySource(nil)
	src.Put(stationA, record(stationA, 1900, 1, domain.ElementTMAX, seq(1, 31)...))
	agg, metrics := newAggregator(t, src)

	res, err := NewBuilder(agg, discardLogger(), metrics).Build(context.Background(), []string{stationA, stationB}, []int{1}, 1900, 1900)
	require.Error(t, err)
	var missing *domain.MissingFileError
	assert.True(t, errors.As(err, &missing))
	assert.Empty(t, res.Table.Rows)
}

func TestBuild_RejectsBadInputs(t *testing.T) {
	agg, metrics := newAggregator(t, station.NewMemorySource(nil))
	b := NewBuilder(agg, discardLogger(), metrics)

	_, err := b.Build(context.Background(), nil, []int{1}, 1900, 1901)
	require.Error(t, err)
	_, err = b.Build(context.Background(), []string{stationA}, []int{13}, 1900, 1901)
	require.Error(t, err)
	_, err = b.Build(context.Background(), []string{stationA}, []int{1}, 1901, 1900)
	require.Error(t, err)
}

func TestBuild_StopsOnCancelledContext(t *testing.T) {
	src := station.NewMemorySource(nil)
	src.Put(stationA, record(stationA, 1900, 1, domain.ElementTMAX, seq(1, 31)...))
	agg, metrics := newAggregator(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(agg, discardLogger(), metrics).Build(ctx, []string{stationA}, []int{1}, 1900, 1900)
	require.ErrorIs(t, err, context.Canceled)
}
