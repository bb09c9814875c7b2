package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/features"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
	"github.com/couchcryptid/maize-yield-etl/internal/predict"
)

// FeatureBuilder builds the wide feature table.
type FeatureBuilder interface {
	Build(ctx context.Context, stationIDs []string, months []int, startYear, endYear int) (features.Result, error)
}

// FeatureSink persists a finished feature table.
type FeatureSink interface {
	Name() string
	WriteFeatures(ctx context.Context, table domain.FeatureTable) error
}

// DepartureSource returns each study year's yield departure from trend.
type DepartureSource interface {
	Departures(ctx context.Context, window domain.StudyWindow) ([]domain.YieldRecord, error)
}

// DepartureEvaluator predicts departures from features by leave-one-out.
type DepartureEvaluator interface {
	LeaveOneOut(ctx context.Context, table domain.FeatureTable, yields []domain.YieldRecord) ([]domain.Prediction, predict.Summary, error)
}

// PredictionSink persists leave-one-out results.
type PredictionSink interface {
	Name() string
	WritePredictions(ctx context.Context, runID string, preds []domain.Prediction) error
}

// FilterStatsSource reports quality filter tallies. *station.Cache implements it.
type FilterStatsSource interface {
	FilterStats() domain.FilterStats
}

// Plan is what one run builds.
type Plan struct {
	StationIDs []string
	Months     []int
	Window     domain.StudyWindow

	// Stations names stations in the run summary. Optional.
	Stations map[string]domain.StationMetadata
}

// Phase is the stage a run is in.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseBuilding   Phase = "building"
	PhaseWriting    Phase = "writing"
	PhasePredicting Phase = "predicting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Report summarizes a run, including the non-fatal conditions met on the way.
type Report struct {
	RunID       string             `json:"run_id,omitempty"`
	Rows        int                `json:"rows"`
	Columns     int                `json:"columns"`
	NoDataCells int                `json:"no_data_cells"`
	BadMonths   map[string]int     `json:"bad_months,omitempty"`
	Filter      domain.FilterStats `json:"filter"`
	Predictions int                `json:"predictions"`
	Summary     *predict.Summary   `json:"summary,omitempty"`
	Duration    time.Duration      `json:"duration_ns"`
}

// Status is the live view of a run served over HTTP.
type Status struct {
	Phase  Phase  `json:"phase"`
	Error  string `json:"error,omitempty"`
	Report Report `json:"report"`
}

// Pipeline runs one batch: build the feature table, write it to every sink,
// then optionally evaluate departures and write the predictions.
type Pipeline struct {
	builder     FeatureBuilder
	sinks       []FeatureSink
	departures  DepartureSource
	evaluator   DepartureEvaluator
	predictions []PredictionSink
	filterStats FilterStatsSource
	plan        Plan
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool

	mu     sync.Mutex
	status Status
}

// New creates a Pipeline that builds plan with builder and writes to sinks.
func New(builder FeatureBuilder, sinks []FeatureSink, plan Plan, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		builder: builder,
		sinks:   sinks,
		plan:    plan,
		logger:  logger,
		metrics: metrics,
		status:  Status{Phase: PhaseIdle},
	}
}

// WithPrediction enables the leave-one-out stage.
func (p *Pipeline) WithPrediction(departures DepartureSource, evaluator DepartureEvaluator, sinks ...PredictionSink) *Pipeline {
	p.departures = departures
	p.evaluator = evaluator
	p.predictions = sinks
	return p
}

// WithFilterStats adds quality filter tallies to the report.
func (p *Pipeline) WithFilterStats(src FilterStatsSource) *Pipeline {
	p.filterStats = src
	return p
}

// CheckReadiness returns nil once the feature table has been written.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("feature table has not been written yet")
	}
	return nil
}

// Status returns a snapshot of the current run.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Report.BadMonths = maps.Clone(s.Report.BadMonths)
	return s
}

func (p *Pipeline) setPhase(phase Phase) {
	p.mu.Lock()
	p.status.Phase = phase
	p.mu.Unlock()
}

func (p *Pipeline) setReport(r Report) {
	p.mu.Lock()
	p.status.Report = r
	p.mu.Unlock()
}

// Run executes the batch. A build failure aborts before anything is written.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	start := domain.Now()
	report, err := p.run(ctx)
	report.Duration = domain.Now().Sub(start)
	p.setReport(report)

	if err != nil {
		p.mu.Lock()
		p.status.Phase = PhaseFailed
		p.status.Error = err.Error()
		p.mu.Unlock()
		return report, err
	}
	p.setPhase(PhaseDone)
	p.logSummary(report)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context) (Report, error) {
	p.logger.Info("pipeline started",
		"stations", len(p.plan.StationIDs),
		"months", p.plan.Months,
		"start_year", p.plan.Window.StartYear,
		"end_year", p.plan.Window.EndYear,
	)

	p.setPhase(PhaseBuilding)
	buildStart := domain.Now()
	res, err := p.builder.Build(ctx, p.plan.StationIDs, p.plan.Months, p.plan.Window.StartYear, p.plan.Window.EndYear)
	if err != nil {
		return Report{}, fmt.Errorf("build feature table: %w", err)
	}
	p.metrics.BuildDuration.Observe(domain.Now().Sub(buildStart).Seconds())

	table := res.Table
	report := Report{
		RunID:       table.RunID,
		Rows:        len(table.Rows),
		Columns:     len(table.Columns),
		NoDataCells: res.NoDataCells,
		BadMonths:   res.BadMonths,
	}
	if p.filterStats != nil {
		report.Filter = p.filterStats.FilterStats()
	}
	p.setReport(report)

	p.setPhase(PhaseWriting)
	for _, sink := range p.sinks {
		if err := sink.WriteFeatures(ctx, table); err != nil {
			return report, fmt.Errorf("write features to %s: %w", sink.Name(), err)
		}
		p.metrics.RowsWritten.WithLabelValues(sink.Name()).Add(float64(len(table.Rows)))
		p.logger.Info("feature table written", "sink", sink.Name(), "rows", len(table.Rows))
	}
	p.ready.Store(true)

	if p.departures == nil || p.evaluator == nil {
		p.logger.Info("no yield table configured, skipping prediction")
		return report, nil
	}

	p.setPhase(PhasePredicting)
	yields, err := p.departures.Departures(ctx, p.plan.Window)
	if err != nil {
		return report, fmt.Errorf("yield departures: %w", err)
	}
	preds, summary, err := p.evaluator.LeaveOneOut(ctx, table, yields)
	if err != nil {
		return report, fmt.Errorf("leave-one-out: %w", err)
	}
	report.Predictions = len(preds)
	report.Summary = &summary
	p.setReport(report)

	for _, sink := range p.predictions {
		if err := sink.WritePredictions(ctx, table.RunID, preds); err != nil {
			return report, fmt.Errorf("write predictions to %s: %w", sink.Name(), err)
		}
		p.logger.Info("predictions written", "sink", sink.Name(), "years", len(preds))
	}
	return report, nil
}

func (p *Pipeline) logSummary(r Report) {
	for id, n := range r.BadMonths {
		attrs := []any{"station", id, "bad_months", n}
		if md, ok := p.plan.Stations[id]; ok {
			attrs = append(attrs, "name", md.Name, "state", md.State)
		}
		p.logger.Info("station fallback summary", attrs...)
	}
	attrs := []any{
		"run_id", r.RunID,
		"rows", r.Rows,
		"columns", r.Columns,
		"no_data_cells", r.NoDataCells,
		"observations_kept", r.Filter.Kept,
		"quality_flagged", r.Filter.QualityFlagged,
		"synoptic", r.Filter.Synoptic,
		"duration", r.Duration,
	}
	if r.Summary != nil {
		attrs = append(attrs, "outperformed", r.Summary.String())
	}
	p.logger.Info("pipeline finished", attrs...)
}
