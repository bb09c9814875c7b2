// Package postgres stores feature rows and leave-one-out predictions in
// PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS feature_rows (
	run_id       TEXT        NOT NULL,
	year         INTEGER     NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	features     JSONB       NOT NULL,
	PRIMARY KEY (run_id, year)
);

CREATE TABLE IF NOT EXISTS predictions (
	run_id                    TEXT             NOT NULL,
	year                      INTEGER          NOT NULL,
	actual                    DOUBLE PRECISION NOT NULL,
	technological_trend       DOUBLE PRECISION NOT NULL,
	departure_from_trend      DOUBLE PRECISION NOT NULL,
	predicted_departure       DOUBLE PRECISION,
	predicted                 DOUBLE PRECISION,
	technological_trend_error DOUBLE PRECISION NOT NULL,
	prediction_error          DOUBLE PRECISION,
	improvement               DOUBLE PRECISION,
	win                       BOOLEAN          NOT NULL,
	PRIMARY KEY (run_id, year)
);`

const insertFeatureRow = `
INSERT INTO feature_rows (run_id, year, generated_at, features)
VALUES (:run_id, :year, :generated_at, :features)
ON CONFLICT (run_id, year) DO UPDATE
SET generated_at = EXCLUDED.generated_at, features = EXCLUDED.features`

const insertPrediction = `
INSERT INTO predictions (
	run_id, year, actual, technological_trend, departure_from_trend,
	predicted_departure, predicted, technological_trend_error,
	prediction_error, improvement, win
) VALUES (
	:run_id, :year, :actual, :technological_trend, :departure_from_trend,
	:predicted_departure, :predicted, :technological_trend_error,
	:prediction_error, :improvement, :win
)
ON CONFLICT (run_id, year) DO NOTHING`

// Store implements pipeline.FeatureSink and pipeline.PredictionSink.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to databaseURL, verifies the connection and creates the
// tables if needed.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewStore(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("postgres sink ready")
	return s, nil
}

// NewStore wraps an open connection.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Name() string { return "postgres" }

// WriteFeatures upserts every row of table in one transaction.
func (s *Store) WriteFeatures(ctx context.Context, table domain.FeatureTable) error {
	rows, err := featureRows(table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertFeatureRow, rows); err != nil {
			return fmt.Errorf("insert feature rows: %w", err)
		}
		return nil
	})
}

// WritePredictions inserts the leave-one-out results of runID.
func (s *Store) WritePredictions(ctx context.Context, runID string, preds []domain.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	rows := predictionRows(runID, preds)
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertPrediction, rows); err != nil {
			return fmt.Errorf("insert predictions: %w", err)
		}
		return nil
	})
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type featureRow struct {
	RunID       string    `db:"run_id"`
	Year        int       `db:"year"`
	GeneratedAt time.Time `db:"generated_at"`
	Features    []byte    `db:"features"`
}

func featureRows(table domain.FeatureTable) ([]featureRow, error) {
	out := make([]featureRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		named, err := table.Named(row)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(named)
		if err != nil {
			return nil, fmt.Errorf("encode features for %d: %w", row.Year, err)
		}
		out = append(out, featureRow{
			RunID:       table.RunID,
			Year:        row.Year,
			GeneratedAt: table.GeneratedAt,
			Features:    data,
		})
	}
	return out, nil
}

type predictionRow struct {
	RunID              string   `db:"run_id"`
	Year               int      `db:"year"`
	Actual             float64  `db:"actual"`
	Trend              float64  `db:"technological_trend"`
	Departure          float64  `db:"departure_from_trend"`
	PredictedDeparture *float64 `db:"predicted_departure"`
	Predicted          *float64 `db:"predicted"`
	TrendError         float64  `db:"technological_trend_error"`
	PredictionError    *float64 `db:"prediction_error"`
	Improvement        *float64 `db:"improvement"`
	Win                bool     `db:"win"`
}

// predictionRows converts results to rows; non-finite model outputs become NULL.
func predictionRows(runID string, preds []domain.Prediction) []predictionRow {
	out := make([]predictionRow, len(preds))
	for i, p := range preds {
		out[i] = predictionRow{
			RunID:              runID,
			Year:               p.Year,
			Actual:             p.Actual,
			Trend:              p.Trend,
			Departure:          p.Departure,
			PredictedDeparture: finite(p.PredictedDeparture),
			Predicted:          finite(p.Predicted),
			TrendError:         p.TrendError,
			PredictionError:    finite(p.PredictionError),
			Improvement:        finite(p.Improvement),
			Win:                p.Win,
		}
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
