// Package csvfile writes the feature table and the prediction report as CSV
// artifacts and reads the feature table back for validation.
package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// PredictionHeader is the column order of the prediction report.
var PredictionHeader = []string{
	"year",
	"actual",
	"technological_trend",
	"departure_from_trend",
	"predicted_departure",
	"predicted",
	"technological_trend_error",
	"prediction_error",
	"improvement",
	"win",
}

// FeatureWriter writes the feature table to a CSV file. The file is replaced
// atomically so a failed run never leaves a partial table.
type FeatureWriter struct {
	path string
}

// NewFeatureWriter creates a writer for path.
func NewFeatureWriter(path string) *FeatureWriter {
	return &FeatureWriter{path: path}
}

func (w *FeatureWriter) Name() string { return "csv" }

// WriteFeatures writes the header and one line per year. Cells without data are empty.
func (w *FeatureWriter) WriteFeatures(_ context.Context, table domain.FeatureTable) error {
	return writeAtomic(w.path, func(out io.Writer) error {
		return EncodeFeatures(out, table)
	})
}

// EncodeFeatures writes table as CSV to out.
func EncodeFeatures(out io.Writer, table domain.FeatureTable) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(table.Header()); err != nil {
		return err
	}
	record := make([]string, len(table.Columns)+1)
	for _, row := range table.Rows {
		if len(row.Values) != len(table.Columns) {
			return fmt.Errorf("row %d has %d values for %d columns", row.Year, len(row.Values), len(table.Columns))
		}
		record[0] = strconv.Itoa(row.Year)
		for i, v := range row.Values {
			record[i+1] = formatFloat(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PredictionWriter writes the leave-one-out report to a CSV file.
type PredictionWriter struct {
	path string
}

// NewPredictionWriter creates a writer for path.
func NewPredictionWriter(path string) *PredictionWriter {
	return &PredictionWriter{path: path}
}

func (w *PredictionWriter) Name() string { return "csv" }

// WritePredictions writes one line per evaluated year.
func (w *PredictionWriter) WritePredictions(_ context.Context, _ string, preds []domain.Prediction) error {
	return writeAtomic(w.path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(PredictionHeader); err != nil {
			return err
		}
		for _, p := range preds {
			if err := cw.Write([]string{
				strconv.Itoa(p.Year),
				formatFloat(p.Actual),
				formatFloat(p.Trend),
				formatFloat(p.Departure),
				formatFloat(p.PredictedDeparture),
				formatFloat(p.Predicted),
				formatFloat(p.TrendError),
				formatFloat(p.PredictionError),
				formatFloat(p.Improvement),
				strconv.FormatBool(p.Win),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// Table is a feature table read back from CSV. Header includes the leading "year".
type Table struct {
	Header []string
	Rows   []domain.FeatureRow
}

// ReadFeatures parses a feature table CSV. Empty cells become NaN.
func ReadFeatures(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, errors.New("empty feature table")
		}
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	if header[0] != "year" {
		return Table{}, fmt.Errorf("first column is %q, want \"year\"", header[0])
	}

	t := Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		year, err := strconv.Atoi(rec[0])
		if err != nil {
			return Table{}, &domain.ParseError{Source: "feature table", Line: line, Field: "year", Reason: err.Error()}
		}
		row := domain.FeatureRow{Year: year, Values: make([]float64, len(rec)-1)}
		for i, cell := range rec[1:] {
			if cell == "" {
				row.Values[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return Table{}, &domain.ParseError{Source: "feature table", Line: line, Field: header[i+1], Reason: err.Error()}
			}
			row.Values[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFeaturesFile opens and parses a feature table CSV.
func ReadFeaturesFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()
	return ReadFeatures(bufio.NewReader(f))
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeAtomic(path string, encode func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := encode(bw); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
