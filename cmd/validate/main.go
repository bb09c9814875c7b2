// Command validate checks a finished run's artifacts against the configured
// study: the feature table header must match the column schema, years must be
// contiguous over the window, statistics must be internally consistent, and
// every prediction line must agree with its own trend and departure.
//
// The expected schema comes from the same environment variables the pipeline
// reads (STATION_IDS, START_MONTH, ...).
//
// Usage:
//
//	go run ./cmd/validate -features weather.csv -predictions predictions.csv
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/couchcryptid/maize-yield-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-yield-etl/internal/config"
	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// Plausible range of daily temperatures, in tenths of a degree C.
const (
	minTemperature = -900
	maxTemperature = 600
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	featuresPath := flag.String("features", cfg.FeatureTablePath, "path to the feature table CSV")
	predictionsPath := flag.String("predictions", cfg.PredictionsPath, "path to the prediction report CSV (skipped when absent)")
	flag.Parse()

	if code := run(cfg, *featuresPath, *predictionsPath); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, featuresPath, predictionsPath string) int {
	fmt.Println("=== Feature Table Validation ===")
	fmt.Println()

	table, err := csvfile.ReadFeaturesFile(featuresPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load feature table: %v\n", err)
		return 1
	}
	cols := domain.BuildSchema(cfg.StationIDs, cfg.Months())

	phases := []*phase{
		validateSchema(table, cols),
		validateYears(table, cfg.Window()),
		validateStatistics(table, cols),
	}

	preds, err := loadPredictions(predictionsPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Printf("No prediction report at %s, skipping.\n", predictionsPath)
	case err != nil:
		fmt.Fprintf(os.Stderr, "FATAL: load predictions: %v\n", err)
		return 1
	default:
		phases = append(phases, validatePredictions(preds, table))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d years x %d columns, %d empty cells, %d predictions\n",
		len(table.Rows), len(table.Header)-1, countEmpty(table), len(preds))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: header ──

func validateSchema(table csvfile.Table, cols []domain.Column) *phase {
	p := &phase{name: "Phase 1: Schema (header vs configuration)"}

	want := append([]string{"year"}, domain.ColumnNames(cols)...)
	if len(table.Header) != len(want) {
		p.errorf("header has %d columns, want %d", len(table.Header), len(want))
	}
	for i := range min(len(want), len(table.Header)) {
		if table.Header[i] != want[i] {
			p.errorf("column %d: got %q, want %q", i, table.Header[i], want[i])
		}
	}
	return p
}

// ── Phase 2: years ──

func validateYears(table csvfile.Table, window domain.StudyWindow) *phase {
	p := &phase{name: "Phase 2: Years (contiguous study window)"}

	if len(table.Rows) != window.Years() {
		p.errorf("table has %d rows, window %d-%d has %d years", len(table.Rows), window.StartYear, window.EndYear, window.Years())
	}
	for i, row := range table.Rows {
		if want := window.StartYear + i; row.Year != want {
			p.errorf("row %d: year %d, want %d", i+1, row.Year, want)
		}
	}
	return p
}

// ── Phase 3: statistics ──

func validateStatistics(table csvfile.Table, cols []domain.Column) *phase {
	p := &phase{name: "Phase 3: Statistics (ranges and ordering)"}
	if len(table.Header)-1 != len(cols) {
		p.errorf("skipped: header does not match the schema")
		return p
	}

	for _, row := range table.Rows {
		byStat := make(map[domain.Column]float64, 3)
		for i, c := range cols {
			v := row.Values[i]
			if math.IsNaN(v) {
				continue
			}
			checkRange(p, row.Year, c, v)

			key := c
			key.Statistic = ""
			if c.Statistic == domain.StatAvg {
				byStat[key] = v
				continue
			}
			avg, ok := byStat[key]
			if !ok {
				continue
			}
			if c.Statistic == domain.StatMin && v > avg {
				p.errorf("%d %s: min %g above avg %g", row.Year, c.Name(), v, avg)
			}
			if c.Statistic == domain.StatMax && v < avg {
				p.errorf("%d %s: max %g below avg %g", row.Year, c.Name(), v, avg)
			}
		}
	}
	return p
}

func checkRange(p *phase, year int, c domain.Column, v float64) {
	switch c.Element {
	case domain.ElementPRCP:
		if v < 0 {
			p.errorf("%d %s: negative precipitation %g", year, c.Name(), v)
		}
	default:
		if v < minTemperature || v > maxTemperature {
			p.errorf("%d %s: temperature %g out of range", year, c.Name(), v)
		}
	}
}

// ── Phase 4: predictions ──

type predictionLine struct {
	lineNum int
	fields  map[string]string
}

func loadPredictions(path string) ([]predictionLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty prediction report")
	}
	if !slices.Equal(records[0], csvfile.PredictionHeader) {
		return nil, fmt.Errorf("unexpected header %v", records[0])
	}

	out := make([]predictionLine, 0, len(records)-1)
	for i, rec := range records[1:] {
		fields := make(map[string]string, len(rec))
		for j, name := range records[0] {
			fields[name] = rec[j]
		}
		out = append(out, predictionLine{lineNum: i + 2, fields: fields})
	}
	return out, nil
}

func validatePredictions(preds []predictionLine, table csvfile.Table) *phase {
	p := &phase{name: "Phase 4: Predictions (internal consistency)"}

	years := make(map[int]bool, len(table.Rows))
	for _, r := range table.Rows {
		years[r.Year] = true
	}

	for _, line := range preds {
		num := func(name string) float64 {
			v, err := strconv.ParseFloat(line.fields[name], 64)
			if err != nil {
				p.errorf("line %d: %s %q is not a number", line.lineNum, name, line.fields[name])
				return math.NaN()
			}
			return v
		}

		year, err := strconv.Atoi(line.fields["year"])
		if err != nil {
			p.errorf("line %d: bad year %q", line.lineNum, line.fields["year"])
			continue
		}
		if !years[year] {
			p.errorf("line %d: year %d has no feature row", line.lineNum, year)
		}

		actual, trend := num("actual"), num("technological_trend")
		pd, predicted := num("predicted_departure"), num("predicted")
		improvement := num("improvement")

		if !approxEqual(predicted, trend*(1+pd)) {
			p.errorf("line %d: predicted %g, want trend*(1+departure) = %g", line.lineNum, predicted, trend*(1+pd))
		}
		if want := math.Abs(trend-actual) - math.Abs(actual-predicted); !approxEqual(improvement, want) {
			p.errorf("line %d: improvement %g, want %g", line.lineNum, improvement, want)
		}
		win, err := strconv.ParseBool(line.fields["win"])
		if err != nil {
			p.errorf("line %d: bad win %q", line.lineNum, line.fields["win"])
		} else if win != (improvement > 0) {
			p.errorf("line %d: win=%t but improvement is %g", line.lineNum, win, improvement)
		}
	}
	return p
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func countEmpty(table csvfile.Table) int {
	n := 0
	for _, r := range table.Rows {
		for _, v := range r.Values {
			if math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}
