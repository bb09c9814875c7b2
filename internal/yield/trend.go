package yield

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// DefaultBreakpoints are the years the technological slope changes.
var DefaultBreakpoints = Breakpoints{1937, 1962}

// Breakpoints split the yield history into three eras. Each breakpoint is the
// first year of the following era.
type Breakpoints [2]int

// Era returns the era year falls in.
func (b Breakpoints) Era(year int) domain.Era {
	switch {
	case year < b[0]:
		return domain.EraEarly
	case year < b[1]:
		return domain.EraMiddle
	default:
		return domain.EraModern
	}
}

// Line is an ordinary least squares fit of yield against year.
type Line struct {
	Intercept float64
	Slope     float64
	Points    int
}

// At evaluates the line at year.
func (l Line) At(year int) float64 {
	return l.Intercept + l.Slope*float64(year)
}

// Trend is a fitted three-era technological trend.
type Trend struct {
	Breakpoints Breakpoints
	Lines       map[domain.Era]Line
}

// Fit fits one independent line per era over the whole history.
func Fit(history []domain.YieldRecord, bp Breakpoints) (*Trend, error) {
	if bp[0] >= bp[1] {
		return nil, fmt.Errorf("breakpoint %d must precede %d", bp[0], bp[1])
	}
	xs := make(map[domain.Era][]float64, 3)
	ys := make(map[domain.Era][]float64, 3)
	for _, r := range history {
		era := bp.Era(r.Year)
		xs[era] = append(xs[era], float64(r.Year))
		ys[era] = append(ys[era], r.Value)
	}

	t := &Trend{Breakpoints: bp, Lines: make(map[domain.Era]Line, 3)}
	for _, era := range []domain.Era{domain.EraEarly, domain.EraMiddle, domain.EraModern} {
		x, y := xs[era], ys[era]
		if len(x) < 2 {
			return nil, fmt.Errorf("era %s needs at least 2 yield years, got %d", era, len(x))
		}
		alpha, beta := stat.LinearRegression(x, y, nil, false)
		t.Lines[era] = Line{Intercept: alpha, Slope: beta, Points: len(x)}
	}
	return t, nil
}

// Apply returns the history restricted to window, with each year's trend,
// era and fractional departure filled in.
func (t *Trend) Apply(history []domain.YieldRecord, window domain.StudyWindow) ([]domain.YieldRecord, error) {
	out := make([]domain.YieldRecord, 0, len(history))
	for _, r := range history {
		if !window.Contains(r.Year) {
			continue
		}
		era := t.Breakpoints.Era(r.Year)
		trend := t.Lines[era].At(r.Year)
		if trend == 0 {
			return nil, fmt.Errorf("trend is zero in %d", r.Year)
		}
		r.Era = era
		r.Trend = trend
		r.Departure = (r.Value - trend) / trend
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, errors.New("no yield years inside the study window")
	}
	return out, nil
}

// FitTrend fits the trend on the full history and returns the departures
// inside window.
func FitTrend(history []domain.YieldRecord, bp Breakpoints, window domain.StudyWindow) ([]domain.YieldRecord, *Trend, error) {
	t, err := Fit(history, bp)
	if err != nil {
		return nil, nil, err
	}
	records, err := t.Apply(history, window)
	if err != nil {
		return nil, nil, err
	}
	return records, t, nil
}
