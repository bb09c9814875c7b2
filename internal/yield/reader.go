// Package yield reads reported maize yields and fits the piecewise
// technological trend that departures are measured from.
package yield

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// DefaultPeriods keeps whole-year rows and drops forecasts.
var DefaultPeriods = []string{"YEAR"}

// ReadYields reads a USDA-style delimited table with at least Year, Period
// and Value columns. Only rows whose Period is one of periods are kept.
// The result is sorted by year; two accepted rows for the same year are an
// error. source names the input in errors.
func ReadYields(r io.Reader, source string, periods []string) ([]domain.YieldRecord, error) {
	if len(periods) == 0 {
		periods = DefaultPeriods
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.ParseError{Source: source, Line: 1, Reason: "empty yield table"}
		}
		return nil, fmt.Errorf("read %s header: %w", source, err)
	}
	yearCol, periodCol, valueCol := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "year":
			yearCol = i
		case "period":
			periodCol = i
		case "value":
			valueCol = i
		}
	}
	for _, c := range []struct {
		name string
		col  int
	}{{"Year", yearCol}, {"Period", periodCol}, {"Value", valueCol}} {
		if c.col < 0 {
			return nil, &domain.ParseError{Source: source, Line: 1, Field: c.name, Reason: "column not found"}
		}
	}
	width := max(yearCol, periodCol, valueCol) + 1

	var out []domain.YieldRecord
	seen := make(map[int]bool)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) < width {
			return nil, &domain.ParseError{Source: source, Line: line, Reason: fmt.Sprintf("expected at least %d fields, got %d", width, len(row))}
		}
		if !slices.Contains(periods, strings.TrimSpace(row[periodCol])) {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(row[yearCol]))
		if err != nil {
			return nil, &domain.ParseError{Source: source, Line: line, Field: "Year", Reason: fmt.Sprintf("not a number: %q", row[yearCol])}
		}
		value, err := parseValue(row[valueCol])
		if err != nil {
			return nil, &domain.ParseError{Source: source, Line: line, Field: "Value", Reason: err.Error()}
		}
		if seen[year] {
			return nil, &domain.ParseError{Source: source, Line: line, Field: "Year", Reason: fmt.Sprintf("duplicate year %d", year)}
		}
		seen[year] = true
		out = append(out, domain.YieldRecord{Year: year, Value: value})
	}

	slices.SortFunc(out, func(a, b domain.YieldRecord) int { return a.Year - b.Year })
	return out, nil
}

// parseValue accepts thousands separators, e.g. "1,234.5".
func parseValue(s string) (float64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}
