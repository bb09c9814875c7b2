package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Statistic is a monthly aggregate of an element.
type Statistic string

const (
	StatAvg Statistic = "avg"
	StatMin Statistic = "min"
	StatMax Statistic = "max"
)

// elementStats is the per station-month column block, in order. PRCP min is
// left out on purpose: most days have no rain.
var elementStats = []struct {
	element Element
	stats   []Statistic
}{
	{ElementTMAX, []Statistic{StatAvg, StatMin, StatMax}},
	{ElementTMIN, []Statistic{StatAvg, StatMin, StatMax}},
	{ElementPRCP, []Statistic{StatAvg, StatMax}},
}

// ColumnsPerStationMonth is the width of one station-month block.
const ColumnsPerStationMonth = 8

// Column describes one feature column.
type Column struct {
	StationID string
	Month     int
	Element   Element
	Statistic Statistic
}

// Name is the column's header in the feature table, e.g. "TMAXavg_USW00014936_month2".
func (c Column) Name() string {
	return string(c.Element) + string(c.Statistic) + "_" + c.StationID + "_month" + strconv.Itoa(c.Month)
}

// BuildSchema returns the ordered feature columns for the given stations and
// months: stations in the given order, months in the given order within each
// station, then the fixed element/statistic block. The same inputs always give
// the same columns.
func BuildSchema(stationIDs []string, months []int) []Column {
	cols := make([]Column, 0, len(stationIDs)*len(months)*ColumnsPerStationMonth)
	for _, id := range stationIDs {
		for _, m := range months {
			for _, es := range elementStats {
				for _, st := range es.stats {
					cols = append(cols, Column{StationID: id, Month: m, Element: es.element, Statistic: st})
				}
			}
		}
	}
	return cols
}

// ColumnNames maps columns to their headers.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	return names
}

// ValidateSchemaInputs rejects station and month lists that would produce an
// ambiguous or empty schema.
func ValidateSchemaInputs(stationIDs []string, months []int) error {
	if len(stationIDs) == 0 {
		return errors.New("no stations configured")
	}
	if len(months) == 0 {
		return errors.New("no months configured")
	}
	seen := make(map[string]bool, len(stationIDs))
	for _, id := range stationIDs {
		if id == "" {
			return errors.New("blank station ID")
		}
		if seen[id] {
			return fmt.Errorf("duplicate station ID %s", id)
		}
		seen[id] = true
	}
	seenMonth := make(map[int]bool, len(months))
	for _, m := range months {
		if m < 1 || m > 12 {
			return fmt.Errorf("month %d out of range 1-12", m)
		}
		if seenMonth[m] {
			return fmt.Errorf("duplicate month %d", m)
		}
		seenMonth[m] = true
	}
	return nil
}

// FeatureRow is one year's feature vector, aligned with FeatureTable.Columns.
// NaN marks a statistic with no data.
type FeatureRow struct {
	Year   int       `json:"year"`
	Values []float64 `json:"values"`
}

// FeatureTable is the pipeline's output artifact.
type FeatureTable struct {
	Columns     []Column
	Rows        []FeatureRow
	RunID       string
	GeneratedAt time.Time
}

// Header returns the column names, preceded by "year".
func (t FeatureTable) Header() []string {
	return append([]string{"year"}, ColumnNames(t.Columns)...)
}

// Row returns the row for year.
func (t FeatureTable) Row(year int) (FeatureRow, bool) {
	for _, r := range t.Rows {
		if r.Year == year {
			return r, true
		}
	}
	return FeatureRow{}, false
}

// Named maps a row's values to column names. Cells without data map to nil.
func (t FeatureTable) Named(row FeatureRow) (map[string]*float64, error) {
	if len(row.Values) != len(t.Columns) {
		return nil, fmt.Errorf("row %d has %d values for %d columns", row.Year, len(row.Values), len(t.Columns))
	}
	out := make(map[string]*float64, len(t.Columns))
	for i, v := range row.Values {
		name := t.Columns[i].Name()
		if math.IsNaN(v) {
			out[name] = nil
			continue
		}
		out[name] = &v
	}
	return out, nil
}
