// Package mockdata generates deterministic synthetic GHCN-Daily station files
// and a matching USDA-style yield table for demos and tests.
package mockdata

import (
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// Options controls the generated data.
type Options struct {
	StartYear int
	EndYear   int
	Seed      uint64

	// SparseEvery makes every Nth station-month carry only five readings, so
	// the climatology fallback is exercised. Zero disables it.
	SparseEvery int
}

// DefaultOptions covers a short window with occasional sparse months.
func DefaultOptions() Options {
	return Options{StartYear: 1950, EndYear: 1979, Seed: 1, SparseEvery: 23}
}

func (o Options) rng(salt string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(salt))
	return rand.New(rand.NewPCG(o.Seed, h.Sum64()))
}

// Station returns the raw records of one station for every year and month of
// the options. Besides valid readings it contains missing days, quality
// flagged days, synoptic (S) days and a SNOW record per year.
func Station(opts Options, stationID string) []domain.RawStationRecord {
	r := opts.rng(stationID)
	// Per-station climate offsets in tenths of a degree.
	offset := r.IntN(60) - 30

	var out []domain.RawStationRecord
	n := 0
	for year := opts.StartYear; year <= opts.EndYear; year++ {
		for month := 1; month <= 12; month++ {
			n++
			sparse := opts.SparseEvery > 0 && n%opts.SparseEvery == 0
			season := -math.Cos(2 * math.Pi * float64(month-1) / 12)
			for _, el := range domain.TargetElements {
				rec := domain.RawStationRecord{StationID: stationID, Year: year, Month: month, Element: el}
				for day := 1; day <= domain.DaysPerRecord; day++ {
					slot := &rec.Days[day-1]
					if day > daysIn(year, month) || (sparse && day > 5) || r.IntN(40) == 0 {
						slot.Reading = domain.Missing
						continue
					}
					slot.Reading = domain.Present(reading(r, el, season, offset))
					switch r.IntN(200) {
					case 0:
						slot.Quality = 'I'
					case 1:
						slot.Source = domain.SourceSynoptic
					}
				}
				out = append(out, rec)
			}
		}
		snow := domain.RawStationRecord{StationID: stationID, Year: year, Month: 1, Element: "SNOW"}
		snow.Days[0].Reading = domain.Present(25)
		out = append(out, snow)
	}
	return out
}

func reading(r *rand.Rand, el domain.Element, season float64, offset int) int {
	switch el {
	case domain.ElementTMAX:
		return int(150+130*season) + offset + int(r.NormFloat64()*40)
	case domain.ElementTMIN:
		return int(20+120*season) + offset + int(r.NormFloat64()*40)
	default:
		if r.IntN(3) > 0 {
			return 0
		}
		return int(r.ExpFloat64() * 60)
	}
}

// Yields returns one whole-year yield per year, following a three-era
// technological trend with noise. The history starts well before the window
// so every era can be fitted.
func Yields(opts Options) []domain.YieldRecord {
	r := opts.rng("yield")
	from := min(opts.StartYear, 1920)
	var out []domain.YieldRecord
	for year := from; year <= opts.EndYear; year++ {
		var trend float64
		switch {
		case year < 1937:
			trend = 26 + 0.02*float64(year-1920)
		case year < 1962:
			trend = 28 + 0.9*float64(year-1937)
		default:
			trend = 62 + 1.9*float64(year-1962)
		}
		dep := r.NormFloat64() * 0.08
		out = append(out, domain.YieldRecord{Year: year, Value: math.Round(trend*(1+dep)*10) / 10})
	}
	return out
}

// WriteStation writes records in .dly format.
func WriteStation(w io.Writer, records []domain.RawStationRecord) error {
	for _, rec := range records {
		if _, err := io.WriteString(w, rec.Format()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteYields writes a USDA-style yield table with a forecast row ahead of
// each year to exercise the Period filter.
func WriteYields(w io.Writer, records []domain.YieldRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Program", "Year", "Period", "Geo Level", "Commodity", "Data Item", "Value"}); err != nil {
		return err
	}
	const item = "CORN, GRAIN - YIELD, MEASURED IN BU / ACRE"
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		year := strconv.Itoa(rec.Year)
		value := strconv.FormatFloat(rec.Value, 'f', 1, 64)
		if err := cw.Write([]string{"SURVEY", year, "AUG YIELD FCST", "NATIONAL", "CORN", item, value}); err != nil {
			return err
		}
		if err := cw.Write([]string{"SURVEY", year, "YEAR", "NATIONAL", "CORN", item, value}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write yields: %w", err)
	}
	return nil
}

// Inventory returns made-up ghcnd-stations.txt entries for the given IDs.
func Inventory(opts Options, stationIDs []string) []domain.StationMetadata {
	out := make([]domain.StationMetadata, 0, len(stationIDs))
	for i, id := range stationIDs {
		r := opts.rng("inventory" + id)
		out = append(out, domain.StationMetadata{
			ID:        id,
			Latitude:  math.Round((38+r.Float64()*10)*1e4) / 1e4,
			Longitude: math.Round((-120+r.Float64()*40)*1e4) / 1e4,
			Elevation: math.Round(r.Float64()*15000) / 10,
			State:     "SD",
			Name:      fmt.Sprintf("MOCK STATION %d", i+1),
		})
	}
	return out
}

// WriteInventory writes entries in the fixed-width ghcnd-stations.txt layout.
func WriteInventory(w io.Writer, stations []domain.StationMetadata) error {
	for _, s := range stations {
		if _, err := fmt.Fprintf(w, "%-11s %8.4f %9.4f %6.1f %-2s %-30s\n",
			s.ID, s.Latitude, s.Longitude, s.Elevation, s.State, s.Name); err != nil {
			return err
		}
	}
	return nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
