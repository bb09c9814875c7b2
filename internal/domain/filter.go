package domain

import (
	"fmt"
	"time"
)

// StudyWindow is the inclusive range of years under study.
type StudyWindow struct {
	StartYear int
	EndYear   int
}

// Contains reports whether year lies within the window, bounds included.
func (w StudyWindow) Contains(year int) bool {
	return year >= w.StartYear && year <= w.EndYear
}

// Years returns the number of years in the window.
func (w StudyWindow) Years() int {
	if w.EndYear < w.StartYear {
		return 0
	}
	return w.EndYear - w.StartYear + 1
}

// Validate rejects an empty or inverted window.
func (w StudyWindow) Validate() error {
	if w.StartYear <= 0 || w.EndYear <= 0 {
		return fmt.Errorf("study window years must be positive, got %d-%d", w.StartYear, w.EndYear)
	}
	if w.StartYear > w.EndYear {
		return fmt.Errorf("study window start %d after end %d", w.StartYear, w.EndYear)
	}
	return nil
}

// FilterStats tallies what the quality filter discarded.
type FilterStats struct {
	Records        int // records read
	WrongElement   int // records dropped: element not TMAX/TMIN/PRCP
	OutOfWindow    int // records dropped: year outside the study window
	Missing        int // day slots dropped: -9999 sentinel
	ImpossibleDay  int // day slots dropped: day past the end of the month
	QualityFlagged int // observations dropped: non-blank QFLAG
	Synoptic       int // observations dropped: SFLAG "S"
	Kept           int
}

// Add accumulates o into s.
func (s *FilterStats) Add(o FilterStats) {
	s.Records += o.Records
	s.WrongElement += o.WrongElement
	s.OutOfWindow += o.OutOfWindow
	s.Missing += o.Missing
	s.ImpossibleDay += o.ImpossibleDay
	s.QualityFlagged += o.QualityFlagged
	s.Synoptic += o.Synoptic
	s.Kept += o.Kept
}

// FilterRecords turns a station's decoded records into its observation set.
// Records are dropped by element then by year; surviving day slots are
// expanded, and a slot is dropped when its value is missing, its quality flag
// is set, or its source flag is synoptic. Nothing is repaired.
func FilterRecords(stationID string, records []RawStationRecord, window StudyWindow) (*ObservationSet, FilterStats) {
	stats := FilterStats{Records: len(records)}
	var obs []Observation

	for i := range records {
		rec := &records[i]
		if !rec.Element.IsTarget() {
			stats.WrongElement++
			continue
		}
		if !window.Contains(rec.Year) {
			stats.OutOfWindow++
			continue
		}

		monthDays := daysIn(rec.Year, rec.Month)
		for d, slot := range rec.Days {
			day := d + 1
			if !slot.Reading.Valid {
				stats.Missing++
				continue
			}
			if day > monthDays {
				stats.ImpossibleDay++
				continue
			}
			if slot.Quality.IsSet() {
				stats.QualityFlagged++
				continue
			}
			if slot.Source == SourceSynoptic {
				stats.Synoptic++
				continue
			}
			obs = append(obs, Observation{
				StationID: rec.StationID,
				Year:      rec.Year,
				Month:     rec.Month,
				Day:       day,
				Element:   rec.Element,
				Value:     slot.Reading.Value,
			})
		}
	}

	stats.Kept = len(obs)
	return NewObservationSet(stationID, obs), stats
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
