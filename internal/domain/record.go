package domain

// Element is a GHCN-Daily element code such as TMAX or PRCP.
type Element string

const (
	ElementTMAX Element = "TMAX" // daily maximum temperature, tenths of degrees C
	ElementTMIN Element = "TMIN" // daily minimum temperature, tenths of degrees C
	ElementPRCP Element = "PRCP" // daily precipitation total, tenths of mm
)

// TargetElements lists the elements kept by the quality filter, in schema order.
var TargetElements = []Element{ElementTMAX, ElementTMIN, ElementPRCP}

// IsTarget reports whether e is one of TMAX, TMIN or PRCP.
func (e Element) IsTarget() bool {
	switch e {
	case ElementTMAX, ElementTMIN, ElementPRCP:
		return true
	default:
		return false
	}
}

// Flag is a single-byte GHCN-Daily flag. Blank or absent bytes decode to NoFlag.
type Flag byte

const (
	NoFlag Flag = 0

	// SourceSynoptic marks values derived from hourly synoptic (GTS) reports.
	SourceSynoptic Flag = 'S'
)

// IsSet reports whether the flag carries a value.
func (f Flag) IsSet() bool { return f != NoFlag }

func (f Flag) String() string {
	if f == NoFlag {
		return ""
	}
	return string(rune(f))
}

// Reading is an optional daily value. The file's -9999 sentinel decodes to a
// Reading with Valid false.
type Reading struct {
	Value int
	Valid bool
}

// Present returns a valid Reading holding v.
func Present(v int) Reading { return Reading{Value: v, Valid: true} }

// Missing is the Reading for an absent value.
var Missing = Reading{}

// DaySlot is one of the 31 day positions of a record.
type DaySlot struct {
	Reading     Reading
	Measurement Flag
	Quality     Flag
	Source      Flag
}

// DaysPerRecord is the fixed number of day slots per record, regardless of month length.
const DaysPerRecord = 31

// RawStationRecord is one decoded line of a station file: one element for one
// month at one station.
type RawStationRecord struct {
	StationID string
	Year      int
	Month     int
	Element   Element
	Days      [DaysPerRecord]DaySlot
}
