package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// StationMetadata is one entry of the ghcnd-stations.txt inventory.
type StationMetadata struct {
	ID        string
	Latitude  float64
	Longitude float64
	Elevation float64 // meters, -999.9 when unknown
	State     string
	Name      string
	GSNFlag   string
	HCNFlag   string
	WMOID     string
}

// ParseStationMetadata decodes one inventory line. Columns are
//
//	[0,11) ID  [12,20) LATITUDE  [21,30) LONGITUDE  [31,37) ELEVATION
//	[38,40) STATE  [41,71) NAME  [72,75) GSN  [76,79) HCN/CRN  [80,85) WMO ID
//
// Lines may be cut short after the name.
func ParseStationMetadata(line string) (StationMetadata, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 37 {
		return StationMetadata{}, &ParseError{Reason: fmt.Sprintf("station line width %d, want at least 37", len(line))}
	}

	lat, err := strconv.ParseFloat(field(line, 12, 20), 64)
	if err != nil {
		return StationMetadata{}, &ParseError{Field: "LATITUDE", Reason: err.Error()}
	}
	lon, err := strconv.ParseFloat(field(line, 21, 30), 64)
	if err != nil {
		return StationMetadata{}, &ParseError{Field: "LONGITUDE", Reason: err.Error()}
	}
	elev, err := strconv.ParseFloat(field(line, 31, 37), 64)
	if err != nil {
		return StationMetadata{}, &ParseError{Field: "ELEVATION", Reason: err.Error()}
	}

	return StationMetadata{
		ID:        field(line, 0, 11),
		Latitude:  lat,
		Longitude: lon,
		Elevation: elev,
		State:     field(line, 38, 40),
		Name:      field(line, 41, 71),
		GSNFlag:   field(line, 72, 75),
		HCNFlag:   field(line, 76, 79),
		WMOID:     field(line, 80, 85),
	}, nil
}

// field returns the trimmed [start,end) slice of line, tolerating short lines.
func field(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	end = min(end, len(line))
	return strings.TrimSpace(line[start:end])
}
