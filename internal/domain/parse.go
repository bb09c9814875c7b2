package domain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	idEnd      = 11
	yearEnd    = 15
	monthEnd   = 17
	elementEnd = 21
	slotWidth  = 8
	valueWidth = 5

	// RecordWidth is the byte width of one .dly line.
	RecordWidth = elementEnd + DaysPerRecord*slotWidth

	// missingSentinel is the value GHCN-Daily writes for an absent day.
	missingSentinel = -9999

	// minRecordWidth allows the three trailing flag bytes of day 31 to be
	// absent, as happens when tools strip trailing blanks.
	minRecordWidth = RecordWidth - 3
)

// ParseRecord decodes a single fixed-width .dly line. Errors are *ParseError
// with Line left at 0.
func ParseRecord(line string) (RawStationRecord, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < minRecordWidth || len(line) > RecordWidth {
		return RawStationRecord{}, &ParseError{
			Reason: fmt.Sprintf("line width %d, want %d", len(line), RecordWidth),
		}
	}
	if len(line) < RecordWidth {
		line += strings.Repeat(" ", RecordWidth-len(line))
	}

	rec := RawStationRecord{
		StationID: strings.TrimSpace(line[:idEnd]),
		Element:   Element(strings.TrimSpace(line[monthEnd:elementEnd])),
	}
	if rec.StationID == "" {
		return RawStationRecord{}, &ParseError{Field: "ID", Reason: "blank station ID"}
	}

	year, err := strconv.Atoi(strings.TrimSpace(line[idEnd:yearEnd]))
	if err != nil {
		return RawStationRecord{}, &ParseError{Field: "YEAR", Reason: fmt.Sprintf("not numeric: %q", line[idEnd:yearEnd])}
	}
	month, err := strconv.Atoi(strings.TrimSpace(line[yearEnd:monthEnd]))
	if err != nil {
		return RawStationRecord{}, &ParseError{Field: "MONTH", Reason: fmt.Sprintf("not numeric: %q", line[yearEnd:monthEnd])}
	}
	if month < 1 || month > 12 {
		return RawStationRecord{}, &ParseError{Field: "MONTH", Reason: fmt.Sprintf("out of range: %d", month)}
	}
	if rec.Element == "" {
		return RawStationRecord{}, &ParseError{Field: "ELEMENT", Reason: "blank element"}
	}
	rec.Year = year
	rec.Month = month

	for day := range DaysPerRecord {
		slot, err := parseSlot(line[elementEnd+day*slotWidth : elementEnd+(day+1)*slotWidth])
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Field = fmt.Sprintf("VALUE%d", day+1)
			}
			return RawStationRecord{}, err
		}
		rec.Days[day] = slot
	}
	return rec, nil
}

// parseSlot decodes one 8-byte day group: 5-byte value then MFLAG, QFLAG, SFLAG.
func parseSlot(s string) (DaySlot, error) {
	raw := strings.TrimSpace(s[:valueWidth])
	v, err := strconv.Atoi(raw)
	if err != nil {
		return DaySlot{}, &ParseError{Reason: fmt.Sprintf("not numeric: %q", s[:valueWidth])}
	}

	slot := DaySlot{
		Measurement: parseFlag(s[valueWidth]),
		Quality:     parseFlag(s[valueWidth+1]),
		Source:      parseFlag(s[valueWidth+2]),
	}
	if v != missingSentinel {
		slot.Reading = Present(v)
	}
	return slot, nil
}

func parseFlag(b byte) Flag {
	if b == ' ' || b == 0 {
		return NoFlag
	}
	return Flag(b)
}

// ParseStationFile decodes every line of a station's .dly file. Every record
// must belong to stationID; source names the file in errors. Blank lines are
// skipped. The first malformed line aborts the decode.
func ParseStationFile(r io.Reader, source, stationID string) ([]RawStationRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, RecordWidth+2), 64*1024)

	var records []RawStationRecord
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := ParseRecord(line)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Source = source
				pe.Line = lineNo
			}
			return nil, err
		}
		if stationID != "" && rec.StationID != stationID {
			return nil, &ParseError{
				Source: source,
				Line:   lineNo,
				Field:  "ID",
				Reason: fmt.Sprintf("record for %s in file of %s", rec.StationID, stationID),
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return records, nil
}

// Format encodes the record as a fixed-width .dly line without a newline.
// Invalid readings are written as the -9999 sentinel.
func (r RawStationRecord) Format() string {
	var b strings.Builder
	b.Grow(RecordWidth)
	fmt.Fprintf(&b, "%-11s%04d%02d%-4s", r.StationID, r.Year, r.Month, r.Element)
	for _, slot := range r.Days {
		v := missingSentinel
		if slot.Reading.Valid {
			v = slot.Reading.Value
		}
		fmt.Fprintf(&b, "%5d", v)
		b.WriteByte(formatFlag(slot.Measurement))
		b.WriteByte(formatFlag(slot.Quality))
		b.WriteByte(formatFlag(slot.Source))
	}
	return b.String()
}

func formatFlag(f Flag) byte {
	if f == NoFlag {
		return ' '
	}
	return byte(f)
}
