package domain

import "fmt"

// ParseError reports a station file line that does not match the fixed-width
// layout. It is fatal for the file: a mismatch usually means a format change.
type ParseError struct {
	Source string // file path or station ID
	Line   int    // 1-based line number, 0 when unknown
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse %s line %d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("parse %s line %d: %s: %s", e.Source, e.Line, e.Field, e.Reason)
}

// MissingFileError reports a required input file that is absent and could not
// be fetched. It aborts the run.
type MissingFileError struct {
	StationID string
	Path      string
	Err       error
}

func (e *MissingFileError) Error() string {
	msg := "missing file " + e.Path
	if e.StationID != "" {
		msg = fmt.Sprintf("missing station file %s (%s)", e.StationID, e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingFileError) Unwrap() error { return e.Err }
