package ghcnd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// StationsFile is the NOAA station inventory.
const StationsFile = "ghcnd-stations.txt"

// ReadStationMetadata parses the station inventory and keeps the entries
// whose ID is in want. A nil want keeps every entry.
func ReadStationMetadata(r io.Reader, want []string) (map[string]domain.StationMetadata, error) {
	keep := make(map[string]bool, len(want))
	for _, id := range want {
		keep[id] = true
	}

	out := make(map[string]domain.StationMetadata)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if want != nil && (len(line) < 11 || !keep[line[:11]]) {
			continue
		}
		md, err := domain.ParseStationMetadata(line)
		if err != nil {
			var pe *domain.ParseError
			if errors.As(err, &pe) {
				pe.Source = StationsFile
				pe.Line = lineNo
			}
			return nil, err
		}
		out[md.ID] = md
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", StationsFile, err)
	}
	return out, nil
}

// LoadStationMetadata reads the inventory from dir. A missing inventory is not
// an error; the result is then empty.
func LoadStationMetadata(dir string, want []string) (map[string]domain.StationMetadata, error) {
	f, err := os.Open(filepath.Join(dir, StationsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]domain.StationMetadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", StationsFile, err)
	}
	defer f.Close()
	return ReadStationMetadata(f, want)
}
