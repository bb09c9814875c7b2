package station

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// MemorySource serves station files from memory. It backs tests and
// dry runs against generated fixtures.
type MemorySource struct {
	mu    sync.Mutex
	files map[string]string
	opens map[string]int
}

// NewMemorySource creates a source holding the given station ID to file contents.
func NewMemorySource(files map[string]string) *MemorySource {
	m := &MemorySource{files: make(map[string]string, len(files)), opens: make(map[string]int)}
	for id, body := range files {
		m.files[id] = body
	}
	return m
}

// Put appends records to a station file, creating it if needed.
func (m *MemorySource) Put(stationID string, records ...domain.RawStationRecord) {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.Format())
		b.WriteByte('\n')
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[stationID] += b.String()
}

func (m *MemorySource) Open(_ context.Context, stationID string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens[stationID]++
	body, ok := m.files[stationID]
	if !ok {
		return nil, &domain.MissingFileError{StationID: stationID, Path: "memory:" + stationID}
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// Opens returns how many times stationID has been opened.
func (m *MemorySource) Opens(stationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[stationID]
}
