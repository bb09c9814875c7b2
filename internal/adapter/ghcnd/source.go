// Package ghcnd reads GHCN-Daily station files from disk and, when enabled,
// downloads missing ones from the NOAA archive.
package ghcnd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/maize-yield-etl/internal/config"
	"github.com/couchcryptid/maize-yield-etl/internal/domain"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
)

// stationIDWidth is the length of a GHCN-Daily station identifier.
const stationIDWidth = 11

// errNotFound marks a download the archive answered with 404; it is not retried.
var errNotFound = errors.New("not found on server")

// FileSource implements station.Source over a directory of <id>.dly files.
type FileSource struct {
	dir        string
	fetch      bool
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	retryWait  time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewFileSource creates a source reading from cfg.DataDir.
func NewFileSource(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *FileSource {
	return &FileSource{
		dir:   cfg.DataDir,
		fetch: cfg.FetchEnabled,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		baseURL:   cfg.FetchBaseURL,
		clock:     clockwork.NewRealClock(),
		retryWait: 2 * time.Second,
		logger:    logger,
		metrics:   metrics,
	}
}

// Path returns where the file of stationID is expected.
func (s *FileSource) Path(stationID string) string {
	return filepath.Join(s.dir, stationID+".dly")
}

// Open returns the station file, downloading it first if it is absent and
// fetching is enabled. An absent file is reported as *domain.MissingFileError.
func (s *FileSource) Open(ctx context.Context, stationID string) (io.ReadCloser, error) {
	if len(stationID) != stationIDWidth || filepath.Base(stationID) != stationID {
		return nil, fmt.Errorf("invalid station ID %q", stationID)
	}
	path := s.Path(stationID)

	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open station file: %w", err)
	}
	if !s.fetch {
		return nil, &domain.MissingFileError{StationID: stationID, Path: path, Err: err}
	}

	if err := s.download(ctx, stationID, path); err != nil {
		return nil, &domain.MissingFileError{StationID: stationID, Path: path, Err: err}
	}
	return os.Open(path)
}

// download fetches the station file, retrying once on failures other than 404.
func (s *FileSource) download(ctx context.Context, stationID, path string) error {
	url := fmt.Sprintf("%s/%s.dly", s.baseURL, stationID)

	err := s.downloadOnce(ctx, url, path)
	if err == nil || errors.Is(err, errNotFound) || ctx.Err() != nil {
		s.recordFetch(stationID, err)
		return err
	}

	s.metrics.StationFetches.WithLabelValues("retry").Inc()
	s.logger.Warn("station download failed, retrying", "station", stationID, "error", err)
	if s.retryWait > 0 {
		select {
		case <-s.clock.After(s.retryWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err = s.downloadOnce(ctx, url, path)
	s.recordFetch(stationID, err)
	return err
}

func (s *FileSource) recordFetch(stationID string, err error) {
	if err != nil {
		s.metrics.StationFetches.WithLabelValues("error").Inc()
		s.logger.Error("station download failed", "station", stationID, "error", err)
		return
	}
	s.metrics.StationFetches.WithLabelValues("success").Inc()
	s.logger.Info("station downloaded", "station", stationID)
}

func (s *FileSource) downloadOnce(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("download %s: %w", url, errNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("download %s: status %d: %s", url, resp.StatusCode, body)
	}
	return writeAtomic(path, resp.Body)
}

// writeAtomic copies r into a temporary file next to path and renames it into
// place, so readers never see a partial file.
func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
