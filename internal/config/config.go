package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// DefaultStationIDs are long-running GHCN-Daily stations with nearly complete
// 1890-2017 temperature and precipitation records, spread over maize regions.
var DefaultStationIDs = []string{
	"USW00023271", // CA SACRAMENTO 5 ESE
	"USW00093820", // KY LEXINGTON BLUEGRASS AP
	"USC00200146", // MI ALMA
	"USC00215638", // MN MORRIS W CNTRL RSCH & OUTREACH
	"USW00024128", // NV WINNEMUCCA MUNI AP
	"USW00094728", // NY NEW YORK CNTRL PK TWR
	"CA006105976", // ON OTTAWA CDA
	"USW00014936", // SD HURON RGNL AP
	"USW00024157", // WA SPOKANE INTL AP
	"USW00014898", // WI GREEN BAY
}

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DataDir string

	// Study window and feature schema.
	StartYear  int
	EndYear    int
	StationIDs []string
	StartMonth int
	EndMonth   int
	EnoughDays int

	// Yield trend and prediction.
	YieldFile    string
	YieldPeriods []string
	Breakpoints  [2]int
	KernelDegree int
	KernelAlpha  float64
	KernelCoef0  float64

	// Artifacts.
	FeatureTablePath string
	PredictionsPath  string

	// Station file retrieval.
	FetchEnabled bool
	FetchBaseURL string
	FetchTimeout time.Duration

	// Optional sinks.
	KafkaBrokers      []string
	KafkaFeatureTopic string
	DatabaseURL       string

	HTTPAddr        string
	ShowProgress    bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var p parser
	cfg := &Config{
		DataDir: sharedcfg.EnvOrDefault("DATA_DIR", "raw_data"),

		StartYear:  p.int("START_YEAR", 1890),
		EndYear:    p.int("END_YEAR", 2017),
		StationIDs: parseList(sharedcfg.EnvOrDefault("STATION_IDS", strings.Join(DefaultStationIDs, ","))),
		StartMonth: p.int("START_MONTH", 2),
		EndMonth:   p.int("END_MONTH", 11),
		EnoughDays: p.int("ENOUGH_DAYS", 15),

		YieldFile:    lookupOrDefault("YIELD_FILE", "FF72F614-2177-381F-A4EB-D059F706EC14.csv"),
		YieldPeriods: parseList(sharedcfg.EnvOrDefault("YIELD_PERIODS", "YEAR")),
		Breakpoints:  p.breakpoints("TREND_BREAKPOINTS", [2]int{1937, 1962}),
		KernelDegree: p.int("KERNEL_DEGREE", 3),
		KernelAlpha:  p.float("KERNEL_ALPHA", 0.5),
		KernelCoef0:  p.float("KERNEL_COEF0", 1),

		FeatureTablePath: sharedcfg.EnvOrDefault("FEATURE_TABLE_PATH", "weather.csv"),
		PredictionsPath:  sharedcfg.EnvOrDefault("PREDICTIONS_PATH", "predictions.csv"),

		FetchEnabled: p.bool("FETCH_ENABLED", false),
		FetchBaseURL: sharedcfg.EnvOrDefault("FETCH_BASE_URL", "https://www.ncei.noaa.gov/pub/data/ghcn/daily/all"),
		FetchTimeout: p.duration("FETCH_TIMEOUT", 60*time.Second),

		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaFeatureTopic: os.Getenv("KAFKA_FEATURE_TOPIC"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShowProgress:    p.bool("SHOW_PROGRESS", false),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.Window().Validate(); err != nil {
		return fmt.Errorf("invalid START_YEAR/END_YEAR: %w", err)
	}
	if c.StartMonth < 1 || c.EndMonth > 12 || c.StartMonth > c.EndMonth {
		return fmt.Errorf("invalid START_MONTH/END_MONTH: %d-%d", c.StartMonth, c.EndMonth)
	}
	if err := domain.ValidateSchemaInputs(c.StationIDs, c.Months()); err != nil {
		return fmt.Errorf("invalid STATION_IDS: %w", err)
	}
	if c.EnoughDays < 1 || c.EnoughDays > domain.DaysPerRecord {
		return fmt.Errorf("invalid ENOUGH_DAYS: %d", c.EnoughDays)
	}
	if c.Breakpoints[0] >= c.Breakpoints[1] {
		return fmt.Errorf("invalid TREND_BREAKPOINTS: %d must precede %d", c.Breakpoints[0], c.Breakpoints[1])
	}
	if c.KernelDegree < 1 {
		return fmt.Errorf("invalid KERNEL_DEGREE: %d", c.KernelDegree)
	}
	if c.KernelAlpha <= 0 {
		return fmt.Errorf("invalid KERNEL_ALPHA: %g", c.KernelAlpha)
	}
	if c.FeatureTablePath == "" {
		return errors.New("FEATURE_TABLE_PATH is required")
	}
	if c.KafkaFeatureTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_FEATURE_TOPIC is set")
	}
	if c.FetchEnabled && c.FetchBaseURL == "" {
		return errors.New("FETCH_ENABLED is true but FETCH_BASE_URL is not set")
	}
	return nil
}

// Window returns the study window.
func (c *Config) Window() domain.StudyWindow {
	return domain.StudyWindow{StartYear: c.StartYear, EndYear: c.EndYear}
}

// Months returns the target months in order.
func (c *Config) Months() []int {
	if c.StartMonth > c.EndMonth {
		return nil
	}
	months := make([]int, 0, c.EndMonth-c.StartMonth+1)
	for m := c.StartMonth; m <= c.EndMonth; m++ {
		months = append(months, m)
	}
	return months
}

// YieldPath returns the yield table location, or "" when prediction is disabled.
func (c *Config) YieldPath() string {
	if c.YieldFile == "" {
		return ""
	}
	if filepath.IsAbs(c.YieldFile) {
		return c.YieldFile
	}
	return filepath.Join(c.DataDir, c.YieldFile)
}

// parser accumulates the first parse failure so Load can read every variable
// in one struct literal.
type parser struct {
	err error
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %q", key, value)
	}
}

func (p *parser) int(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		p.fail(key, s)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		p.fail(key, s)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		p.fail(key, s)
		return def
	}
	return d
}

func (p *parser) breakpoints(key string, def [2]int) [2]int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	parts := parseList(s)
	if len(parts) != 2 {
		p.fail(key, s)
		return def
	}
	var out [2]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			p.fail(key, s)
			return def
		}
		out[i] = n
	}
	return out
}

// lookupOrDefault is like EnvOrDefault but an explicitly empty variable
// overrides the default.
func lookupOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

// parseList splits a comma-separated value, trimming blanks and dropping empty entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
