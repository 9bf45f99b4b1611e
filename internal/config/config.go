package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/pagebeacon/internal/payload"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "pagebeacon"

	// DefaultProvider is the analytics wire format.
	DefaultProvider = "ga4"

	// DefaultListenAddress is where the collector listens. Loopback only.
	DefaultListenAddress = "127.0.0.1:8787"

	// DefaultTimeout bounds every outbound tracking request.
	DefaultTimeout = 10 * time.Second

	// DefaultBatchSize is the number of scenarios replayed at once.
	DefaultBatchSize = 4

	// DefaultScrollThreshold is the scroll depth reported once per page load.
	DefaultScrollThreshold = 90

	// DefaultDebounceWait is the quiet period for scroll and focus handlers.
	DefaultDebounceWait = 500 * time.Millisecond

	// DefaultUserAgent identifies replayed traffic.
	DefaultUserAgent = "pagebeacon/1.0 (+https://github.com/nao1215/pagebeacon)"
)

// Config holds all options of one command invocation.
type Config struct {
	// TrackingID is used for scenarios that do not set their own.
	TrackingID string

	// Provider is "ga4" or "heap".
	Provider string

	// Endpoint overrides the provider collector URL, e.g. the local
	// collector started by "pagebeacon collect".
	Endpoint string

	// ListenAddress is the collector address.
	ListenAddress string

	// ProxyAddress is an optional SOCKS5 proxy for outbound requests.
	ProxyAddress string

	// Timeout bounds each outbound request.
	Timeout time.Duration

	// BatchSize is the replay concurrency.
	BatchSize int

	// UserAgent is sent with outbound requests.
	UserAgent string

	// ClickSelector overrides the trackable element selector.
	ClickSelector string

	// ScrollThreshold is the scroll percentage that triggers the scroll event.
	ScrollThreshold int

	// DebounceWait is the scroll and focus debounce window.
	DebounceWait time.Duration

	// LegacySessionCounter increments the session counter on every event
	// instead of once per page load.
	LegacySessionCounter bool

	// Debug marks every hit for the provider's debug view.
	Debug bool

	// PersistIdentity keeps client identifiers in the database between
	// replays instead of starting every replay as a new visitor.
	PersistIdentity bool

	Verbose bool

	// ConfigFilePath is an explicit configuration file.
	ConfigFilePath string

	// JSONReport and MarkdownReport select the report format; they are
	// mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir holds the SQLite database. Defaults to the XDG data directory.
	DBDir string

	// Scenarios are scenario file paths to replay.
	Scenarios []string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Provider:        DefaultProvider,
		ListenAddress:   DefaultListenAddress,
		Timeout:         DefaultTimeout,
		BatchSize:       DefaultBatchSize,
		UserAgent:       DefaultUserAgent,
		ScrollThreshold: DefaultScrollThreshold,
		DebounceWait:    DefaultDebounceWait,
		DBDir:           XDGDataDir(),
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/pagebeacon.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/pagebeacon.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first problem found.
func (c *Config) Validate() error {
	if _, err := payload.Lookup(c.Provider); err != nil {
		return ErrUnknownProvider
	}
	if c.Endpoint != "" && !isHTTPURL(c.Endpoint) {
		return ErrInvalidEndpoint
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.ScrollThreshold < 1 || c.ScrollThreshold > 100 {
		return ErrInvalidThreshold
	}
	if c.DebounceWait < 0 {
		return ErrInvalidDebounce
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ValidateReplay additionally requires scenarios to replay.
func (c *Config) ValidateReplay() error {
	if len(c.Scenarios) == 0 {
		return ErrNoScenario
	}
	return c.Validate()
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
