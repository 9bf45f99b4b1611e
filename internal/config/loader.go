package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name.
const DefaultConfigFile = ".pagebeacon"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the structure of the .pagebeacon file. Zero values leave the
// corresponding Config field untouched.
type File struct {
	TrackingID string        `yaml:"tracking_id,omitempty"`
	Provider   string        `yaml:"provider,omitempty"`
	Endpoint   string        `yaml:"endpoint,omitempty"`
	Listen     string        `yaml:"listen,omitempty"`
	Proxy      string        `yaml:"proxy,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	BatchSize  int           `yaml:"batch_size,omitempty"`
	UserAgent  string        `yaml:"user_agent,omitempty"`
	DBDir      string        `yaml:"db_dir,omitempty"`

	Tracking TrackingFile `yaml:"tracking,omitempty"`
}

// TrackingFile holds tracker tuning.
type TrackingFile struct {
	ClickSelector        string        `yaml:"click_selector,omitempty"`
	ScrollThreshold      int           `yaml:"scroll_threshold,omitempty"`
	Debounce             time.Duration `yaml:"debounce,omitempty"`
	LegacySessionCounter bool          `yaml:"legacy_session_counter,omitempty"`
	Debug                bool          `yaml:"debug,omitempty"`
	PersistIdentity      bool          `yaml:"persist_identity,omitempty"`
}

// LoadConfigFile reads a configuration file. A missing file yields
// ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ApplyTo copies the non-zero values of f into c.
func (f *File) ApplyTo(c *Config) {
	setString(&c.TrackingID, f.TrackingID)
	setString(&c.Provider, f.Provider)
	setString(&c.Endpoint, f.Endpoint)
	setString(&c.ListenAddress, f.Listen)
	setString(&c.ProxyAddress, f.Proxy)
	setString(&c.UserAgent, f.UserAgent)
	setString(&c.DBDir, f.DBDir)
	setString(&c.ClickSelector, f.Tracking.ClickSelector)
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	if f.BatchSize > 0 {
		c.BatchSize = f.BatchSize
	}
	if f.Tracking.ScrollThreshold > 0 {
		c.ScrollThreshold = f.Tracking.ScrollThreshold
	}
	if f.Tracking.Debounce > 0 {
		c.DebounceWait = f.Tracking.Debounce
	}
	c.LegacySessionCounter = c.LegacySessionCounter || f.Tracking.LegacySessionCounter
	c.Debug = c.Debug || f.Tracking.Debug
	c.PersistIdentity = c.PersistIdentity || f.Tracking.PersistIdentity
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// FindConfigFile returns the configuration file to use, or "" if none:
// configPath when it exists, else .pagebeacon in the current directory,
// else in the XDG config directory, else in the home directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
