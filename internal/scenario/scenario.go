package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/pagebeacon/internal/payload"
)

var (
	// ErrNoURL is returned for a scenario without a page URL.
	ErrNoURL = errors.New("scenario has no url")

	// ErrNoSteps is returned for a scenario without steps.
	ErrNoSteps = errors.New("scenario has no steps")

	// ErrUnknownAction is returned for an unsupported step action.
	ErrUnknownAction = errors.New("unknown step action")
)

// Size is a width and height pair.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Scenario is one scripted page visit.
type Scenario struct {
	Name string `yaml:"name"`

	// TrackingID and Provider override the runner defaults.
	TrackingID string `yaml:"tracking_id"`
	Provider   string `yaml:"provider"`

	URL            string  `yaml:"url"`
	Title          string  `yaml:"title"`
	Referrer       string  `yaml:"referrer"`
	Language       string  `yaml:"language"`
	Viewport       Size    `yaml:"viewport"`
	Screen         Size    `yaml:"screen"`
	DocumentHeight float64 `yaml:"document_height"`

	// HTML is the page markup. HTMLFile is read relative to the scenario
	// file when HTML is empty.
	HTML     string `yaml:"html"`
	HTMLFile string `yaml:"html_file"`

	// AutoTrack sends a page view on every page load.
	AutoTrack bool `yaml:"auto_track"`

	Steps []StepDef `yaml:"steps"`
}

// StepDef is the YAML form of a step.
type StepDef struct {
	Action string `yaml:"action"`

	// Duration is used by wait, e.g. "1.5s".
	Duration string `yaml:"duration,omitempty"`

	// Percent or Top position a scroll step.
	Percent int     `yaml:"percent,omitempty"`
	Top     float64 `yaml:"top,omitempty"`

	// Selector picks the element for a click step.
	Selector string `yaml:"selector,omitempty"`

	// Event, Params and Debug describe a track step.
	Event  string            `yaml:"event,omitempty"`
	Params map[string]string `yaml:"params,omitempty"`
	Debug  bool              `yaml:"debug,omitempty"`

	// URL moves a reload step to another page.
	URL string `yaml:"url,omitempty"`

	// Message and Fatal describe an exception step.
	Message string `yaml:"message,omitempty"`
	Fatal   bool   `yaml:"fatal,omitempty"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // scenario paths come from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Parse decodes a scenario. baseDir resolves html_file.
func Parse(data []byte, baseDir string) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if sc.HTML == "" && sc.HTMLFile != "" {
		p := sc.HTMLFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		html, err := os.ReadFile(p) //nolint:gosec // referenced by the scenario author
		if err != nil {
			return nil, fmt.Errorf("failed to read html_file: %w", err)
		}
		sc.HTML = string(html)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario and every step.
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.URL) == "" {
		return ErrNoURL
	}
	if len(s.Steps) == 0 {
		return ErrNoSteps
	}
	for i, def := range s.Steps {
		if _, err := BuildStep(def); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// duration parses a wait duration. Bare numbers are seconds.
func duration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("wait requires a duration")
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", raw)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// eventParams converts YAML params in key order. Integer values are
// sent as numbers.
func eventParams(params map[string]string) []payload.EventParam {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]payload.EventParam, 0, len(keys))
	for _, k := range keys {
		v := params[k]
		if n, err := strconv.Atoi(v); err == nil {
			out = append(out, payload.Number(k, n))
			continue
		}
		out = append(out, payload.String(k, v))
	}
	return out
}
