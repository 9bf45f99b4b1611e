package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	// ErrNoScenario is returned by replay without scenario files.
	ErrNoScenario = errors.New("no scenario specified: provide one or more scenario files")

	// ErrUnknownProvider is returned for a provider other than ga4 or heap.
	ErrUnknownProvider = errors.New("unknown provider: must be ga4 or heap")

	// ErrInvalidEndpoint is returned when the endpoint is not an http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidThreshold is returned when the scroll threshold is outside 1-100.
	ErrInvalidThreshold = errors.New("invalid scroll threshold: must be between 1 and 100")

	// ErrInvalidDebounce is returned for a negative debounce window.
	ErrInvalidDebounce = errors.New("invalid debounce: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
