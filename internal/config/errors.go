package config

import "errors"

// Sentinel kinds for configuration errors.
var (
	ErrMissingDBPath    = errors.New("db_path must not be empty")
	ErrInvalidRateLimit = errors.New("requests_per_minute and max_burst must be positive")
	ErrInvalidTopN      = errors.New("top_n must be positive")
)
