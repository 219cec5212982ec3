package store

import "github.com/varrock/clogboard/pkg/logger"

// Option applies a configuration option to the DB.
type Option func(*DB)

// WithLogger sets a custom logger for the store.
func WithLogger(log logger.Logger) Option {
	return func(s *DB) {
		if log != nil {
			s.log = log
		}
	}
}
