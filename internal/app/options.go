package app

import (
	"time"

	"github.com/varrock/clogboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTopN caps how many entries the published board shows.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithTotalAchievable sets the maximum collection log total shown next to
// the first place entry.
func WithTotalAchievable(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.totalAchievable = n
		}
	}
}

// WithAccountEmojis maps account categories to the emoji rendered before
// the player name.
func WithAccountEmojis(emojis map[string]string) Option {
	return func(s *Service) {
		if emojis != nil {
			s.emojis = emojis
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}
