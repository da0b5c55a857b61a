package logstore

import (
	"github.com/pkg/errors"
	"github.com/yiblet/cliphist/internal/metrics"
)

// Option configures a Store in New.
type Option func(s *Store) error

// WithMaxWastedOps sets the waste threshold at which MaybeCompact rewrites
// the log.
func WithMaxWastedOps(n int64) Option {
	return func(s *Store) error {
		if n <= 0 {
			return errors.Errorf("max wasted ops must be positive, got %d", n)
		}
		s.maxWasted = n
		return nil
	}
}

// WithLogName sets the log file name, relative to the cache directory.
func WithLogName(name string) Option {
	return func(s *Store) error {
		if name == "" {
			return errors.New("log name must not be empty")
		}
		s.logName = name
		return nil
	}
}

// WithLegacyPath sets the legacy JSON snapshot that is migrated when no log
// exists. An empty path disables the migration.
func WithLegacyPath(path string) Option {
	return func(s *Store) error {
		s.legacyPath = path
		return nil
	}
}

// WithWriteRetries sets how often opening the log for appending is retried.
func WithWriteRetries(n int) Option {
	return func(s *Store) error {
		if n < 0 {
			return errors.Errorf("write retries must not be negative, got %d", n)
		}
		s.writeRetries = uint64(n)
		return nil
	}
}

// WithMetrics reports to m instead of an unregistered set of instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) error {
		if m == nil {
			return errors.New("metrics must not be nil")
		}
		s.metrics = m
		return nil
	}
}
