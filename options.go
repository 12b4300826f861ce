package grausdb

import (
	"github.com/sirupsen/logrus"

	"grausdb/internal/engine"
)

// Option configures Open.
type Option func(*engine.Config)

// WithLogger injects a structured logger for non-fatal background
// events such as a failed retired-segment deletion during compaction.
// The default is a logger that discards everything.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(cfg *engine.Config) {
		cfg.Logger = logger
	}
}

// WithCompactionThreshold overrides the default 1 MiB uncompacted-bytes
// threshold that triggers Compaction on a successful mutation.
func WithCompactionThreshold(bytes int64) Option {
	return func(cfg *engine.Config) {
		cfg.CompactionThreshold = bytes
	}
}

// WithMaxReaderHandles bounds how many open segment file handles each
// goroutine's reader context caches before evicting the
// least-recently-used one.
func WithMaxReaderHandles(n int) Option {
	return func(cfg *engine.Config) {
		cfg.MaxReaderHandles = n
	}
}
