package bootstrap

import (
	"github.com/skylark/aviary/common/config"
	"github.com/skylark/aviary/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipStore     bool
	skipQueue     bool
	skipCache     bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
}

// WithoutStore skips key-value store initialization
func WithoutStore() Option {
	return func(o *options) {
		o.skipStore = true
	}
}

// WithoutQueue skips queue initialization
func WithoutQueue() Option {
	return func(o *options) {
		o.skipQueue = true
	}
}

// WithoutCache skips cache initialization
func WithoutCache() Option {
	return func(o *options) {
		o.skipCache = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

func defaultOptions() *options {
	return &options{}
}
