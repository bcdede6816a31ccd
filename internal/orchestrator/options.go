package orchestrator

import (
	"time"
)

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

// engineOptions holds all optional engine configuration.
type engineOptions struct {
	logger      *DebugLogger
	now         func() time.Time
	runnerCfg   RunnerConfig
	maxAttempts int
	backoff     ExponentialBackoff
	eventBuffer int
}

func defaultOptions() *engineOptions {
	return &engineOptions{
		logger:      NopLogger(),
		now:         time.Now,
		runnerCfg:   DefaultRunnerConfig(),
		maxAttempts: 5,
		backoff:     ExponentialBackoff{Base: time.Second, Max: 2 * time.Minute},
		eventBuffer: 100,
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source. Mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunnerConfig sets the per-team runner bounds.
func WithRunnerConfig(cfg RunnerConfig) Option {
	return func(o *engineOptions) { o.runnerCfg = cfg }
}

// WithMaxAttempts sets the retry bound per task between successes.
func WithMaxAttempts(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry backoff schedule.
func WithBackoff(b ExponentialBackoff) Option {
	return func(o *engineOptions) { o.backoff = b }
}

// WithEventBuffer sets the per-subscriber event channel buffer.
func WithEventBuffer(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}
