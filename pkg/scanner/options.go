package scanner

import "log/slog"

// Option configures a Core.
type Option func(*Core)

// WithShortCircuit sets whether substring and regex probes stop at their
// first matching string. Default true; disable it to report every matched
// string in each result.
func WithShortCircuit(enabled bool) Option {
	return func(c *Core) {
		c.shortCircuit = enabled
	}
}

// WithWorkers sets how many processes are scanned in parallel.
// Values below 1 mean 1. Parallel scans read the extractor from several
// goroutines at once.
func WithWorkers(n int) Option {
	return func(c *Core) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		if logger != nil {
			c.logger = logger
		}
	}
}
