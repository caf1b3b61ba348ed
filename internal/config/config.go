// Package config loads the environment-driven knobs that tune the runtime
// without touching the command line: garbage-collector stress testing and
// logging, mainly useful while chasing a GC bug or benchmarking collection
// pauses.
package config

import "github.com/caarlos0/env/v6"

// Runtime holds the environment-configurable runtime tuning. Zero values are
// the production defaults: no stress collection, no GC logging.
type Runtime struct {
	// GCStressTest forces a full collection before every single allocation,
	// maximizing the odds a dangling-root bug shows up instead of hiding
	// behind a lucky allocation pattern.
	GCStressTest bool `env:"LOXVM_GC_STRESS" envDefault:"false"`

	// GCLog writes a line to stderr at the start and end of every collection
	// cycle.
	GCLog bool `env:"LOXVM_GC_LOG" envDefault:"false"`
}

// Load reads Runtime from the process environment.
func Load() (Runtime, error) {
	var r Runtime
	if err := env.Parse(&r); err != nil {
		return Runtime{}, err
	}
	return r, nil
}
