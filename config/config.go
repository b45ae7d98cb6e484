// Package config holds the barrier manager's small set of process-level
// tunables, following gazette's convention of plain structs with
// functional-option constructors rather than a flag/env framework: the
// barrier-manager core has no persisted local state and only a handful of
// knobs (spec.md §6, "no CLI; no persisted local state"). Bootstrap (in
// bootstrap.go) is the single assembly point where these knobs reach their
// collaborators: metrics.NewSet, coordclient.FetchInitialPartialGraphs, and
// barrier.New.
package config

// Config bundles the manager's tunables.
type Config struct {
	// MetricsNamespace prefixes every Prometheus collector the manager
	// registers.
	MetricsNamespace string
	// TestingMode fills missing actors with idle placeholder tasks
	// instead of spawning through the real actor.Manager (spec.md §4.4).
	TestingMode bool
	// CoordPrefix is the etcd key prefix coordclient lists at bootstrap
	// to learn which partial graphs this node owns.
	CoordPrefix string
}

// Option mutates a Config being built by New.
type Option func(*Config)

// WithMetricsNamespace overrides the default Prometheus namespace.
func WithMetricsNamespace(ns string) Option {
	return func(c *Config) { c.MetricsNamespace = ns }
}

// WithTestingMode enables idle-placeholder actor spawning.
func WithTestingMode() Option {
	return func(c *Config) { c.TestingMode = true }
}

// WithCoordPrefix overrides the etcd prefix used at bootstrap.
func WithCoordPrefix(prefix string) Option {
	return func(c *Config) { c.CoordPrefix = prefix }
}

// New returns a Config with sane defaults, as modified by opts.
func New(opts ...Option) Config {
	var c = Config{
		MetricsNamespace: "barrier_manager",
		CoordPrefix:      "/streamcore/partial-graphs/",
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
