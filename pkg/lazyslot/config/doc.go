// Package config provides typed access to loosely structured configuration.
//
// Config wraps a map[string]any, typically loaded from a YAML or JSON
// file, and extracts values with type coercion and defaults. It backs
// lazyslot.FromConfig, which builds a registry from keys like
// shard_count and journal_backend, but is usable for any flat or
// nested configuration.
//
// # Basic Usage
//
// Load a file and read values:
//
//	cfg, err := config.FromFile("registry.yaml")
//	if err != nil {
//	    return err
//	}
//
//	shards := cfg.Int("shard_count", 16)
//	backend := cfg.String("journal_backend", "memory")
//	timeout := cfg.Duration("warm_timeout", time.Minute)
//
// # Coercion
//
// Accessors coerce across the representations that YAML and JSON
// loaders actually produce: JSON numbers arrive as float64, quoted
// scalars arrive as strings. Int("n", 0) accepts 42, int64(42),
// 42.0, and "42" alike. A value that cannot be coerced yields the
// default, never an error.
//
// # Nested Sections
//
// Section returns a nested mapping as its own Config:
//
//	// registry:
//	//   registry_id: app
//	//   shard_count: 32
//	reg := cfg.Section("registry")
//	id := reg.String("registry_id", "")
//
// A missing or non-mapping key yields an empty Config, so chained
// lookups degrade to defaults instead of panicking.
package config
