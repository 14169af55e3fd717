package lazyslot

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot/config"
	"github.com/randalmurphal/lazyslot/pkg/lazyslot/event"
	"github.com/randalmurphal/lazyslot/pkg/lazyslot/journal"
	"github.com/randalmurphal/lazyslot/pkg/lazyslot/observability"
)

// registryConfig holds the registry's ambient wiring. All fields have
// working defaults: no logging, noop metrics and spans, no journal, no bus.
type registryConfig struct {
	id             string
	shardCount     uint32
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	journal        journal.Store
	journalFatal   bool
	ownsJournal    bool
	bus            event.Bus
}

// defaultShardCount is the number of index shards when WithShardCount is
// not given. Must be a power of two.
const defaultShardCount = 16

func defaultConfig() registryConfig {
	return registryConfig{
		shardCount: defaultShardCount,
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
	}
}

// Option configures a Registry.
type Option func(*registryConfig)

// WithRegistryID sets the registry's identifier, used in logs, journal
// entries, and events. Defaults to a generated "reg-" prefixed ID.
func WithRegistryID(id string) Option {
	return func(cfg *registryConfig) {
		cfg.id = id
	}
}

// WithShardCount sets the number of shards in the slot index. The value
// is rounded up to a power of two; values below 1 keep the default.
// More shards reduce index contention when many distinct slots are
// created concurrently.
func WithShardCount(n int) Option {
	return func(cfg *registryConfig) {
		if n < 1 {
			return
		}
		cfg.shardCount = nextPowerOfTwo(uint32(n))
	}
}

// WithLogger enables structured logging of construction lifecycle with
// the given logger. Without it the registry logs nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *registryConfig) {
		cfg.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics using the globally registered
// meter provider. Only slow-path events are recorded; the populated fast
// path stays free of instrumentation.
func WithMetrics() Option {
	return func(cfg *registryConfig) {
		cfg.metrics = observability.NewMetricsRecorder()
	}
}

// WithMetricsRecorder installs a custom metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(cfg *registryConfig) {
		if m != nil {
			cfg.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans around constructions and warm
// runs using the globally registered tracer provider.
func WithTracing() Option {
	return func(cfg *registryConfig) {
		cfg.spans = observability.NewSpanManager()
		cfg.tracingEnabled = true
	}
}

// WithSpanManager installs a custom span manager and enables tracing.
func WithSpanManager(s observability.SpanManager) Option {
	return func(cfg *registryConfig) {
		if s != nil {
			cfg.spans = s
			cfg.tracingEnabled = true
		}
	}
}

// WithJournal records construction outcomes (constructed, failed, reset)
// to the given store. Journaling is best-effort: append failures are
// logged and otherwise ignored unless WithJournalFailureFatal is set.
// The store is owned by the caller; Close() does not close it.
func WithJournal(store journal.Store) Option {
	return func(cfg *registryConfig) {
		cfg.journal = store
		cfg.ownsJournal = false
	}
}

// WithJournalFailureFatal makes journal append failures surface as
// *JournalError from the construction call that hit them. The constructed
// instance is still published either way.
func WithJournalFailureFatal() Option {
	return func(cfg *registryConfig) {
		cfg.journalFatal = true
	}
}

// WithEventBus publishes lifecycle events (constructed, construct_failed,
// reset) to the given bus. Publishing is best-effort; the bus is owned by
// the caller.
func WithEventBus(bus event.Bus) Option {
	return func(cfg *registryConfig) {
		cfg.bus = bus
	}
}

// FromConfig builds a Registry from a loaded configuration.
//
// Recognized keys:
//   - registry_id     string
//   - shard_count     int
//   - metrics         bool
//   - tracing         bool
//   - journal_backend string ("memory" or "sqlite")
//   - journal_path    string (required for "sqlite")
//   - journal_fatal   bool
//
// A journal store created here is owned by the registry and closed by
// Close(). Options passed after cfg override the file values.
func FromConfig(cfg config.Config, opts ...Option) (*Registry, error) {
	var built []Option

	if id := cfg.String("registry_id", ""); id != "" {
		built = append(built, WithRegistryID(id))
	}
	if n := cfg.Int("shard_count", 0); n > 0 {
		built = append(built, WithShardCount(n))
	}
	if cfg.Bool("metrics", false) {
		built = append(built, WithMetrics())
	}
	if cfg.Bool("tracing", false) {
		built = append(built, WithTracing())
	}

	var store journal.Store
	switch backend := cfg.String("journal_backend", ""); backend {
	case "":
		// No journaling.
	case "memory":
		store = journal.NewMemoryStore()
	case "sqlite":
		path := cfg.String("journal_path", "")
		if path == "" {
			return nil, fmt.Errorf("journal_backend %q requires journal_path", backend)
		}
		s, err := journal.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown journal_backend: %q", backend)
	}
	if store != nil {
		built = append(built, WithJournal(store))
		built = append(built, func(c *registryConfig) { c.ownsJournal = true })
	}
	if cfg.Bool("journal_fatal", false) {
		built = append(built, WithJournalFailureFatal())
	}

	return New(append(built, opts...)...), nil
}

// nextPowerOfTwo rounds n up to the nearest power of two.
func nextPowerOfTwo(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
