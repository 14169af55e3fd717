package lazyslot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot/config"
	"github.com/randalmurphal/lazyslot/pkg/lazyslot/journal"
)

// TestWithShardCount tests shard sizing: rounding up to powers of two
// and keeping the default for nonsense values.
func TestWithShardCount(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "exact power of two", n: 8, want: 8},
		{name: "rounds up", n: 5, want: 8},
		{name: "one", n: 1, want: 1},
		{name: "zero keeps default", n: 0, want: defaultShardCount},
		{name: "negative keeps default", n: -3, want: defaultShardCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(WithShardCount(tt.n))
			assert.Len(t, r.shards, tt.want)
			assert.Equal(t, uint32(tt.want-1), r.mask)
		})
	}
}

// TestNextPowerOfTwo tests the rounding helper at its edges.
func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		in   uint32
		want uint32
	}{
		{in: 0, want: 1},
		{in: 1, want: 1},
		{in: 2, want: 2},
		{in: 3, want: 4},
		{in: 16, want: 16},
		{in: 17, want: 32},
		{in: 1000, want: 1024},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextPowerOfTwo(tt.in), "nextPowerOfTwo(%d)", tt.in)
	}
}

// TestFromConfig_Defaults tests that an empty configuration yields a
// working registry with generated identity and default sharding.
func TestFromConfig_Defaults(t *testing.T) {
	r, err := FromConfig(config.New(nil))
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID())
	assert.Len(t, r.shards, defaultShardCount)

	v, err := r.GetOrCreate(context.Background(), "db", anyFactory("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

// TestFromConfig_Values tests that file values reach the registry.
func TestFromConfig_Values(t *testing.T) {
	r, err := FromConfig(config.New(map[string]any{
		"registry_id":     "cfg-reg",
		"shard_count":     4,
		"journal_backend": "memory",
	}))
	require.NoError(t, err)

	assert.Equal(t, "cfg-reg", r.ID())
	assert.Len(t, r.shards, 4)

	_, err = r.GetOrCreate(context.Background(), "db", anyFactory("ok"))
	require.NoError(t, err)
	require.NoError(t, r.Close(context.Background()))
}

// TestFromConfig_StringValues tests that env-style string values coerce:
// configs loaded from quoted YAML carry numbers and booleans as strings.
func TestFromConfig_StringValues(t *testing.T) {
	r, err := FromConfig(config.New(map[string]any{
		"registry_id": "strings",
		"shard_count": "8",
	}))
	require.NoError(t, err)

	assert.Equal(t, "strings", r.ID())
	assert.Len(t, r.shards, 8)
}

// TestFromConfig_OptionsOverrideFile tests that explicit options win
// over file values.
func TestFromConfig_OptionsOverrideFile(t *testing.T) {
	r, err := FromConfig(
		config.New(map[string]any{"registry_id": "from-file"}),
		WithRegistryID("from-code"),
	)
	require.NoError(t, err)
	assert.Equal(t, "from-code", r.ID())
}

// TestFromConfig_SQLiteJournal tests the full journal round trip: a
// registry built from config writes its trail to SQLite, Close releases
// the owned store, and a fresh store reads the trail back.
func TestFromConfig_SQLiteJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	r, err := FromConfig(config.New(map[string]any{
		"registry_id":     "sql-reg",
		"journal_backend": "sqlite",
		"journal_path":    path,
	}))
	require.NoError(t, err)

	_, err = r.GetOrCreate(ctx, "db", anyFactory("ok"))
	require.NoError(t, err)
	_, err = r.GetOrCreate(ctx, "bad", failingFactory[any](errors.New("nope")))
	require.Error(t, err)

	require.NoError(t, r.Close(ctx), "close should release the owned store")

	store, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.List("sql-reg")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.KindConstructed, entries[0].Kind)
	assert.Equal(t, "db", entries[0].Slot)
	assert.Equal(t, journal.KindFailed, entries[1].Kind)
	assert.Equal(t, "bad", entries[1].Slot)
}

// TestFromConfig_JournalErrors tests the config validation around
// journal backends.
func TestFromConfig_JournalErrors(t *testing.T) {
	_, err := FromConfig(config.New(map[string]any{
		"journal_backend": "sqlite",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal_path")

	_, err = FromConfig(config.New(map[string]any{
		"journal_backend": "redis",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown journal_backend: "redis"`)
}
