package lazyslot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/lazyslot/pkg/lazyslot/config"
)

// TestRegistryWarm_DependencyChain tests that a warm run builds a
// dependency chain bottom-up, each slot exactly once.
func TestRegistryWarm_DependencyChain(t *testing.T) {
	rec := &orderRecorder{}
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Provide("base", recordingFactory(rec, "base", 1)))
	require.NoError(t, r.Provide("mid", recordingFactory(rec, "mid", 2), WithDependencies("base")))
	require.NoError(t, r.Provide("top", recordingFactory(rec, "top", 3), WithDependencies("mid")))

	require.NoError(t, r.Warm(ctx, []string{"top"}))

	assert.Equal(t, []string{"base", "mid", "top"}, rec.snapshot())
	for _, name := range []string{"base", "mid", "top"} {
		assert.True(t, r.Populated(name), "slot %s", name)
		assert.Equal(t, int64(1), r.Constructions(name), "slot %s", name)
	}
}

// TestRegistryWarmAll tests warming every bound provider, dependents
// after their dependencies.
func TestRegistryWarmAll(t *testing.T) {
	rec := &orderRecorder{}
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Provide("alpha", recordingFactory(rec, "alpha", 1)))
	require.NoError(t, r.Provide("bravo", recordingFactory(rec, "bravo", 2)))
	require.NoError(t, r.Provide("charlie", recordingFactory(rec, "charlie", 3), WithDependencies("alpha")))

	require.NoError(t, r.WarmAll(ctx))

	order := rec.snapshot()
	require.Len(t, order, 3)
	assert.Equal(t, "charlie", order[2], "dependents build after their wave of dependencies")
	for _, name := range []string{"alpha", "bravo", "charlie"} {
		assert.True(t, r.Populated(name), "slot %s", name)
	}
}

// TestRegistryWarm_AlreadyPopulated tests that warm never rebuilds a
// populated slot.
func TestRegistryWarm_AlreadyPopulated(t *testing.T) {
	var calls atomic.Int64
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Provide("db", func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "conn", nil
	}))

	_, err := r.Get(ctx, "db")
	require.NoError(t, err)
	require.NoError(t, r.Warm(ctx, []string{"db"}))

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(1), r.Constructions("db"))
}

// TestRegistryWarm_UnknownSeed tests that naming an unbound slot fails
// the run before any construction.
func TestRegistryWarm_UnknownSeed(t *testing.T) {
	var calls atomic.Int64
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Provide("known", func(ctx context.Context) (any, error) {
		calls.Add(1)
		return 1, nil
	}))

	err := r.Warm(ctx, []string{"known", "ghost"})
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.Contains(t, err.Error(), "ghost")

	assert.Equal(t, int64(0), calls.Load(), "nothing should build when seeds are invalid")
	assert.False(t, r.Populated("known"))
}

// TestRegistryWarm_InvalidGraph tests that any cycle in the bound
// providers blocks warming entirely.
func TestRegistryWarm_InvalidGraph(t *testing.T) {
	var calls atomic.Int64
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Provide("a", anyFactory(1), WithDependencies("b")))
	require.NoError(t, r.Provide("b", anyFactory(2), WithDependencies("a")))
	require.NoError(t, r.Provide("alone", func(ctx context.Context) (any, error) {
		calls.Add(1)
		return 3, nil
	}))

	err := r.Warm(ctx, []string{"alone"})
	assert.ErrorIs(t, err, ErrInitCycle)
	assert.Equal(t, int64(0), calls.Load(), "an invalid graph must not warm anything")
}

// TestRegistryWarm_FailureSkipsDependents tests the failure contract:
// siblings finish, dependents of the failed slot never start, and the
// error names the failed construction.
func TestRegistryWarm_FailureSkipsDependents(t *testing.T) {
	errBoom := errors.New("boom")
	var topCalls atomic.Int64
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Provide("bad", failingFactory[any](errBoom)))
	require.NoError(t, r.Provide("good", anyFactory("ok")))
	require.NoError(t, r.Provide("dependent", func(ctx context.Context) (any, error) {
		topCalls.Add(1)
		return "never", nil
	}, WithDependencies("bad")))

	err := r.WarmAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "construct slot bad")

	assert.True(t, r.Populated("good"), "failures must not block unrelated slots")
	assert.False(t, r.Populated("bad"))
	assert.False(t, r.Populated("dependent"))
	assert.Equal(t, int64(0), topCalls.Load(), "dependents of a failed slot stay blocked")
}

// TestRegistryWarm_FailedSlotStaysArmed tests that a failed warm leaves
// the slot retryable through the normal path.
func TestRegistryWarm_FailedSlotStaysArmed(t *testing.T) {
	errBoom := errors.New("boom")
	var calls atomic.Int64
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Provide("flaky", failNTimesFactory(&calls, 1, errBoom, any("recovered"))))

	err := r.Warm(ctx, []string{"flaky"})
	require.Error(t, err)
	assert.False(t, r.Populated("flaky"))

	v, err := r.Get(ctx, "flaky")
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, int64(2), calls.Load())
}

// TestRegistryWarm_FailFast tests that fail-fast stops scheduling new
// waves after the first failed one.
func TestRegistryWarm_FailFast(t *testing.T) {
	errBoom := errors.New("boom")
	var laterCalls atomic.Int64
	ctx := context.Background()

	setup := func() *Registry {
		r := New()
		require.NoError(t, r.Provide("bad", failingFactory[any](errBoom)))
		require.NoError(t, r.Provide("good", anyFactory("ok")))
		require.NoError(t, r.Provide("later", func(ctx context.Context) (any, error) {
			laterCalls.Add(1)
			return "late", nil
		}, WithDependencies("good")))
		return r
	}

	t.Run("without fail-fast the next wave still runs", func(t *testing.T) {
		laterCalls.Store(0)
		r := setup()
		err := r.WarmAll(ctx)
		require.Error(t, err)
		assert.True(t, r.Populated("later"))
		assert.Equal(t, int64(1), laterCalls.Load())
	})

	t.Run("with fail-fast the next wave is skipped", func(t *testing.T) {
		laterCalls.Store(0)
		r := setup()
		err := r.WarmAll(ctx, WithFailFast())
		require.Error(t, err)
		assert.True(t, r.Populated("good"), "the failed wave itself runs to completion")
		assert.False(t, r.Populated("later"))
		assert.Equal(t, int64(0), laterCalls.Load())
	})
}

// TestRegistryWarm_MaxConcurrency tests that the factory concurrency
// ceiling holds across a wide wave.
func TestRegistryWarm_MaxConcurrency(t *testing.T) {
	const slots = 6
	const limit = 2

	g := &gauge{}
	r := New()
	ctx := context.Background()

	names := make([]string, 0, slots)
	for i := 0; i < slots; i++ {
		name := string(rune('a' + i))
		names = append(names, name)
		require.NoError(t, r.Provide(name, func(ctx context.Context) (any, error) {
			g.enter()
			defer g.exit()
			time.Sleep(30 * time.Millisecond)
			return name, nil
		}))
	}

	require.NoError(t, r.Warm(ctx, names, WithMaxConcurrency(limit)))

	assert.LessOrEqual(t, g.max(), limit, "no more than %d factories may run at once", limit)
	for _, name := range names {
		assert.True(t, r.Populated(name), "slot %s", name)
	}
}

// TestRegistryWarmFromConfig tests config-driven warming: the listed
// slots build, everything else stays lazy, and a config without a warm
// list is a no-op.
func TestRegistryWarmFromConfig(t *testing.T) {
	rec := &orderRecorder{}
	r := New()
	ctx := context.Background()

	require.NoError(t, r.Provide("db", recordingFactory(rec, "db", 1)))
	require.NoError(t, r.Provide("cache", recordingFactory(rec, "cache", 2), WithDependencies("db")))
	require.NoError(t, r.Provide("mailer", recordingFactory(rec, "mailer", 3)))

	cfg := config.New(map[string]any{
		"warm": []any{"cache"},
	})
	require.NoError(t, r.WarmFromConfig(ctx, cfg))

	assert.Equal(t, []string{"db", "cache"}, rec.snapshot())
	assert.True(t, r.Populated("cache"))
	assert.False(t, r.Populated("mailer"), "slots outside the warm list stay lazy")

	t.Run("missing warm key is a no-op", func(t *testing.T) {
		r2 := New()
		require.NoError(t, r2.Provide("db", anyFactory(1)))
		require.NoError(t, r2.WarmFromConfig(ctx, config.New(nil)))
		assert.False(t, r2.Populated("db"))
	})

	t.Run("unknown name fails like Warm", func(t *testing.T) {
		r2 := New()
		err := r2.WarmFromConfig(ctx, config.New(map[string]any{
			"warm": []any{"ghost"},
		}))
		assert.ErrorIs(t, err, ErrNoProvider)
	})
}

// TestRegistryWarm_ContextCancelled tests that a cancelled context stops
// the run before factories launch.
func TestRegistryWarm_ContextCancelled(t *testing.T) {
	var calls atomic.Int64
	r := New()

	require.NoError(t, r.Provide("db", func(ctx context.Context) (any, error) {
		calls.Add(1)
		return 1, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Warm(ctx, []string{"db"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), calls.Load())
	assert.False(t, r.Populated("db"))
}

// TestRegistryWarm_Guards tests the empty-run no-op and the closed and
// nil-context rejections.
func TestRegistryWarm_Guards(t *testing.T) {
	r := New()
	ctx := context.Background()

	assert.NoError(t, r.Warm(ctx, nil), "warming nothing is a no-op")
	assert.NoError(t, r.WarmAll(ctx), "an empty registry warms trivially")

	var nilCtx context.Context
	assert.ErrorIs(t, r.Warm(nilCtx, []string{"x"}), ErrNilContext)

	require.NoError(t, r.Close(ctx))
	assert.ErrorIs(t, r.Warm(ctx, []string{"x"}), ErrRegistryClosed)
}
