package rasterpool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relief-labs/rasterpool/pkg/codec"
	"github.com/relief-labs/rasterpool/pkg/rasterpool"
)

func releaseAll(pool *rasterpool.Pool, handles []*rasterpool.Handle) {
	for _, h := range handles {
		pool.Release(h)
	}
}

// Test_Pool_Get_Reuses_Resident_Copy round-trip: requesting the same key
// twice in a row, with no contention, reuses the one resident handle rather
// than opening a second copy.
func Test_Pool_Get_Reuses_Resident_Copy(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(4, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "fixture.tif"}

	h1, err := pool.Get(key, 1)
	require.NoError(t, err)
	require.Len(t, h1, 1)

	releaseAll(pool, h1)

	h2, err := pool.Get(key, 1)
	require.NoError(t, err)
	require.Len(t, h2, 1)

	releaseAll(pool, h2)

	require.Equal(t, 1, pool.Count(key))
}

// Test_Pool_Contains_Idempotent_After_Release: a key remains resident after
// its use count returns to zero — Release does not evict.
func Test_Pool_Contains_Idempotent_After_Release(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(4, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "fixture.tif"}

	h, err := pool.Get(key, 1)
	require.NoError(t, err)

	releaseAll(pool, h)

	require.True(t, pool.Contains(key))
}

// Test_Pool_Get_Propagates_Open_Error: a key the codec cannot open never
// becomes resident.
func Test_Pool_Get_Propagates_Open_Error(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(4, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "missing.tif"}

	_, err := pool.Get(key, 1)
	require.Error(t, err)
	require.False(t, pool.Contains(key))
}

// Test_Pool_Clear_Releases_Idle_Handles: Clear evicts every slot whose use
// count is zero.
func Test_Pool_Clear_Releases_Idle_Handles(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(4, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "fixture.tif"}

	h, err := pool.Get(key, 1)
	require.NoError(t, err)

	releaseAll(pool, h)
	pool.Clear()

	require.False(t, pool.Contains(key))
}

// Test_Pool_Clear_Skips_Handles_Still_In_Use: a handle whose use count is
// nonzero survives Clear.
func Test_Pool_Clear_Skips_Handles_Still_In_Use(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(4, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "fixture.tif"}

	h, err := pool.Get(key, 1)
	require.NoError(t, err)

	pool.Clear()

	require.True(t, pool.Contains(key), "handle still pinned should survive Clear")

	releaseAll(pool, h)
}

// Test_Pool_Get_Grows_Copies_Hard: a positive Copies target opens new copies
// of the same key until the target is met, when the pool has room for them.
func Test_Pool_Get_Grows_Copies_Hard(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(4, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "fixture.tif"}

	handles, err := pool.Get(key, 3)
	require.NoError(t, err)
	require.Len(t, handles, 3)
	require.Equal(t, 3, pool.Count(key))

	releaseAll(pool, handles)
}

// Test_Pool_Get_Soft_Returns_At_Least_The_Resident_Copy: a negative (soft)
// Copies target, asked while one copy is resident and pinned, returns at
// least that copy.
func Test_Pool_Get_Soft_Returns_At_Least_The_Resident_Copy(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(4, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "fixture.tif"}

	first, err := pool.Get(key, 1)
	require.NoError(t, err)

	handles, err := pool.Get(key, -4)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(handles), 1)

	releaseAll(pool, first)
	releaseAll(pool, handles)
}

// Test_Pool_Get_Zero_Copies_Behaves_As_One boundary (spec.md §8 property
// 12).
func Test_Pool_Get_Zero_Copies_Behaves_As_One(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(4, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "fixture.tif"}

	handles, err := pool.Get(key, 0)
	require.NoError(t, err)
	require.Len(t, handles, 1)

	releaseAll(pool, handles)
}

// Test_Pool_Never_Exceeds_Configured_Capacity property (spec.md §8 property
// 5): requesting more copies than the pool has slots never grows the pool
// past its fixed size.
func Test_Pool_Never_Exceeds_Configured_Capacity(t *testing.T) {
	t.Parallel()

	pool := rasterpool.NewPool(2, codec.NewFake(), rasterpool.NewErrorChannel(1000, true))

	key := rasterpool.Key{URI: "fixture.tif"}

	handles, err := pool.Get(key, 5)
	require.NoError(t, err)
	require.LessOrEqual(t, len(handles), 2)
	require.LessOrEqual(t, pool.Count(key), 2)

	releaseAll(pool, handles)
}
