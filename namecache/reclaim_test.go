// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClockStruct struct {
	now atomic.Int64
}

func (clock *testClockStruct) Now() time.Time {
	return time.Unix(0, clock.now.Load())
}

func (clock *testClockStruct) Advance(d time.Duration) {
	clock.now.Add(int64(d))
}

func reclaimTestSetup(t *testing.T) (cache *Cache, clock *testClockStruct, dir *testObjectStruct, names []string) {
	config := testConfig()
	config.MaxEntries = 100
	config.HighWaterMarkPercent = 90
	config.LowWaterMarkPercent = 50
	config.HotWindow = time.Minute

	cache = testCacheMake(t, config)

	clock = &testClockStruct{}
	clock.now.Store(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	cache.now = clock.Now

	dir = newTestObject(1)
	names = make([]string, 95)
	for i := range names {
		names[i] = fmt.Sprintf("n%03d", i)
		cache.Enter(dir, newTestObject(1), plain(names[i]))
	}
	require.Equal(t, uint64(95), cache.Stats().LiveEntries)

	return
}

func TestWaterMarkConvergence(t *testing.T) {
	assert := assert.New(t)

	cache, clock, dir, names := reclaimTestSetup(t)

	clock.Advance(2 * time.Minute)
	cache.Reclaim()

	stats := cache.Stats()
	assert.Equal(uint64(50), stats.LiveEntries)
	assert.Equal(uint64(45), stats.Evictions)
	assert.Equal(uint64(45), stats.Reclaimed)
	assert.Equal(uint64(0), stats.PendingEntries)

	// oldest first
	for i, name := range names {
		if i < 45 {
			assert.Equal(Miss, cache.RawLookup(dir, name).Kind, name)
		} else {
			result := cache.RawLookup(dir, name)
			require.Equal(t, Positive, result.Kind, name)
			result.Target.Release()
		}
	}

	// below the high water mark nothing more is evicted
	cache.Reclaim()
	assert.Equal(uint64(50), cache.Stats().LiveEntries)

	checkInvariants(t, cache)
}

func TestHotWindowSkip(t *testing.T) {
	assert := assert.New(t)

	cache, clock, dir, names := reclaimTestSetup(t)

	clock.Advance(2 * time.Minute)

	// the ten oldest entries become hot
	for _, name := range names[:10] {
		result := cache.Lookup(dir, plain(name))
		require.Equal(t, Positive, result.Kind)
		result.Target.Release()
	}

	cache.Reclaim()
	assert.Equal(uint64(50), cache.Stats().LiveEntries)
	assert.Equal(uint64(1), cache.totals.EvictionRotated.CountGet())
	assert.Equal(uint64(10), cache.totals.EvictionRotated.AverageGet())

	for i, name := range names {
		result := cache.RawLookup(dir, name)
		if (i < 10) || (i >= 55) {
			require.Equal(t, Positive, result.Kind, name)
			result.Target.Release()
		} else {
			assert.Equal(Miss, result.Kind, name)
		}
	}

	checkInvariants(t, cache)
}

func TestHotWindowWrapAround(t *testing.T) {
	assert := assert.New(t)

	// every entry is hot; after one full rotation hotness is ignored
	cache, _, dir, names := reclaimTestSetup(t)

	cache.Reclaim()
	assert.Equal(uint64(50), cache.Stats().LiveEntries)
	assert.Equal(uint64(95), cache.totals.EvictionRotated.TotalGet())

	for i, name := range names {
		result := cache.RawLookup(dir, name)
		if i < 45 {
			assert.Equal(Miss, result.Kind, name)
		} else {
			require.Equal(t, Positive, result.Kind, name)
			result.Target.Release()
		}
	}

	checkInvariants(t, cache)
}

func TestNegativeEntriesShareTheAgeList(t *testing.T) {
	assert := assert.New(t)

	cache, clock, dir, _ := reclaimTestSetup(t)

	for i := 0; i < 5; i++ {
		cache.Enter(dir, nil, plain(fmt.Sprintf("neg%d", i)))
	}
	clock.Advance(2 * time.Minute)
	cache.Reclaim()

	assert.Equal(uint64(50), cache.Stats().LiveEntries)
	for i := 0; i < 5; i++ {
		assert.Equal(Negative, cache.RawLookup(dir, fmt.Sprintf("neg%d", i)).Kind)
	}
}

func TestEnterBoundsGrowth(t *testing.T) {
	assert := assert.New(t)

	config := testConfig()
	config.MaxEntries = 10
	config.HighWaterMarkPercent = 100
	config.LowWaterMarkPercent = 50
	config.HotWindow = 0
	cache := testCacheMake(t, config)

	dir := newTestObject(1)

	for i := 0; i < 100; i++ {
		cache.Enter(dir, newTestObject(1), plain(fmt.Sprintf("f%d", i)))
		assert.True(cache.Stats().LiveEntries <= 11)
	}

	assert.NotZero(cache.Stats().Evictions)

	// the most recent entry always survives
	result := cache.RawLookup(dir, "f99")
	require.Equal(t, Positive, result.Kind)
	result.Target.Release()
}

func TestBackgroundReclaimer(t *testing.T) {
	config := testConfig()
	config.ReclaimPeriod = 5 * time.Millisecond
	cache := testCacheMake(t, config)

	dir := newTestObject(1)
	for i := 0; i < 20; i++ {
		cache.Enter(dir, nil, plain(fmt.Sprintf("f%d", i)))
	}
	cache.PurgeRelation(dir, PurgeChildren)

	assert.Eventually(t, func() bool {
		stats := cache.Stats()
		return (0 == stats.PendingEntries) && (20 == stats.Reclaimed)
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, uint64(0), cache.Stats().AllocatedEntries)
}
