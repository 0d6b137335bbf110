// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package statslogger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/inode"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/namecache"
	"github.com/NVIDIA/namecache/transitions"
)

func TestSimpleStats(t *testing.T) {
	var (
		sp SimpleStats
	)

	assert := assert.New(t)

	assert.Equal(uint64(0), sp.Mean())

	for _, cnt := range []uint64{7, 3, 11, 3} {
		sp.Sample(cnt)
	}
	assert.Equal(uint64(3), sp.Min())
	assert.Equal(uint64(11), sp.Max())
	assert.Equal(uint64(6), sp.Mean())
	assert.Equal(uint64(4), sp.Samples())

	sp.Clear()
	sp.Sample(5)
	assert.Equal(uint64(5), sp.Min())
	assert.Equal(uint64(5), sp.Max())
}

func TestStatsDelta(t *testing.T) {
	oldStats := namecache.Stats{GoodHits: 10, Misses: 4, Enters: 3, LiveEntries: 3, MaxEntries: 100}
	newStats := namecache.Stats{GoodHits: 15, Misses: 4, Enters: 9, LiveEntries: 8, MaxEntries: 100}

	delta := statsDelta(&newStats, &oldStats)

	assert.Equal(t, namecache.Stats{GoodHits: 5, Enters: 6, LiveEntries: 8, MaxEntries: 100}, delta)
}

func TestStatsLogger(t *testing.T) {
	var (
		logCopy logger.LogTarget
	)

	assert := assert.New(t)

	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Logging.LogFilePath=/dev/null",
		"Logging.LogToConsole=false",
		"NameCache.MaxEntries=2048",
		"NameCache.ReclaimPeriod=0s",
		"StatsLogger.Period=1s",
	})
	require.NoError(t, err)

	err = transitions.Up(confMap)
	require.NoError(t, err)

	logCopy.Init(100)
	logger.AddLogTarget(logCopy)

	assert.Equal(time.Second, globals.statsLogPeriod)
	require.NotNil(t, globals.logTicker)

	cache := namecache.Default()
	require.NotNil(t, cache)
	root := inode.NewVolume("TestVolume", 1).RootDir()
	cache.Enter(root, nil, &namecache.ComponentName{Name: "missing", Op: namecache.LookupOp, Flags: namecache.MakeEntry})
	assert.Equal(namecache.Negative, cache.RawLookup(root, "missing").Kind)

	logsWritten := globals.logsWritten.Load()
	require.Eventually(t, func() bool {
		return globals.logsWritten.Load() >= logsWritten+2
	}, 10*time.Second, 50*time.Millisecond)

	assert.True(logCopy.Contains("NameCache Lookups (total)"))
	assert.True(logCopy.Contains("NameCache Updates (delta)"))
	assert.True(logCopy.Contains("NameCache Entries: Live"))

	// a zero period turns the logger off
	err = confMap.UpdateFromString("StatsLogger.Period=0s")
	require.NoError(t, err)
	err = transitions.Signaled(confMap)
	require.NoError(t, err)
	assert.Nil(globals.logTicker)

	logsWritten = globals.logsWritten.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(logsWritten, globals.logsWritten.Load())

	err = transitions.Down(confMap)
	require.NoError(t, err)
}

func TestParseConfMap(t *testing.T) {
	for confString, expected := range map[string]time.Duration{
		"StatsLogger.Period=5m":    5 * time.Minute,
		"StatsLogger.Period=0s":    0,
		"StatsLogger.Period=100ms": defaultStatsLogPeriod,
		"StatsLogger.Period=never": defaultStatsLogPeriod,
	} {
		confMap, err := conf.MakeConfMapFromStrings([]string{confString})
		require.NoError(t, err)
		assert.Equal(t, expected, parseConfMap(confMap), confString)
	}
}
