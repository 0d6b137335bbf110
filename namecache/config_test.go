// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/transitions"
)

func TestParseConfigDefaults(t *testing.T) {
	assert := assert.New(t)

	config, err := ParseConfig(conf.MakeConfMap())
	require.NoError(t, err)

	assert.Empty(cmp.Diff(DefaultConfig(), config))
	assert.Equal(255, config.MaxNameLength)
	assert.True(config.MaxEntries >= minDerivedMaxEntries)
	assert.True(config.MaxEntries <= maxDerivedMaxEntries)
	assert.Equal(config.MaxEntries+config.MaxEntries/8, config.EntryPoolLimit)
	assert.Equal(runtime.GOMAXPROCS(0), config.StatsShards)
	assert.Equal(time.Second, config.ReclaimPeriod)
	assert.Equal(3*time.Second, config.HotWindow)
}

func TestParseConfigOverrides(t *testing.T) {
	confMap, err := conf.MakeConfMapFromStrings([]string{
		"NameCache.Name=dcache",
		"NameCache.MaxNameLength=64",
		"NameCache.MaxEntries=5000",
		"NameCache.HighWaterMarkPercent=90",
		"NameCache.LowWaterMarkPercent=80",
		"NameCache.ReclaimPeriod=250ms",
		"NameCache.HotWindow=10s",
		"NameCache.StatsShards=3",
	})
	require.NoError(t, err)

	config, err := ParseConfig(confMap)
	require.NoError(t, err)

	expected := Config{
		Name:                 "dcache",
		MaxNameLength:        64,
		MaxEntries:           5000,
		HighWaterMarkPercent: 90,
		LowWaterMarkPercent:  80,
		ReclaimPeriod:        250 * time.Millisecond,
		HotWindow:            10 * time.Second,
		StatsShards:          3,
		EntryPoolLimit:       5625,
	}
	assert.Empty(t, cmp.Diff(expected, config))

	err = confMap.UpdateFromString("NameCache.EntryPoolLimit=6000")
	require.NoError(t, err)
	config, err = ParseConfig(confMap)
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), config.EntryPoolLimit)

	confMap, err = conf.MakeConfMapFromStrings([]string{"NameCache.MemoryFraction=0.5"})
	require.NoError(t, err)
	config, err = ParseConfig(confMap)
	require.NoError(t, err)
	assert.Equal(t, derivedMaxEntries(0.5), config.MaxEntries)
}

func TestParseConfigErrors(t *testing.T) {
	for _, confString := range []string{
		"NameCache.MaxNameLength=0",
		"NameCache.MaxNameLength=many",
		"NameCache.MaxEntries=0",
		"NameCache.MaxEntries=-3",
		"NameCache.LowWaterMarkPercent=99",
		"NameCache.HighWaterMarkPercent=101",
		"NameCache.MemoryFraction=2",
		"NameCache.ReclaimPeriod=often",
		"NameCache.StatsShards=0",
	} {
		confMap, err := conf.MakeConfMapFromStrings([]string{confString})
		require.NoError(t, err)

		_, err = ParseConfig(confMap)
		assert.Error(t, err, confString)
	}

	confMap, err := conf.MakeConfMapFromStrings([]string{"NameCache.MaxEntries=0"})
	require.NoError(t, err)
	_, err = ParseConfig(confMap)
	assert.True(t, blunder.Is(err, blunder.BadConfigError))
}

func TestTransitions(t *testing.T) {
	assert := assert.New(t)

	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Logging.LogFilePath=/dev/null",
		"Logging.LogToConsole=false",
		"FSGlobals.VolumeList=VolA,VolB",
		"Volume:VolA.MountID=1",
		"Volume:VolB.MountID=2",
		"NameCache.MaxEntries=2048",
		"NameCache.ReclaimPeriod=0s",
	})
	require.NoError(t, err)

	assert.Nil(Default())

	err = transitions.Up(confMap)
	require.NoError(t, err)

	cache := Default()
	require.NotNil(t, cache)
	assert.Equal(uint64(2048), cache.Stats().MaxEntries)

	mountID, ok := MountIDOf("VolA")
	assert.True(ok)
	assert.Equal(uint64(1), mountID)

	dirA := newTestObject(1)
	dirB := newTestObject(2)
	cache.Enter(dirA, nil, plain("a"))
	cache.Enter(dirB, nil, plain("b"))

	// VolA is no longer served and the cache grows
	err = confMap.UpdateFromStrings([]string{
		"FSGlobals.VolumeList=VolB",
		"NameCache.MaxEntries=4096",
	})
	require.NoError(t, err)
	err = transitions.Signaled(confMap)
	require.NoError(t, err)

	assert.True(cache == Default())
	assert.Equal(Miss, cache.RawLookup(dirA, "a").Kind)
	assert.Equal(Negative, cache.RawLookup(dirB, "b").Kind)
	assert.Equal(uint64(4096), cache.Config().MaxEntries)
	assert.Equal(uint64(4096), cache.Stats().TableSize)

	_, ok = MountIDOf("VolA")
	assert.False(ok)

	err = transitions.Down(confMap)
	require.NoError(t, err)
	assert.Nil(Default())
}
