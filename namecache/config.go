// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/platform"
	"github.com/NVIDIA/namecache/transitions"
)

const (
	confSectionName = "NameCache"

	defaultMaxNameLength        = 255
	defaultMemoryFraction       = float64(0.01)
	defaultHighWaterMarkPercent = uint64(98)
	defaultLowWaterMarkPercent  = uint64(95)
	defaultReclaimPeriod        = time.Second
	defaultHotWindow            = 3 * time.Second

	minDerivedMaxEntries = uint64(1024)
	maxDerivedMaxEntries = uint64(1) << 22

	// rough size of the name stored with each entry
	averageNameSize = uint64(32)
)

// Config holds the settings of a Cache.
type Config struct {
	Name                 string        // statistics group name
	MaxNameLength        int           // longest name (in bytes) that is cached
	MaxEntries           uint64        // desired maximum number of live entries
	HighWaterMarkPercent uint64        // reclaim when live entries exceed this % of MaxEntries
	LowWaterMarkPercent  uint64        // ... down to this % of MaxEntries
	ReclaimPeriod        time.Duration // 0 disables the background reclaimer
	HotWindow            time.Duration // entries hit this recently are skipped by eviction
	StatsShards          int           // number of statistics shards
	EntryPoolLimit       uint64        // maximum allocated entries, live or pending
}

type globalsStruct struct {
	sync.Mutex
	defaultCache *Cache
	mountIDMap   map[string]uint64 // Key: volumeName
}

var globals globalsStruct

func init() {
	transitions.Register("namecache", &globals)
}

func entrySize() uint64 {
	return uint64(unsafe.Sizeof(entryStruct{})) + averageNameSize
}

func derivedMaxEntries(memoryFraction float64) (maxEntries uint64) {
	memBudget := float64(platform.MemSize()) * memoryFraction / platform.GoHeapAllocationMultiplier

	maxEntries = uint64(memBudget) / entrySize()
	if maxEntries < minDerivedMaxEntries {
		maxEntries = minDerivedMaxEntries
	}
	if maxEntries > maxDerivedMaxEntries {
		maxEntries = maxDerivedMaxEntries
	}

	return
}

func derivedEntryPoolLimit(maxEntries uint64) uint64 {
	return maxEntries + maxEntries/8
}

// DefaultConfig returns the configuration used for any option not present in
// the NameCache section of a ConfMap.
//
func DefaultConfig() (config Config) {
	config = Config{
		Name:                 "cache",
		MaxNameLength:        defaultMaxNameLength,
		MaxEntries:           derivedMaxEntries(defaultMemoryFraction),
		HighWaterMarkPercent: defaultHighWaterMarkPercent,
		LowWaterMarkPercent:  defaultLowWaterMarkPercent,
		ReclaimPeriod:        defaultReclaimPeriod,
		HotWindow:            defaultHotWindow,
		StatsShards:          runtime.GOMAXPROCS(0),
	}
	config.EntryPoolLimit = derivedEntryPoolLimit(config.MaxEntries)

	return
}

func optionPresent(confMap conf.ConfMap, optionName string) (present bool) {
	_, present = confMap[confSectionName][optionName]
	return
}

// ParseConfig reads the NameCache section of confMap. Absent options take
// their DefaultConfig() value; malformed or inconsistent ones are an error.
//
func ParseConfig(confMap conf.ConfMap) (config Config, err error) {
	var (
		maxNameLength  uint32
		memoryFraction float64
		statsShards    uint32
	)

	config = DefaultConfig()

	if optionPresent(confMap, "Name") {
		config.Name, err = confMap.FetchOptionValueString(confSectionName, "Name")
		if nil != err {
			return
		}
	}

	if optionPresent(confMap, "MaxNameLength") {
		maxNameLength, err = confMap.FetchOptionValueUint32(confSectionName, "MaxNameLength")
		if nil != err {
			return
		}
		config.MaxNameLength = int(maxNameLength)
	}

	if optionPresent(confMap, "MaxEntries") {
		config.MaxEntries, err = confMap.FetchOptionValueUint64(confSectionName, "MaxEntries")
		if nil != err {
			return
		}
	} else if optionPresent(confMap, "MemoryFraction") {
		memoryFraction, err = confMap.FetchOptionValueFloat64(confSectionName, "MemoryFraction")
		if nil != err {
			return
		}
		if (0 >= memoryFraction) || (1 < memoryFraction) {
			err = blunder.NewError(blunder.BadConfigError, "%s.MemoryFraction (%v) must be in (0,1]", confSectionName, memoryFraction)
			return
		}
		config.MaxEntries = derivedMaxEntries(memoryFraction)
	}

	if optionPresent(confMap, "HighWaterMarkPercent") {
		config.HighWaterMarkPercent, err = confMap.FetchOptionValueUint64(confSectionName, "HighWaterMarkPercent")
		if nil != err {
			return
		}
	}

	if optionPresent(confMap, "LowWaterMarkPercent") {
		config.LowWaterMarkPercent, err = confMap.FetchOptionValueUint64(confSectionName, "LowWaterMarkPercent")
		if nil != err {
			return
		}
	}

	if optionPresent(confMap, "ReclaimPeriod") {
		config.ReclaimPeriod, err = confMap.FetchOptionValueDuration(confSectionName, "ReclaimPeriod")
		if nil != err {
			return
		}
	}

	if optionPresent(confMap, "HotWindow") {
		config.HotWindow, err = confMap.FetchOptionValueDuration(confSectionName, "HotWindow")
		if nil != err {
			return
		}
	}

	if optionPresent(confMap, "StatsShards") {
		statsShards, err = confMap.FetchOptionValueUint32(confSectionName, "StatsShards")
		if nil != err {
			return
		}
		config.StatsShards = int(statsShards)
	}

	if optionPresent(confMap, "EntryPoolLimit") {
		config.EntryPoolLimit, err = confMap.FetchOptionValueUint64(confSectionName, "EntryPoolLimit")
		if nil != err {
			return
		}
	} else {
		config.EntryPoolLimit = derivedEntryPoolLimit(config.MaxEntries)
	}

	err = config.validate()

	return
}

func (config *Config) validate() (err error) {
	if 0 >= config.MaxNameLength {
		err = blunder.NewError(blunder.BadConfigError, "%s.MaxNameLength must be positive", confSectionName)
		return
	}
	if 0 == config.MaxEntries {
		err = blunder.NewError(blunder.BadConfigError, "%s.MaxEntries must be positive", confSectionName)
		return
	}
	if (100 < config.HighWaterMarkPercent) || (config.LowWaterMarkPercent > config.HighWaterMarkPercent) {
		err = blunder.NewError(blunder.BadConfigError, "%s water marks (%d%%/%d%%) must satisfy Low <= High <= 100",
			confSectionName, config.LowWaterMarkPercent, config.HighWaterMarkPercent)
		return
	}
	if 0 >= config.StatsShards {
		err = blunder.NewError(blunder.BadConfigError, "%s.StatsShards must be positive", confSectionName)
		return
	}
	if 0 == config.EntryPoolLimit {
		config.EntryPoolLimit = derivedEntryPoolLimit(config.MaxEntries)
	}

	return
}

// Default returns the process wide cache created by Up(), or nil before Up()
// or after Down().
//
func Default() (cache *Cache) {
	globals.Lock()
	cache = globals.defaultCache
	globals.Unlock()
	return
}

// MountIDOf returns the MountID recorded for a served volume.
//
func MountIDOf(volumeName string) (mountID uint64, ok bool) {
	globals.Lock()
	mountID, ok = globals.mountIDMap[volumeName]
	globals.Unlock()
	return
}

func (dummy *globalsStruct) Up(confMap conf.ConfMap) (err error) {
	var (
		cache  *Cache
		config Config
	)

	config, err = ParseConfig(confMap)
	if nil != err {
		return
	}

	cache, err = New(config)
	if nil != err {
		return
	}

	globals.Lock()
	globals.defaultCache = cache
	globals.mountIDMap = make(map[string]uint64)
	globals.Unlock()

	logger.Infof("namecache.Up(): MaxEntries %d MaxNameLength %d ReclaimPeriod %v HotWindow %v",
		config.MaxEntries, config.MaxNameLength, config.ReclaimPeriod, config.HotWindow)

	return
}

func (dummy *globalsStruct) ServeVolume(confMap conf.ConfMap, volumeName string) (err error) {
	var (
		mountID uint64
	)

	mountID, err = confMap.FetchOptionValueUint64("Volume:"+volumeName, "MountID")
	if nil != err {
		return
	}

	globals.Lock()
	globals.mountIDMap[volumeName] = mountID
	globals.Unlock()

	return
}

func (dummy *globalsStruct) UnserveVolume(confMap conf.ConfMap, volumeName string) (err error) {
	globals.Lock()
	mountID, ok := globals.mountIDMap[volumeName]
	delete(globals.mountIDMap, volumeName)
	cache := globals.defaultCache
	globals.Unlock()

	if ok && (nil != cache) {
		cache.PurgeMount(mountID)
	}

	return
}

func (dummy *globalsStruct) SignaledStart(confMap conf.ConfMap) (err error) {
	return nil
}

// SignaledFinish resizes the default cache if NameCache.MaxEntries changed.
func (dummy *globalsStruct) SignaledFinish(confMap conf.ConfMap) (err error) {
	var (
		config Config
	)

	config, err = ParseConfig(confMap)
	if nil != err {
		return
	}

	cache := Default()
	if nil == cache {
		return
	}

	if config.MaxEntries != cache.Config().MaxEntries {
		err = cache.Resize(config.MaxEntries)
	}

	return
}

func (dummy *globalsStruct) Down(confMap conf.ConfMap) (err error) {
	globals.Lock()
	cache := globals.defaultCache
	globals.defaultCache = nil
	globals.mountIDMap = nil
	globals.Unlock()

	if nil != cache {
		cache.Close()
	}

	return
}
