// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/namecache/bucketstats"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/refcntpool"
	"github.com/NVIDIA/namecache/trackedlock"
)

// Cache is a name cache. Create one with New().
type Cache struct {
	structLock trackedlock.Mutex // guards the hash tables, age list, sibling lists and config
	config     Config

	maxNameLength    int           // immutable
	derivedPoolLimit bool          // immutable; EntryPoolLimit follows MaxEntries on Resize()
	hotWindow        int64         // immutable, in ns
	maxEntries       atomic.Uint64 // changed by Resize() under structLock
	highWaterMark    atomic.Uint64
	lowWaterMark     atomic.Uint64

	forward   []*entryStruct // Key: hash & tableMask
	reverse   []*entryStruct // Key: reverseHash(targetID) & tableMask
	tableMask uint64
	tableSize atomic.Uint64

	ageHead *entryStruct // least recently entered/rotated
	ageTail *entryStruct

	children map[uint64]*entryStruct // Key: parentID; entries named in that parent
	aliases  map[uint64]*entryStruct // Key: targetID; entries naming that target

	liveCount    atomic.Int64
	pending      atomic.Pointer[entryStruct] // invalidated entries awaiting the reclaimer
	pendingCount atomic.Int64
	entryPool    refcntpool.RefCntItemPool

	statsLock      sync.Mutex // serializes folding of shards into totals
	shards         []statsShardStruct
	totals         *totalsStruct
	counterTotals  [statCount]*bucketstats.Total
	statsGroupName string

	now func() time.Time

	reclaimTicker   *time.Ticker
	reclaimStopChan chan struct{}
	reclaimWG       sync.WaitGroup
	closeOnce       sync.Once
}

var cacheSeq atomic.Uint64

func newCache(config Config) (cache *Cache, err error) {
	err = config.validate()
	if nil != err {
		return
	}

	tableSize := tableSizeFor(config.MaxEntries)

	cache = &Cache{
		config:           config,
		maxNameLength:    config.MaxNameLength,
		derivedPoolLimit: (config.EntryPoolLimit == derivedEntryPoolLimit(config.MaxEntries)),
		hotWindow:        int64(config.HotWindow),
		forward:          make([]*entryStruct, tableSize),
		reverse:          make([]*entryStruct, tableSize),
		tableMask:        tableSize - 1,
		children:         make(map[uint64]*entryStruct),
		aliases:          make(map[uint64]*entryStruct),
		shards:           make([]statsShardStruct, config.StatsShards),
		totals:           &totalsStruct{},
		now:              time.Now,
	}

	cache.tableSize.Store(tableSize)
	cache.setLimits(config.MaxEntries)

	cache.entryPool.New = func() interface{} {
		return &entryStruct{}
	}
	cache.entryPool.SetLimit(int64(config.EntryPoolLimit))

	cache.counterTotals = cache.totals.counters()
	cache.statsGroupName = fmt.Sprintf("%s-%d", config.Name, cacheSeq.Add(1))
	bucketstats.Register("namecache", cache.statsGroupName, cache.totals)

	cache.startReclaimer()

	logger.Infof("namecache %s created: MaxEntries %d TableSize %d EntryPoolLimit %d",
		cache.statsGroupName, config.MaxEntries, tableSize, config.EntryPoolLimit)

	return
}

func (cache *Cache) setLimits(maxEntries uint64) {
	cache.maxEntries.Store(maxEntries)
	cache.highWaterMark.Store(maxEntries * cache.config.HighWaterMarkPercent / 100)
	cache.lowWaterMark.Store(maxEntries * cache.config.LowWaterMarkPercent / 100)
}

func (cache *Cache) nowTick() int64 {
	return cache.now().UnixNano()
}

func (cache *Cache) currentConfig() (config Config) {
	cache.structLock.Lock()
	config = cache.config
	cache.structLock.Unlock()
	return
}

func (cache *Cache) close() {
	cache.closeOnce.Do(func() {
		cache.stopReclaimer()

		cache.structLock.Lock()
		freed := cache.drainPendingWhileLocked()
		cache.structLock.Unlock()
		cache.statsAdd(statReclaimed, freed)

		cache.foldStats()
		bucketstats.UnRegister("namecache", cache.statsGroupName)

		logger.Infof("namecache %s closed with %d live entries", cache.statsGroupName, cache.liveCount.Load())
	})
}
