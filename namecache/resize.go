// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/utils"
)

// resize swaps in hash tables sized for maxEntries and rehashes every live
// entry into them. The new tables are allocated before any lock is taken;
// the swap happens with the structural lock and every statistics shard lock
// held, so no lookup, Enter or purge runs concurrently.
func (cache *Cache) resize(maxEntries uint64) (err error) {
	if 0 == maxEntries {
		err = blunder.NewError(blunder.InvalidArgError, "namecache.Resize() requires maxEntries > 0")
		return
	}

	ctx := logger.TraceEnter("maxEntries:", maxEntries)
	defer func() { ctx.TraceExit("err:", err) }()

	stopwatch := utils.NewStopwatch()

	tableSize := tableSizeFor(maxEntries)
	newForward := make([]*entryStruct, tableSize)
	newReverse := make([]*entryStruct, tableSize)

	cache.structLock.Lock()
	cache.statsLock.Lock()
	for i := range cache.shards {
		cache.shards[i].Lock()
	}

	cache.foldShardsWhileLocked(false)

	oldTableSize := uint64(len(cache.forward))

	cache.forward = newForward
	cache.reverse = newReverse
	cache.tableMask = tableSize - 1
	cache.tableSize.Store(tableSize)

	rehashed := 0
	for entry := cache.ageHead; nil != entry; entry = entry.ageLink.next {
		if nil == entry.parent {
			continue
		}

		wasReverse := (0 != entry.links&onReverse)
		entry.links &^= (onForward | onReverse)

		cache.forwardLinkWhileLocked(entry)
		if wasReverse {
			cache.reverseLinkWhileLocked(entry)
		}
		rehashed++
	}

	cache.config.MaxEntries = maxEntries
	if cache.derivedPoolLimit {
		cache.config.EntryPoolLimit = derivedEntryPoolLimit(maxEntries)
	}
	cache.setLimits(maxEntries)
	cache.entryPool.SetLimit(int64(cache.config.EntryPoolLimit))

	for i := range cache.shards {
		cache.shards[i].Unlock()
	}
	cache.statsLock.Unlock()
	cache.structLock.Unlock()

	cache.totals.Resizes.Increment()
	cache.totals.ResizeRehashed.Add(uint64(rehashed))

	logger.Infof("namecache %s resized to MaxEntries %d: %d -> %d buckets, %d entries rehashed in %s",
		cache.statsGroupName, maxEntries, oldTableSize, tableSize, rehashed, stopwatch.ElapsedString())

	return
}
