// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"time"

	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/utils"
)

func (cache *Cache) startReclaimer() {
	if 0 == cache.config.ReclaimPeriod {
		logger.Infof("namecache %s reclaimer is disabled", cache.statsGroupName)
		return
	}

	cache.reclaimTicker = time.NewTicker(cache.config.ReclaimPeriod)
	cache.reclaimStopChan = make(chan struct{})

	cache.reclaimWG.Add(1)
	go func() {
		defer cache.reclaimWG.Done()
		for {
			select {
			case <-cache.reclaimTicker.C:
				cache.reclaimPass()
			case <-cache.reclaimStopChan:
				return
			}
		}
	}()
}

func (cache *Cache) stopReclaimer() {
	if nil == cache.reclaimTicker {
		return
	}

	cache.reclaimTicker.Stop()
	close(cache.reclaimStopChan)
	cache.reclaimWG.Wait()
	cache.reclaimTicker = nil
}

// reclaimPass folds the statistics, evicts down to the low water mark if the
// high water mark has been exceeded, and frees every pending entry.
func (cache *Cache) reclaimPass() {
	var (
		evicted uint64
		rotated uint64
	)

	stopwatch := utils.NewStopwatch()

	cache.foldStats()

	cache.structLock.Lock()
	if uint64(cache.liveCount.Load()) > cache.highWaterMark.Load() {
		evicted, rotated = cache.evictWhileLocked(cache.nowTick())
		cache.totals.EvictionRotated.Add(rotated)
	}
	freed := cache.drainPendingWhileLocked()
	cache.structLock.Unlock()

	cache.statsAdd(statEvictions, evicted)
	cache.statsAdd(statReclaimed, freed)

	cache.totals.ReclaimPasses.Increment()
	cache.totals.ReclaimPassUsec.Add(stopwatch.ElapsedUs())
	cache.totals.ReclaimEvicted.Add(evicted)
	cache.totals.ReclaimFreed.Add(freed)

	logger.DebugfID(logger.DbgReclaim, "namecache %s reclaim pass: evicted %d freed %d live %d in %s",
		cache.statsGroupName, evicted, freed, cache.liveCount.Load(), stopwatch.ElapsedString())
}

// evictWhileLocked invalidates entries from the head of the age list until
// the low water mark is reached. Entries hit within the hot window are
// rotated to the tail instead, until the scan comes back around to the first
// rotated entry; from then on hotness is ignored.
func (cache *Cache) evictWhileLocked(now int64) (evicted uint64, rotated uint64) {
	var (
		firstRotated *entryStruct
		forced       bool
	)

	lowWaterMark := int64(cache.lowWaterMark.Load())

	for cache.liveCount.Load() > lowWaterMark {
		entry := cache.ageHead
		if nil == entry {
			break
		}

		if nil == entry.parent {
			// already invalidated; the drain would do this anyway
			cache.ageUnlinkWhileLocked(entry)
			continue
		}

		if entry == firstRotated {
			forced = true
		}

		if !forced && ((now - entry.lastHit.Load()) < cache.hotWindow) {
			if nil == firstRotated {
				firstRotated = entry
			}
			cache.ageRotateWhileLocked(entry)
			rotated++
			continue
		}

		cache.ageUnlinkWhileLocked(entry)
		entry.Lock()
		cache.invalidateWhileLocked(entry)
		entry.Unlock()
		evicted++
	}

	return
}

// drainPendingWhileLocked frees every entry on the pending stack.
func (cache *Cache) drainPendingWhileLocked() (freed uint64) {
	var (
		next *entryStruct
	)

	for entry := cache.pendingTakeAll(); nil != entry; entry = next {
		next = entry.pendingNext
		entry.pendingNext = nil

		cache.ageUnlinkWhileLocked(entry)
		cache.forwardUnlinkWhileLocked(entry)
		cache.reverseUnlinkWhileLocked(entry)
		cache.disassociateWhileLocked(entry)

		cache.entryPut(entry)
		freed++
	}

	cache.pendingCount.Add(-int64(freed))

	return
}
