// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"math/rand/v2"
	"sync"

	"golang.org/x/sys/cpu"

	"github.com/NVIDIA/namecache/bucketstats"
)

type statID int

const (
	statGoodHits statID = iota
	statNegHits
	statBadHits
	statFalseHits
	statMisses
	statLongNames
	statPass2
	statTwoPasses
	statEnters
	statEnterDeclined
	statEvictions
	statInvalidations
	statReclaimed
	statReverseHits
	statReverseMisses
	statCount // must be last
)

// statsShardStruct is one shard of counters. Shards are padded so that
// goroutines updating different shards do not share cache lines.
type statsShardStruct struct {
	_ cpu.CacheLinePad
	sync.Mutex
	counts [statCount]uint64
}

// totalsStruct accumulates folded shard counters along with reclaimer
// statistics. It is registered with bucketstats.
type totalsStruct struct {
	GoodHits        bucketstats.Total
	NegHits         bucketstats.Total
	BadHits         bucketstats.Total
	FalseHits       bucketstats.Total
	Misses          bucketstats.Total
	LongNames       bucketstats.Total
	Pass2           bucketstats.Total
	TwoPasses       bucketstats.Total
	Enters          bucketstats.Total
	EnterDeclined   bucketstats.Total
	Evictions       bucketstats.Total
	Invalidations   bucketstats.Total
	Reclaimed       bucketstats.Total
	ReverseHits     bucketstats.Total
	ReverseMisses   bucketstats.Total
	ReclaimPasses   bucketstats.Total
	Resizes         bucketstats.Total
	ReclaimPassUsec bucketstats.BucketLog2Round
	ReclaimEvicted  bucketstats.BucketLog2Round
	ReclaimFreed    bucketstats.BucketLog2Round
	EvictionRotated bucketstats.Average // hot entries rotated per evicting pass
	ResizeRehashed  bucketstats.Average // live entries rehashed per resize
}

func (totals *totalsStruct) counters() [statCount]*bucketstats.Total {
	return [statCount]*bucketstats.Total{
		statGoodHits:      &totals.GoodHits,
		statNegHits:       &totals.NegHits,
		statBadHits:       &totals.BadHits,
		statFalseHits:     &totals.FalseHits,
		statMisses:        &totals.Misses,
		statLongNames:     &totals.LongNames,
		statPass2:         &totals.Pass2,
		statTwoPasses:     &totals.TwoPasses,
		statEnters:        &totals.Enters,
		statEnterDeclined: &totals.EnterDeclined,
		statEvictions:     &totals.Evictions,
		statInvalidations: &totals.Invalidations,
		statReclaimed:     &totals.Reclaimed,
		statReverseHits:   &totals.ReverseHits,
		statReverseMisses: &totals.ReverseMisses,
	}
}

func (cache *Cache) statsAdd(id statID, value uint64) {
	if 0 == value {
		return
	}

	shard := &cache.shards[rand.IntN(len(cache.shards))]
	shard.Lock()
	shard.counts[id] += value
	shard.Unlock()
}

func (cache *Cache) statsInc(id statID) {
	cache.statsAdd(id, 1)
}

// foldShardsWhileLocked adds every shard into the totals and zeroes it.
// statsLock must be held; the shard locks are taken here unless the caller
// already holds them all.
func (cache *Cache) foldShardsWhileLocked(lockShards bool) {
	for i := range cache.shards {
		shard := &cache.shards[i]
		if lockShards {
			shard.Lock()
		}
		for id, count := range shard.counts {
			if 0 != count {
				cache.counterTotals[id].Add(count)
				shard.counts[id] = 0
			}
		}
		if lockShards {
			shard.Unlock()
		}
	}
}

func (cache *Cache) foldStats() {
	cache.statsLock.Lock()
	cache.foldShardsWhileLocked(true)
	cache.statsLock.Unlock()
}

func (cache *Cache) stats() (stats Stats) {
	cache.foldStats()

	totals := cache.totals

	stats = Stats{
		GoodHits:         totals.GoodHits.TotalGet(),
		NegHits:          totals.NegHits.TotalGet(),
		BadHits:          totals.BadHits.TotalGet(),
		FalseHits:        totals.FalseHits.TotalGet(),
		Misses:           totals.Misses.TotalGet(),
		LongNames:        totals.LongNames.TotalGet(),
		Pass2:            totals.Pass2.TotalGet(),
		TwoPasses:        totals.TwoPasses.TotalGet(),
		Enters:           totals.Enters.TotalGet(),
		EnterDeclined:    totals.EnterDeclined.TotalGet(),
		Evictions:        totals.Evictions.TotalGet(),
		Invalidations:    totals.Invalidations.TotalGet(),
		Reclaimed:        totals.Reclaimed.TotalGet(),
		ReverseHits:      totals.ReverseHits.TotalGet(),
		ReverseMisses:    totals.ReverseMisses.TotalGet(),
		LiveEntries:      uint64(cache.liveCount.Load()),
		PendingEntries:   uint64(cache.pendingCount.Load()),
		AllocatedEntries: uint64(cache.entryPool.Outstanding()),
		MaxEntries:       cache.maxEntries.Load(),
		TableSize:        cache.tableSize.Load(),
	}

	return
}

func (cache *Cache) sprintStats() string {
	cache.foldStats()
	return bucketstats.SprintStats(bucketstats.StatFormatParsable1, "namecache", cache.statsGroupName)
}
