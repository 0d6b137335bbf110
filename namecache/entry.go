// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"sync"
	"sync/atomic"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/refcntpool"
)

type entryFlags uint32

const (
	entryWhiteout entryFlags = 1 << iota
)

// list membership, guarded by the structural lock
type linkFlags uint32

const (
	onForward linkFlags = 1 << iota
	onReverse
	onAge
	onChildren
	onAliases
)

type linkStruct struct {
	next *entryStruct
	prev *entryStruct
}

type entryStruct struct {
	refcntpool.RefCntItem
	sync.Mutex // guards target, flags and the live to invalidated transition

	parent   Object // nil once invalidated
	target   Object // nil for a negative entry
	parentID uint64
	targetID uint64
	mountID  uint64 // of parent
	name     string
	hash     uint64 // name hash mixed with parentID
	flags    entryFlags
	lastHit  atomic.Int64 // UnixNano of the last hit (or Enter)

	links     linkFlags
	hashLink  linkStruct
	revLink   linkStruct
	ageLink   linkStruct
	childLink linkStruct // siblings sharing parent
	aliasLink linkStruct // siblings sharing target

	pendingNext *entryStruct
}

func (cache *Cache) entryGet() (entry *entryStruct) {
	item := cache.entryPool.Get()
	if nil == item {
		return nil
	}

	entry = item.(*entryStruct)

	return
}

// entryPut returns an entry that is on no list to the pool.
func (cache *Cache) entryPut(entry *entryStruct) {
	if 0 != entry.links {
		err := blunder.NewError(blunder.CorruptCacheError, "entry links 0x%x", entry.links)
		logger.PanicfWithError(err, "namecache entry %p for %q freed while still linked", entry, entry.name)
	}

	entry.parent = nil
	entry.target = nil
	entry.parentID = 0
	entry.targetID = 0
	entry.mountID = 0
	entry.name = ""
	entry.hash = 0
	entry.flags = 0
	entry.lastHit.Store(0)
	entry.hashLink = linkStruct{}
	entry.revLink = linkStruct{}
	entry.ageLink = linkStruct{}
	entry.childLink = linkStruct{}
	entry.aliasLink = linkStruct{}
	entry.pendingNext = nil

	entry.Release()
}

// pendingPush hands an invalidated entry to the reclaimer. Safe to call
// concurrently from any number of invalidators.
func (cache *Cache) pendingPush(entry *entryStruct) {
	for {
		head := cache.pending.Load()
		entry.pendingNext = head
		if cache.pending.CompareAndSwap(head, entry) {
			break
		}
	}

	cache.pendingCount.Add(1)
}

// pendingTakeAll empties the pending stack and returns its entries oldest
// first.
func (cache *Cache) pendingTakeAll() (list *entryStruct) {
	head := cache.pending.Swap(nil)

	for nil != head {
		next := head.pendingNext
		head.pendingNext = list
		list = head
		head = next
	}

	return
}
