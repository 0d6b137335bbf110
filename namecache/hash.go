// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"github.com/creachadair/cityhash"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/logger"
)

const (
	minTableSize = uint64(64)
	maxTableSize = uint64(1) << 24

	idMixMultiplier = uint64(0x9e3779b97f4a7c15)
)

func tableSizeFor(maxEntries uint64) (tableSize uint64) {
	tableSize = minTableSize
	for (tableSize < maxEntries) && (tableSize < maxTableSize) {
		tableSize <<= 1
	}
	return
}

func mixID(id uint64) uint64 {
	h := id * idMixMultiplier
	return h ^ (h >> 29)
}

func nameHash(name string, parentID uint64) uint64 {
	return cityhash.Hash64([]byte(name)) ^ mixID(parentID)
}

func reverseHash(targetID uint64) uint64 {
	return mixID(targetID)
}

func (cache *Cache) forwardIndex(entry *entryStruct) uint64 {
	return entry.hash & cache.tableMask
}

func (cache *Cache) reverseIndex(entry *entryStruct) uint64 {
	return reverseHash(entry.targetID) & cache.tableMask
}

func (cache *Cache) findWhileLocked(parentID uint64, name string, hash uint64) *entryStruct {
	for entry := cache.forward[hash&cache.tableMask]; nil != entry; entry = entry.hashLink.next {
		if (entry.hash == hash) && (entry.parentID == parentID) && (len(entry.name) == len(name)) && (entry.name == name) {
			return entry
		}
	}

	return nil
}

func (cache *Cache) forwardLinkWhileLocked(entry *entryStruct) {
	idx := cache.forwardIndex(entry)

	entry.hashLink.prev = nil
	entry.hashLink.next = cache.forward[idx]
	if nil != entry.hashLink.next {
		entry.hashLink.next.hashLink.prev = entry
	}
	cache.forward[idx] = entry
	entry.links |= onForward
}

func (cache *Cache) forwardUnlinkWhileLocked(entry *entryStruct) {
	if 0 == entry.links&onForward {
		return
	}

	if nil == entry.hashLink.prev {
		idx := cache.forwardIndex(entry)
		if cache.forward[idx] != entry {
			cache.corruptBucket(entry, "forward", idx)
		}
		cache.forward[idx] = entry.hashLink.next
	} else {
		entry.hashLink.prev.hashLink.next = entry.hashLink.next
	}
	if nil != entry.hashLink.next {
		entry.hashLink.next.hashLink.prev = entry.hashLink.prev
	}

	entry.hashLink = linkStruct{}
	entry.links &^= onForward
}

func (cache *Cache) reverseLinkWhileLocked(entry *entryStruct) {
	idx := cache.reverseIndex(entry)

	entry.revLink.prev = nil
	entry.revLink.next = cache.reverse[idx]
	if nil != entry.revLink.next {
		entry.revLink.next.revLink.prev = entry
	}
	cache.reverse[idx] = entry
	entry.links |= onReverse
}

func (cache *Cache) reverseUnlinkWhileLocked(entry *entryStruct) {
	if 0 == entry.links&onReverse {
		return
	}

	if nil == entry.revLink.prev {
		idx := cache.reverseIndex(entry)
		if cache.reverse[idx] != entry {
			cache.corruptBucket(entry, "reverse", idx)
		}
		cache.reverse[idx] = entry.revLink.next
	} else {
		entry.revLink.prev.revLink.next = entry.revLink.next
	}
	if nil != entry.revLink.next {
		entry.revLink.next.revLink.prev = entry.revLink.prev
	}

	entry.revLink = linkStruct{}
	entry.links &^= onReverse
}

func (cache *Cache) corruptBucket(entry *entryStruct, table string, idx uint64) {
	err := blunder.NewError(blunder.CorruptCacheError, "%s bucket 0x%x does not start with entry %p", table, idx, entry)
	logger.PanicfWithError(err, "namecache %s: entry %p for %q is not in its %s bucket",
		cache.statsGroupName, entry, entry.name, table)
}
