// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

import (
	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/logger"
)

// invalidateWhileLocked detaches a live entry from both hash tables and both
// sibling lists and hands it to the reclaimer, which removes it from the age
// list and frees it. Both the structural lock and the entry lock must be held.
func (cache *Cache) invalidateWhileLocked(entry *entryStruct) {
	if nil == entry.parent {
		err := blunder.NewError(blunder.CorruptCacheError, "entry %p already invalidated", entry)
		logger.PanicfWithError(err, "namecache %s: invalidating dead entry %p for %q",
			cache.statsGroupName, entry, entry.name)
	}

	cache.forwardUnlinkWhileLocked(entry)
	cache.reverseUnlinkWhileLocked(entry)
	cache.disassociateWhileLocked(entry)

	entry.parent = nil
	entry.target = nil

	cache.liveCount.Add(-1)
	cache.pendingPush(entry)
	cache.statsInc(statInvalidations)
}

func (cache *Cache) purgeRelation(object Object, selector PurgeSelector) {
	var (
		entry *entryStruct
		next  *entryStruct
	)

	objectID := object.ObjectID()

	cache.structLock.Lock()

	if 0 != selector&PurgeParents {
		for entry = cache.aliases[objectID]; nil != entry; entry = next {
			next = entry.aliasLink.next
			entry.Lock()
			cache.invalidateWhileLocked(entry)
			entry.Unlock()
		}
	}

	if 0 != selector&PurgeChildren {
		for entry = cache.children[objectID]; nil != entry; entry = next {
			next = entry.childLink.next
			entry.Lock()
			cache.invalidateWhileLocked(entry)
			entry.Unlock()
		}
	}

	cache.structLock.Unlock()
}

func (cache *Cache) purgeName(parent Object, name string) {
	if len(name) > cache.maxNameLength {
		return
	}

	parentID := parent.ObjectID()
	hash := nameHash(name, parentID)

	cache.structLock.Lock()

	entry := cache.findWhileLocked(parentID, name, hash)
	if nil != entry {
		entry.Lock()
		cache.invalidateWhileLocked(entry)
		entry.Unlock()
	}

	cache.structLock.Unlock()
}

func (cache *Cache) purgeNegatives(parent Object) {
	var (
		next *entryStruct
	)

	cache.structLock.Lock()

	for entry := cache.children[parent.ObjectID()]; nil != entry; entry = next {
		next = entry.childLink.next
		if nil == entry.target {
			entry.Lock()
			cache.invalidateWhileLocked(entry)
			entry.Unlock()
		}
	}

	cache.structLock.Unlock()
}

func (cache *Cache) purgeMount(mountID uint64) {
	purged := 0

	ctx := logger.TraceEnter("mountID:", mountID)
	defer func() { ctx.TraceExit("purged:", purged) }()

	cache.structLock.Lock()

	for entry := cache.ageHead; nil != entry; entry = entry.ageLink.next {
		if (nil != entry.parent) && (entry.mountID == mountID) {
			entry.Lock()
			cache.invalidateWhileLocked(entry)
			entry.Unlock()
			purged++
		}
	}

	cache.structLock.Unlock()

	cache.reclaimPass()
}
