// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

func (cache *Cache) enter(parent Object, target Object, cn *ComponentName) {
	if (0 == cn.Flags&MakeEntry) || (len(cn.Name) > cache.maxNameLength) {
		cache.statsInc(statEnterDeclined)
		return
	}

	if uint64(cache.liveCount.Load()) > cache.maxEntries.Load() {
		cache.reclaimPass()
	}

	entry := cache.entryGet()
	if nil == entry {
		cache.statsInc(statEnterDeclined)
		return
	}

	// not yet published so no lock is needed
	entry.parent = parent
	entry.parentID = parent.ObjectID()
	entry.mountID = parent.MountID()
	entry.name = cn.Name
	entry.hash = nameHash(cn.Name, entry.parentID)
	entry.target = target
	if nil == target {
		if 0 != cn.Flags&Whiteout {
			entry.flags = entryWhiteout
		}
	} else {
		entry.targetID = target.ObjectID()
	}
	now := cache.nowTick()
	entry.lastHit.Store(now)

	cache.structLock.Lock()

	replaced := false

	old := cache.findWhileLocked(entry.parentID, entry.name, entry.hash)
	if nil != old {
		old.Lock()
		if sameTarget(old, entry) {
			old.flags = entry.flags
			old.lastHit.Store(now)
			old.Unlock()
			cache.structLock.Unlock()
			cache.entryPut(entry)
			cache.statsInc(statPass2)
			return
		}
		cache.invalidateWhileLocked(old)
		old.Unlock()
		replaced = true
	}

	cache.publishWhileLocked(entry)

	cache.structLock.Unlock()

	if replaced {
		cache.statsInc(statPass2)
		cache.statsInc(statTwoPasses)
	}
	cache.statsInc(statEnters)
}

// sameTarget reports whether a new entry can be folded into old in place:
// both negative, or both naming the same target.
func sameTarget(old *entryStruct, entry *entryStruct) bool {
	if nil == old.target {
		return nil == entry.target
	}
	return (nil != entry.target) && (old.targetID == entry.targetID)
}

func (cache *Cache) publishWhileLocked(entry *entryStruct) {
	cache.forwardLinkWhileLocked(entry)
	cache.ageAppendWhileLocked(entry)
	cache.childLinkWhileLocked(entry)

	if nil != entry.target {
		cache.aliasLinkWhileLocked(entry)
		if (entry.targetID != entry.parentID) && ("." != entry.name) && (".." != entry.name) {
			cache.reverseLinkWhileLocked(entry)
		}
	}

	cache.liveCount.Add(1)
}
