// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

func (cache *Cache) lookup(parent Object, name string, op NameOp, flags ComponentFlags, raw bool) (result LookupResult) {
	if len(name) > cache.maxNameLength {
		cache.statsInc(statLongNames)
		return
	}

	parentID := parent.ObjectID()
	hash := nameHash(name, parentID)

	cache.structLock.Lock()

	entry := cache.findWhileLocked(parentID, name, hash)
	if nil == entry {
		cache.structLock.Unlock()
		cache.statsInc(statMisses)
		return
	}

	// entry cannot be invalidated (much less freed) once locked
	entry.Lock()

	if !raw && (0 == flags&MakeEntry) {
		cache.invalidateWhileLocked(entry)
		entry.Unlock()
		cache.structLock.Unlock()
		cache.statsInc(statBadHits)
		return
	}

	if nil == entry.target {
		if !raw && (CreateOp == op) && (0 != flags&IsLastComponent) {
			// the name is about to be created; don't trust the negative entry
			cache.invalidateWhileLocked(entry)
			entry.Unlock()
			cache.structLock.Unlock()
			cache.statsInc(statBadHits)
			return
		}

		cache.structLock.Unlock()
		entry.lastHit.Store(cache.nowTick())
		result.Kind = Negative
		result.Whiteout = (0 != entry.flags&entryWhiteout)
		entry.Unlock()
		cache.statsInc(statNegHits)
		return
	}

	cache.structLock.Unlock()
	entry.lastHit.Store(cache.nowTick())
	target := entry.target
	entry.Unlock()

	if !target.TryHold() {
		cache.statsInc(statFalseHits)
		return
	}

	cache.statsInc(statGoodHits)
	result.Kind = Positive
	result.Target = target

	return
}
