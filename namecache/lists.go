// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

// Age list: entries are appended at the tail when published and when
// rotated by the reclaimer; eviction starts at the head.

func (cache *Cache) ageAppendWhileLocked(entry *entryStruct) {
	entry.ageLink.next = nil
	entry.ageLink.prev = cache.ageTail

	if nil == cache.ageTail {
		cache.ageHead = entry
	} else {
		cache.ageTail.ageLink.next = entry
	}
	cache.ageTail = entry
	entry.links |= onAge
}

func (cache *Cache) ageUnlinkWhileLocked(entry *entryStruct) {
	if 0 == entry.links&onAge {
		return
	}

	if entry == cache.ageHead {
		cache.ageHead = entry.ageLink.next
	} else {
		entry.ageLink.prev.ageLink.next = entry.ageLink.next
	}
	if entry == cache.ageTail {
		cache.ageTail = entry.ageLink.prev
	} else {
		entry.ageLink.next.ageLink.prev = entry.ageLink.prev
	}

	entry.ageLink = linkStruct{}
	entry.links &^= onAge
}

// ageRotateWhileLocked moves entry to the tail of the age list.
func (cache *Cache) ageRotateWhileLocked(entry *entryStruct) {
	if entry == cache.ageTail {
		return
	}

	cache.ageUnlinkWhileLocked(entry)
	cache.ageAppendWhileLocked(entry)
}

// Sibling lists hang off the children and aliases maps; an empty list has
// no map entry.

func (cache *Cache) childLinkWhileLocked(entry *entryStruct) {
	head := cache.children[entry.parentID]

	entry.childLink.prev = nil
	entry.childLink.next = head
	if nil != head {
		head.childLink.prev = entry
	}
	cache.children[entry.parentID] = entry
	entry.links |= onChildren
}

func (cache *Cache) childUnlinkWhileLocked(entry *entryStruct) {
	if 0 == entry.links&onChildren {
		return
	}

	if nil == entry.childLink.prev {
		if nil == entry.childLink.next {
			delete(cache.children, entry.parentID)
		} else {
			cache.children[entry.parentID] = entry.childLink.next
		}
	} else {
		entry.childLink.prev.childLink.next = entry.childLink.next
	}
	if nil != entry.childLink.next {
		entry.childLink.next.childLink.prev = entry.childLink.prev
	}

	entry.childLink = linkStruct{}
	entry.links &^= onChildren
}

func (cache *Cache) aliasLinkWhileLocked(entry *entryStruct) {
	head := cache.aliases[entry.targetID]

	entry.aliasLink.prev = nil
	entry.aliasLink.next = head
	if nil != head {
		head.aliasLink.prev = entry
	}
	cache.aliases[entry.targetID] = entry
	entry.links |= onAliases
}

func (cache *Cache) aliasUnlinkWhileLocked(entry *entryStruct) {
	if 0 == entry.links&onAliases {
		return
	}

	if nil == entry.aliasLink.prev {
		if nil == entry.aliasLink.next {
			delete(cache.aliases, entry.targetID)
		} else {
			cache.aliases[entry.targetID] = entry.aliasLink.next
		}
	} else {
		entry.aliasLink.prev.aliasLink.next = entry.aliasLink.next
	}
	if nil != entry.aliasLink.next {
		entry.aliasLink.next.aliasLink.prev = entry.aliasLink.prev
	}

	entry.aliasLink = linkStruct{}
	entry.links &^= onAliases
}

// disassociateWhileLocked removes entry from both sibling lists.
func (cache *Cache) disassociateWhileLocked(entry *entryStruct) {
	cache.childUnlinkWhileLocked(entry)
	cache.aliasUnlinkWhileLocked(entry)
}
