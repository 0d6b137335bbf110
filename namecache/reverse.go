// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package namecache

// PathBuf accumulates a path from its last component back to its first.
// Each successful ReverseLookup() prepends "/" and a name.
type PathBuf struct {
	buf   []byte
	start int // path occupies buf[start:]
}

// NewPathBuf returns an empty PathBuf able to hold size bytes.
func NewPathBuf(size int) *PathBuf {
	return &PathBuf{
		buf:   make([]byte, size),
		start: size,
	}
}

// Prepend adds "/" and name to the front of the path. It returns false, leaving
// the path unchanged, if there is not enough room.
func (pathBuf *PathBuf) Prepend(name string) (ok bool) {
	needed := len(name) + 1
	if needed > pathBuf.start {
		return false
	}

	pathBuf.start -= needed
	pathBuf.buf[pathBuf.start] = '/'
	copy(pathBuf.buf[pathBuf.start+1:], name)

	return true
}

// String returns the path assembled so far, or "/" if it is empty.
func (pathBuf *PathBuf) String() string {
	if pathBuf.start == len(pathBuf.buf) {
		return "/"
	}
	return string(pathBuf.buf[pathBuf.start:])
}

// Len returns the number of bytes assembled so far.
func (pathBuf *PathBuf) Len() int {
	return len(pathBuf.buf) - pathBuf.start
}

// Reset empties the PathBuf.
func (pathBuf *PathBuf) Reset() {
	pathBuf.start = len(pathBuf.buf)
}

func (cache *Cache) reverseLookup(target Object, pathBuf *PathBuf) (parent Object, status ReverseStatus) {
	var (
		name    string
		witness *entryStruct
	)

	targetID := target.ObjectID()

	cache.structLock.Lock()

	for entry := cache.reverse[reverseHash(targetID)&cache.tableMask]; nil != entry; entry = entry.revLink.next {
		if (entry.targetID == targetID) && (entry.parentID != targetID) && (nil != entry.parent) {
			witness = entry
			break
		}
	}

	if nil == witness {
		cache.structLock.Unlock()
		cache.statsInc(statReverseMisses)
		status = ReverseNoWitness
		return
	}

	parent = witness.parent
	name = witness.name

	cache.structLock.Unlock()

	if !parent.TryHold() {
		cache.statsInc(statReverseMisses)
		parent = nil
		status = ReverseBusy
		return
	}

	if (nil != pathBuf) && !pathBuf.Prepend(name) {
		parent.Release()
		cache.statsInc(statReverseMisses)
		parent = nil
		status = ReverseNoSpace
		return
	}

	cache.statsInc(statReverseHits)
	status = ReverseFound

	return
}
