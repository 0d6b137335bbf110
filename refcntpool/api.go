// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package refcntpool provides interfaces and objects to implement reference
// counted items.
//
// Items come in two flavors. Pooled items are acquired from a RefCntItemPool
// and are returned to it when their reference count drops to zero (upon the
// final call to Release()). Destroyable items are initialized directly with
// InitDestroyable() and invoke a callback when their reference count drops to
// zero; they are never recycled, so a stale pointer to one can always be asked
// for a new hold with TryHold() and will reliably be refused.
//
// TryHold() is the speculative "weak to strong" upgrade: it only succeeds while
// at least one other hold is outstanding. A holder of a plain pointer (a weak
// reference) to a destroyable item can therefore safely attempt to use it
// without keeping it alive.
//
// Pooled items must not be TryHold()'d through a stale pointer since the
// memory may have been recycled for a different item.
//
package refcntpool

import (
	"sync"
	"sync/atomic"
)

// A object implementing the RefCntItemer interface is acquired from a
// RefCntItemPooler. Hold() increments the reference count and Release()
// decrements it. Upon final release it is returned to the pool from whence it
// came.
//
// An object returned by Get() starts with one hold. When all the holds are
// released the object must not be accessed.
//
// Init() is invoked by the pool before the item is returned via Get(). It
// should only be called by the RefCntItemPooler.
//
type RefCntItemer interface {
	Init(RefCntItemPooler, interface{}) // invoked by RefCntItemPooler.Get() before the item is returned
	Hold()                              // get an additional hold on the item
	TryHold() (ok bool)                 // get an additional hold unless the item is already released
	Release()                           // release a hold on the item
}

// The RefCntItemPooler interface defines Get() and put() methods for objects
// that support the RefCntItemer interface.
//
// While Get() is called to get a new object, put() should only be called via
// the object's Release() method and not called directly.
//
type RefCntItemPooler interface {
	// Return an object of the type held by the pool which also supports
	// the RefCntItemer methods, or nil if the pool is exhausted.
	Get() interface{}

	// Put an object of the type held by the pool back in the pool.
	put(interface{})
}

// RefCntItem is an object that implements the RefCntItemer interface. It can
// be embedded in other objects to allow them to be reference counted.
//
type RefCntItem struct {
	pool    RefCntItemPooler
	cntItem interface{} // the actual item this is embedded in
	onZero  func()      // destroy callback (destroyable items only)
	refCnt  atomic.Int64
	_       sync.Mutex // insure a RefCntItem is not copied
}

// RefCntItemPool is an object that implements a pool of reference counted items.
// The items must support the RefCntItemer interface. Items are "allocated" by
// calling Get() on the pool.
//
// If a limit is set via SetLimit(), at most that many items may be outstanding
// (acquired and not yet finally released) at any time; Get() returns nil beyond
// that.
//
type RefCntItemPool struct {
	itemPool    sync.Pool
	outstanding atomic.Int64
	limit       atomic.Int64       // maximum outstanding items; 0 means unlimited
	New         func() interface{} // create a new item (of the correct type)
}

// Get an item from the pool, or nil if the pool limit has been reached.
//
// The caller must use a type assertion to convert it to the correct type.
//
func (refCntPool *RefCntItemPool) Get() (item interface{}) {
	return refCntPool.get()
}

// SetLimit changes the maximum number of outstanding items. Items already
// outstanding beyond a lowered limit are not affected.
//
func (refCntPool *RefCntItemPool) SetLimit(limit int64) {
	refCntPool.limit.Store(limit)
}

// Outstanding returns the number of items acquired from the pool and not yet
// finally released.
//
func (refCntPool *RefCntItemPool) Outstanding() int64 {
	return refCntPool.outstanding.Load()
}

// Init is called by the pool when the item is handed out.
//
func (item *RefCntItem) Init(pool RefCntItemPooler, cntItem interface{}) {
	item.init(pool, cntItem, nil)
}

// InitDestroyable initializes an item that is not pooled. It starts with one
// hold and onZero (if not nil) is called after the final Release().
//
func (item *RefCntItem) InitDestroyable(onZero func()) {
	item.init(nil, nil, onZero)
}

func (item *RefCntItem) Hold() {
	item.hold()
}

// TryHold gets an additional hold on the item if it is still held by someone
// else and returns true, otherwise it returns false and the item is untouched.
//
func (item *RefCntItem) TryHold() (ok bool) {
	return item.tryHold()
}

func (item *RefCntItem) Release() {
	item.release()
}

// AssertIsHeld panics if the item is not currently held.
//
func (item *RefCntItem) AssertIsHeld() {
	item.assertIsHeld()
}

// RefCnt returns the current reference count (for debugging and tests only).
//
func (item *RefCntItem) RefCnt() int64 {
	return item.refCnt.Load()
}
