// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package refcntpool

import (
	"fmt"
)

func (item *RefCntItem) init(pool RefCntItemPooler, cntItem interface{}, onZero func()) {
	newCnt := item.refCnt.Add(1)
	if newCnt != 1 {
		panic(fmt.Sprintf("RefCntItem.Init(): item %T at %p in pool %T at %p was not free: newCnt %d",
			item, item, item.pool, item.pool, newCnt))
	}
	item.pool = pool
	item.cntItem = cntItem
	item.onZero = onZero
}

func (item *RefCntItem) hold() {
	newCnt := item.refCnt.Add(1)
	if newCnt < 2 {
		panic(fmt.Sprintf("RefCntItem.Hold(): item %T at %p was not held when called: newCnt %d",
			item, item, newCnt))
	}
}

func (item *RefCntItem) tryHold() bool {
	for {
		oldCnt := item.refCnt.Load()
		if oldCnt <= 0 {
			return false
		}
		if item.refCnt.CompareAndSwap(oldCnt, oldCnt+1) {
			return true
		}
	}
}

func (item *RefCntItem) release() {
	// Even if two goroutines do this concurrently only one will see 0
	newCnt := item.refCnt.Add(-1)

	if newCnt > 0 {
		return
	}
	if newCnt < 0 {
		panic(fmt.Sprintf("RefCntItem.Release(): item %T at %p was not held when called: newCnt %d",
			item, item, newCnt))
	}

	if nil != item.onZero {
		item.onZero()
		return
	}
	if nil != item.pool {
		item.pool.put(item.cntItem)
	}
}

func (item *RefCntItem) assertIsHeld() {
	refCnt := item.refCnt.Load()
	if refCnt < 1 {
		panic(fmt.Sprintf("(*RefCntItem).AssertIsHeld(): refCnt %d < 1 for RefCntItem at %p",
			refCnt, item))
	}
}

func (refCntPool *RefCntItemPool) get() (item interface{}) {
	limit := refCntPool.limit.Load()
	newOutstanding := refCntPool.outstanding.Add(1)
	if (0 != limit) && (newOutstanding > limit) {
		refCntPool.outstanding.Add(-1)
		return nil
	}

	item = refCntPool.itemPool.Get()
	if nil == item {
		item = refCntPool.New()
	}

	refCntItem := item.(RefCntItemer)
	refCntItem.Init(refCntPool, item)

	return
}

func (refCntPool *RefCntItemPool) put(item interface{}) {
	refCntPool.outstanding.Add(-1)
	refCntPool.itemPool.Put(item)
}
