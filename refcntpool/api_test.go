// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package refcntpool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testItemStruct struct {
	RefCntItem
}

func testPoolMake() *RefCntItemPool {
	return &RefCntItemPool{
		New: func() interface{} {
			return &testItemStruct{}
		},
	}
}

// basic tests of RefCntItem/RefCntItemPool
func TestRefCntItem(t *testing.T) {
	assert := assert.New(t)

	refCntPool := testPoolMake()

	item0 := refCntPool.Get().(*testItemStruct)
	item1 := refCntPool.Get().(RefCntItemer)
	item2 := refCntPool.Get().(RefCntItemer)
	assert.Equal(int64(3), refCntPool.Outstanding())

	// hold and release don't panic
	item0.Hold()
	item0.Hold()
	assert.Equal(int64(3), item0.RefCnt())
	item0.Release()
	item0.Release()
	item0.AssertIsHeld()

	// items must be different
	assert.False(item1 == item2)
	assert.False(RefCntItemer(item0) == item1)

	// final releases
	item0.Release()
	item1.Release()
	item2.Release()
	assert.Equal(int64(0), refCntPool.Outstanding())

	// misuse panics
	assert.Panics(func() { item0.Release() })
	assert.Panics(func() { item0.AssertIsHeld() })

	freshItem := &testItemStruct{}
	assert.Panics(func() { freshItem.Hold() })
}

func TestPoolLimit(t *testing.T) {
	assert := assert.New(t)

	refCntPool := testPoolMake()
	refCntPool.SetLimit(2)

	item0 := refCntPool.Get()
	item1 := refCntPool.Get()
	assert.NotNil(item0)
	assert.NotNil(item1)
	assert.Nil(refCntPool.Get())
	assert.Equal(int64(2), refCntPool.Outstanding())

	item0.(RefCntItemer).Release()
	item2 := refCntPool.Get()
	assert.NotNil(item2)
	assert.Nil(refCntPool.Get())

	refCntPool.SetLimit(0)
	item3 := refCntPool.Get()
	assert.NotNil(item3)

	item1.(RefCntItemer).Release()
	item2.(RefCntItemer).Release()
	item3.(RefCntItemer).Release()
	assert.Equal(int64(0), refCntPool.Outstanding())
}

func TestDestroyable(t *testing.T) {
	var (
		destroyed int
		item      testItemStruct
	)

	assert := assert.New(t)

	item.InitDestroyable(func() { destroyed++ })
	assert.Equal(int64(1), item.RefCnt())

	assert.True(item.TryHold())
	item.Release()
	assert.Equal(0, destroyed)

	item.Release()
	assert.Equal(1, destroyed)

	// once released, a weak pointer can never be upgraded again
	assert.False(item.TryHold())
	assert.False(item.TryHold())
	assert.Equal(int64(0), item.RefCnt())
	assert.Equal(1, destroyed)
}

func TestTryHoldRace(t *testing.T) {
	var (
		destroyed atomic.Int32
		item      testItemStruct
		upgrades  atomic.Int32
		wg        sync.WaitGroup
	)

	item.InitDestroyable(func() { destroyed.Add(1) })

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if item.TryHold() {
					upgrades.Add(1)
					item.Release()
				}
			}
		}()
	}

	item.Release()
	wg.Wait()

	assert.Equal(t, int32(1), destroyed.Load())
	assert.Equal(t, int64(0), item.RefCnt())
	assert.False(t, item.TryHold())
}
