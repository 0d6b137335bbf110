// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package trackedlock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/transitions"
)

func testSetup(t *testing.T, confStrings ...string) (confMap conf.ConfMap) {
	confMap, err := conf.MakeConfMapFromStrings(append([]string{
		"Logging.LogFilePath=/dev/null",
		"Logging.LogToConsole=false",
	}, confStrings...))
	require.NoError(t, err)

	err = transitions.Up(confMap)
	require.NoError(t, err)

	return
}

func testTeardown(t *testing.T, confMap conf.ConfMap) {
	err := transitions.Down(confMap)
	require.NoError(t, err)
}

func TestUntracked(t *testing.T) {
	var (
		m Mutex
	)

	assert := assert.New(t)

	// usable before Up()
	m.Lock()
	assert.True(m.IsLocked())
	m.Unlock()
	assert.False(m.IsLocked())

	confMap := testSetup(t)
	defer testTeardown(t, confMap)

	assert.Equal(time.Duration(0), lockHoldTimeLimit())

	reportedBefore := globals.longHoldsReported.Load()

	m.Lock()
	m.tracker.lockTime.Store(time.Now().Add(-time.Hour).UnixNano())
	m.Unlock()

	assert.Equal(reportedBefore, globals.longHoldsReported.Load())

	assert.True(m.TryLock())
	assert.False(m.TryLock())
	m.Unlock()
}

func TestLongHoldAtUnlock(t *testing.T) {
	var (
		m Mutex
	)

	assert := assert.New(t)

	confMap := testSetup(t, "TrackedLock.LockHoldTimeLimit=2s", "TrackedLock.LockCheckPeriod=0s")
	defer testTeardown(t, confMap)

	assert.Equal(2*time.Second, lockHoldTimeLimit())
	assert.Equal(time.Duration(0), lockCheckPeriod())

	reportedBefore := globals.longHoldsReported.Load()

	m.Lock()
	assert.NotNil(m.tracker.lockStack.Load())
	assert.NotEqual(uint64(0), m.tracker.lockerGoId.Load())
	m.Unlock()
	assert.Equal(reportedBefore, globals.longHoldsReported.Load())

	m.Lock()
	m.tracker.lockTime.Store(time.Now().Add(-3 * time.Second).UnixNano())
	m.Unlock()
	assert.Equal(reportedBefore+1, globals.longHoldsReported.Load())
	assert.Nil(m.tracker.lockStack.Load())
}

func TestWatcher(t *testing.T) {
	var (
		mutexes [4]Mutex
	)

	assert := assert.New(t)

	confMap := testSetup(t, "TrackedLock.LockHoldTimeLimit=1s", "TrackedLock.LockCheckPeriod=1h")
	defer testTeardown(t, confMap)

	for i := range mutexes {
		mutexes[i].Lock()
	}

	globals.mapMutex.Lock()
	assert.Equal(len(mutexes), len(globals.mutexMap))
	globals.mapMutex.Unlock()

	// Two of them have been held "too long"
	mutexes[0].tracker.lockTime.Store(time.Now().Add(-5 * time.Second).UnixNano())
	mutexes[1].tracker.lockTime.Store(time.Now().Add(-10 * time.Second).UnixNano())

	reportedBefore := globals.longHoldsReported.Load()
	checkLocks(time.Now())
	assert.Equal(reportedBefore+2, globals.longHoldsReported.Load())

	for i := range mutexes {
		mutexes[i].tracker.lockTime.Store(time.Now().UnixNano())
		mutexes[i].Unlock()
	}

	// idle locks are dropped once unlocked for a check period
	checkLocks(time.Now().Add(2 * time.Hour))

	globals.mapMutex.Lock()
	assert.Equal(0, len(globals.mutexMap))
	globals.mapMutex.Unlock()
	assert.False(mutexes[0].tracker.isWatched.Load())

	// turning tracking off via SignaledFinish stops the watcher
	err := confMap.UpdateFromString("TrackedLock.LockCheckPeriod=0s")
	require.NoError(t, err)
	err = transitions.Signaled(confMap)
	require.NoError(t, err)
	assert.Nil(globals.lockCheckTicker)
	assert.Equal(time.Second, lockHoldTimeLimit())
}

func TestContention(t *testing.T) {
	var (
		counter int
		m       Mutex
		wg      sync.WaitGroup
	)

	confMap := testSetup(t, "TrackedLock.LockHoldTimeLimit=1s", "TrackedLock.LockCheckPeriod=1s")
	defer testTeardown(t, confMap)

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8000, counter)
}
