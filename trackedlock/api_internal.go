// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package trackedlock

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/utils"
)

type globalsStruct struct {
	mapMutex               sync.Mutex             // protects mutexMap
	mutexMap               map[*MutexTrack]*Mutex // the locks being watched
	lockHoldTimeLimit      atomic.Int64           // locks held longer then this get logged (time.Duration)
	lockCheckPeriod        atomic.Int64           // check locks once each period (time.Duration)
	lockWatcherLocksLogged int                    // max overlimit locks logged by lockWatcher()
	lockCheckTicker        *time.Ticker           // ticker for lock check time
	stopChan               chan struct{}          // time to shutdown and go home
	doneChan               chan struct{}          // shutdown complete
	longHoldsReported      atomic.Uint64          // count of over-limit holds reported
}

var globals globalsStruct

const stackTraceBufSize = 4040

// MutexTrack holds the tracking state of a Mutex. Fields are written by the
// lock holder and read by the lock watcher, hence the atomics.
//
type MutexTrack struct {
	isWatched  atomic.Bool            // true if lock is in globals.mutexMap
	lockCnt    atomic.Int32           // 0 if unlocked, -1 locked
	lockTime   atomic.Int64           // UnixNano of last lock operation
	lockerGoId atomic.Uint64          // goroutine ID of the last locker
	lockStack  atomic.Pointer[[]byte] // stack trace when object was last locked
}

func lockHoldTimeLimit() time.Duration {
	return time.Duration(globals.lockHoldTimeLimit.Load())
}

func lockCheckPeriod() time.Duration {
	return time.Duration(globals.lockCheckPeriod.Load())
}

func captureStack() []byte {
	stackTrace := make([]byte, stackTraceBufSize)
	return stackTrace[:runtime.Stack(stackTrace, false)]
}

func (mt *MutexTrack) lockTrack(wrappedLock *Mutex) {
	// if lock tracking is disabled, just record the time
	if 0 == lockHoldTimeLimit() {
		mt.lockTime.Store(time.Now().UnixNano())
		mt.lockCnt.Store(-1)
		return
	}

	lockStack := captureStack()
	mt.lockStack.Store(&lockStack)
	mt.lockerGoId.Store(utils.StackTraceToGoId(lockStack))
	mt.lockTime.Store(time.Now().UnixNano())
	mt.lockCnt.Store(-1)

	// add to the list of watched mutexes if anybody is watching
	if !mt.isWatched.Load() && (0 != lockCheckPeriod()) {
		globals.mapMutex.Lock()
		if nil != globals.mutexMap {
			globals.mutexMap[mt] = wrappedLock
			mt.isWatched.Store(true)
		}
		globals.mapMutex.Unlock()
	}
}

func (mt *MutexTrack) unlockTrack(wrappedLock *Mutex) {
	limit := lockHoldTimeLimit()

	if 0 != limit {
		now := time.Now()
		heldFor := now.Sub(time.Unix(0, mt.lockTime.Load()))

		if heldFor >= limit {
			unlockStr := string(captureStack())

			// lockTime is recorded even if tracking was disabled at Lock() so lockStack may be absent
			lockStr := "goroutine 9999 [unknown]\nlocked before lock tracking enabled\n"
			if lockStack := mt.lockStack.Load(); nil != lockStack {
				lockStr = string(*lockStack)
			}

			globals.longHoldsReported.Add(1)
			logger.Warnf("Unlock(): %T at %p locked for %f sec; stack at call to Lock():\n%s stack at Unlock():\n%s",
				wrappedLock, wrappedLock, heldFor.Seconds(), lockStr, unlockStr)
		}
	}

	mt.lockCnt.Store(0)
	mt.lockStack.Store(nil)
}

// longLockHolder describes a lock that has been held too long
type longLockHolder struct {
	lockPtr      *Mutex
	lockTime     time.Time
	lockerGoId   uint64
	lockStackStr string
}

// checkLocks logs up to globals.lockWatcherLocksLogged locks held longer than
// the limit, longest held first, and forgets locks idle for a check period.
func checkLocks(now time.Time) {
	var (
		longLockHolders []*longLockHolder
	)

	limit := lockHoldTimeLimit()
	period := lockCheckPeriod()

	globals.mapMutex.Lock()
	for mt, lockPtr := range globals.mutexMap {
		lockTime := time.Unix(0, mt.lockTime.Load())

		if 0 == mt.lockCnt.Load() {
			if now.Sub(lockTime) >= period {
				mt.isWatched.Store(false)
				delete(globals.mutexMap, mt)
			}
			continue
		}

		if now.Sub(lockTime) <= limit {
			continue
		}

		longHolder := &longLockHolder{
			lockPtr:    lockPtr,
			lockTime:   lockTime,
			lockerGoId: mt.lockerGoId.Load(),
		}
		if lockStack := mt.lockStack.Load(); nil != lockStack {
			longHolder.lockStackStr = string(*lockStack)
		}
		longLockHolders = append(longLockHolders, longHolder)
	}
	globals.mapMutex.Unlock()

	if 0 == len(longLockHolders) {
		return
	}

	sort.Slice(longLockHolders, func(i, j int) bool {
		return longLockHolders[i].lockTime.Before(longLockHolders[j].lockTime)
	})
	if len(longLockHolders) > globals.lockWatcherLocksLogged {
		longLockHolders = longLockHolders[:globals.lockWatcherLocksLogged]
	}

	for i, longHolder := range longLockHolders {
		globals.longHoldsReported.Add(1)
		logger.Warnf("trackedlock watcher: %T at %p locked by goroutine %d for %f sec rank %d; stack at call to Lock():\n%s",
			longHolder.lockPtr, longHolder.lockPtr, longHolder.lockerGoId,
			now.Sub(longHolder.lockTime).Seconds(), i, longHolder.lockStackStr)
	}
}

// lockWatcher periodically checks for locks that have been held too long.
func lockWatcher(lockCheckChan <-chan time.Time, stopChan <-chan struct{}, doneChan chan<- struct{}) {
	for shutdown := false; !shutdown; {
		select {
		case <-stopChan:
			shutdown = true
			logger.Infof("trackedlock lock watcher shutting down")
			// fall through and perform one last check
		case <-lockCheckChan:
		}

		checkLocks(time.Now())
	}

	doneChan <- struct{}{}
}
