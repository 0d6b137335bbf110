// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package trackedlock

import (
	"time"

	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/transitions"
)

func parseConfMap(confMap conf.ConfMap) (lockHoldTimeLimit time.Duration, lockCheckPeriod time.Duration) {
	var (
		err error
	)

	lockHoldTimeLimit, err = confMap.FetchOptionValueDuration("TrackedLock", "LockHoldTimeLimit")
	if nil != err {
		logger.Infof("config variable 'TrackedLock.LockHoldTimeLimit' defaulting to '0s': %v", err)
		lockHoldTimeLimit = time.Duration(0)
	}

	// lockHoldTimeLimit must be >= 1 sec or 0
	if (lockHoldTimeLimit < time.Second) && (0 != lockHoldTimeLimit) {
		logger.Warnf("config variable 'TrackedLock.LockHoldTimeLimit' value less then 1 sec; defaulting to '40s'")
		lockHoldTimeLimit = 40 * time.Second
	}

	lockCheckPeriod, err = confMap.FetchOptionValueDuration("TrackedLock", "LockCheckPeriod")
	if nil != err {
		logger.Infof("config variable 'TrackedLock.LockCheckPeriod' defaulting to '0s': %v", err)
		lockCheckPeriod = time.Duration(0)
	}

	// lockCheckPeriod must be >= 1 sec or 0
	if (lockCheckPeriod < time.Second) && (0 != lockCheckPeriod) {
		logger.Warnf("config variable 'TrackedLock.LockCheckPeriod' value less then 1 sec; defaulting to '20s'")
		lockCheckPeriod = 20 * time.Second
	}

	return
}

// Register trackedlock package with transitions so that transitions can call Up()/Down()/etc.
// at the appropriate times and config changes.
//
func init() {
	globals.lockWatcherLocksLogged = 16

	transitions.Register("trackedlock", &globals)
}

func startLockWatcher() {
	if (0 == lockCheckPeriod()) || (0 == lockHoldTimeLimit()) {
		return
	}

	globals.stopChan = make(chan struct{})
	globals.doneChan = make(chan struct{})
	globals.lockCheckTicker = time.NewTicker(lockCheckPeriod())

	go lockWatcher(globals.lockCheckTicker.C, globals.stopChan, globals.doneChan)
}

func stopLockWatcher() {
	if nil == globals.lockCheckTicker {
		return
	}

	globals.lockCheckTicker.Stop()
	globals.lockCheckTicker = nil
	globals.stopChan <- struct{}{}
	<-globals.doneChan
}

// Up initializes the package. Locks can be used before it is called but tracking
// will not start until the first Lock() call after the package is initialized.
//
func (dummy *globalsStruct) Up(confMap conf.ConfMap) (err error) {
	newLockHoldTimeLimit, newLockCheckPeriod := parseConfMap(confMap)

	logger.Infof("trackedlock.Up(): LockHoldTimeLimit %v  LockCheckPeriod %v", newLockHoldTimeLimit, newLockCheckPeriod)

	globals.mapMutex.Lock()
	globals.mutexMap = make(map[*MutexTrack]*Mutex, 128)
	globals.mapMutex.Unlock()

	globals.lockHoldTimeLimit.Store(int64(newLockHoldTimeLimit))
	globals.lockCheckPeriod.Store(int64(newLockCheckPeriod))

	startLockWatcher()

	return
}

func (dummy *globalsStruct) Down(confMap conf.ConfMap) (err error) {
	logger.Infof("trackedlock.Down() called")

	stopLockWatcher()

	globals.lockHoldTimeLimit.Store(0)
	globals.lockCheckPeriod.Store(0)

	globals.mapMutex.Lock()
	for mt := range globals.mutexMap {
		mt.isWatched.Store(false)
	}
	globals.mutexMap = nil
	globals.mapMutex.Unlock()

	return
}

func (dummy *globalsStruct) ServeVolume(confMap conf.ConfMap, volumeName string) (err error) {
	return nil
}

func (dummy *globalsStruct) UnserveVolume(confMap conf.ConfMap, volumeName string) (err error) {
	return nil
}

// SignaledStart does nothing (lock tracking is not changed until SignaledFinish())
func (dummy *globalsStruct) SignaledStart(confMap conf.ConfMap) (err error) {
	return
}

// SignaledFinish updates lock tracking state based on confMap contents
func (dummy *globalsStruct) SignaledFinish(confMap conf.ConfMap) (err error) {
	oldTimeLimit := lockHoldTimeLimit()
	oldCheckPeriod := lockCheckPeriod()

	newTimeLimit, newCheckPeriod := parseConfMap(confMap)

	if (newTimeLimit == oldTimeLimit) && (newCheckPeriod == oldCheckPeriod) {
		return
	}

	logger.Infof("trackedlock lock hold time limit/lock check period changing from %v/%v to %v/%v",
		oldTimeLimit, oldCheckPeriod, newTimeLimit, newCheckPeriod)

	stopLockWatcher()

	globals.lockHoldTimeLimit.Store(int64(newTimeLimit))
	globals.lockCheckPeriod.Store(int64(newCheckPeriod))

	// if we're going to stop watching, clean out the map
	if (0 == newCheckPeriod) || (0 == newTimeLimit) {
		globals.mapMutex.Lock()
		for mt := range globals.mutexMap {
			mt.isWatched.Store(false)
			delete(globals.mutexMap, mt)
		}
		globals.mapMutex.Unlock()
	}

	startLockWatcher()

	return
}
