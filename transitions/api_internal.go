// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package transitions

import (
	"container/list"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/logger"
)

type loggerCallbacksInterfaceStruct struct {
}

var loggerCallbacksInterface loggerCallbacksInterfaceStruct

type registrationItemStruct struct {
	packageName string
	callbacks   Callbacks
}

type globalsStruct struct {
	sync.Mutex                                          // Protects insertions into registration{List|Set} and servedVolumeList
	registrationList *list.List
	registrationSet  map[string]*registrationItemStruct // Key: registrationItemStruct.packageName
	servedVolumeList []string                           // sorted
}

var globals globalsStruct

func init() {
	globals.Lock()
	globals.registrationList = list.New()
	globals.registrationSet = make(map[string]*registrationItemStruct)
	globals.Unlock()

	Register("logger", &loggerCallbacksInterface)
}

func register(packageName string, callbacks Callbacks) {
	var (
		alreadyRegisted  bool
		registrationItem *registrationItemStruct
	)

	globals.Lock()
	_, alreadyRegisted = globals.registrationSet[packageName]
	if alreadyRegisted {
		logger.Fatalf("transitions.Register(%s,) called twice", packageName)
	}
	registrationItem = &registrationItemStruct{packageName, callbacks}
	_ = globals.registrationList.PushBack(registrationItem)
	globals.registrationSet[packageName] = registrationItem
	globals.Unlock()
}

func fetchVolumeList(confMap conf.ConfMap) (volumeList []string, err error) {
	volumeList, err = confMap.FetchOptionValueStringSlice("FSGlobals", "VolumeList")
	if nil != err {
		// An absent VolumeList means no volumes are served
		volumeList = []string{}
		err = nil
		return
	}

	volumeList = lo.Uniq(volumeList)
	sort.Strings(volumeList)

	for _, volumeName := range volumeList {
		if "" == volumeName {
			err = fmt.Errorf("FSGlobals.VolumeList contains an empty volume name")
			return
		}
	}

	return
}

// forEachForward calls fn for each registered package from Front() to Back()
// stopping at the first failure.
func forEachForward(callbackName string, fn func(registrationItem *registrationItemStruct) error) (err error) {
	for registrationListElement := globals.registrationList.Front(); nil != registrationListElement; registrationListElement = registrationListElement.Next() {
		registrationItem := registrationListElement.Value.(*registrationItemStruct)
		logger.Tracef("transitions calling %s.%s", registrationItem.packageName, callbackName)
		err = fn(registrationItem)
		if nil != err {
			logger.Errorf("transitions call to %s.%s failed: %v", registrationItem.packageName, callbackName, err)
			err = fmt.Errorf("%s.%s failed: %v", registrationItem.packageName, callbackName, err)
			return
		}
	}
	return
}

// forEachReverse calls fn for each registered package from Back() to Front()
// stopping at the first failure.
func forEachReverse(callbackName string, fn func(registrationItem *registrationItemStruct) error) (err error) {
	for registrationListElement := globals.registrationList.Back(); nil != registrationListElement; registrationListElement = registrationListElement.Prev() {
		registrationItem := registrationListElement.Value.(*registrationItemStruct)
		logger.Tracef("transitions calling %s.%s", registrationItem.packageName, callbackName)
		err = fn(registrationItem)
		if nil != err {
			logger.Errorf("transitions call to %s.%s failed: %v", registrationItem.packageName, callbackName, err)
			err = fmt.Errorf("%s.%s failed: %v", registrationItem.packageName, callbackName, err)
			return
		}
	}
	return
}

func serveVolumes(confMap conf.ConfMap, volumeNames []string) (err error) {
	for _, volumeName := range volumeNames {
		err = forEachForward("ServeVolume(,"+volumeName+")", func(registrationItem *registrationItemStruct) error {
			return registrationItem.callbacks.ServeVolume(confMap, volumeName)
		})
		if nil != err {
			return
		}
		globals.Lock()
		globals.servedVolumeList = append(globals.servedVolumeList, volumeName)
		sort.Strings(globals.servedVolumeList)
		globals.Unlock()
	}
	return
}

func unserveVolumes(confMap conf.ConfMap, volumeNames []string) (err error) {
	for _, volumeName := range volumeNames {
		err = forEachReverse("UnserveVolume(,"+volumeName+")", func(registrationItem *registrationItemStruct) error {
			return registrationItem.callbacks.UnserveVolume(confMap, volumeName)
		})
		if nil != err {
			return
		}
		globals.Lock()
		globals.servedVolumeList = lo.Without(globals.servedVolumeList, volumeName)
		globals.Unlock()
	}
	return
}

func up(confMap conf.ConfMap) (err error) {
	var (
		registrationListPackageNameStringSlice []string
		volumeList                             []string
	)

	defer func() {
		if nil == err {
			logger.Infof("transitions.Up() returning successfully")
		} else {
			// On the relatively good likelihood that at least logger.Up() worked...
			logger.Errorf("transitions.Up() returning with failure: %v", err)
		}
	}()

	volumeList, err = fetchVolumeList(confMap)
	if nil != err {
		return
	}

	globals.Lock()
	globals.servedVolumeList = []string{}
	globals.Unlock()

	err = forEachForward("Up()", func(registrationItem *registrationItemStruct) error {
		return registrationItem.callbacks.Up(confMap)
	})
	if nil != err {
		return
	}

	registrationListPackageNameStringSlice = make([]string, 0, globals.registrationList.Len())
	for registrationListElement := globals.registrationList.Front(); nil != registrationListElement; registrationListElement = registrationListElement.Next() {
		registrationListPackageNameStringSlice = append(registrationListPackageNameStringSlice, registrationListElement.Value.(*registrationItemStruct).packageName)
	}
	logger.Infof("Transitions Package Registration List: %v", registrationListPackageNameStringSlice)

	err = serveVolumes(confMap, volumeList)
	if nil != err {
		return
	}

	err = forEachForward("SignaledFinish()", func(registrationItem *registrationItemStruct) error {
		return registrationItem.callbacks.SignaledFinish(confMap)
	})

	return
}

func signaled(confMap conf.ConfMap) (err error) {
	var (
		toStartServing []string
		toStopServing  []string
		volumeList     []string
	)

	logger.Infof("transitions.Signaled() called")
	defer func() {
		if nil == err {
			logger.Infof("transitions.Signaled() returning successfully")
		} else {
			logger.Errorf("transitions.Signaled() returning with failure: %v", err)
		}
	}()

	volumeList, err = fetchVolumeList(confMap)
	if nil != err {
		return
	}

	globals.Lock()
	toStopServing, toStartServing = lo.Difference(globals.servedVolumeList, volumeList)
	globals.Unlock()

	err = forEachReverse("SignaledStart()", func(registrationItem *registrationItemStruct) error {
		return registrationItem.callbacks.SignaledStart(confMap)
	})
	if nil != err {
		return
	}

	err = unserveVolumes(confMap, toStopServing)
	if nil != err {
		return
	}

	err = serveVolumes(confMap, toStartServing)
	if nil != err {
		return
	}

	err = forEachForward("SignaledFinish()", func(registrationItem *registrationItemStruct) error {
		return registrationItem.callbacks.SignaledFinish(confMap)
	})

	return
}

func down(confMap conf.ConfMap) (err error) {
	var (
		toStopServing []string
	)

	logger.Infof("transitions.Down() called")
	defer func() {
		if nil != err {
			// On the relatively good likelihood that the failure occurred before calling logger.Down()...
			logger.Errorf("transitions.Down() returning with failure: %v", err)
		}
	}()

	err = forEachReverse("SignaledStart()", func(registrationItem *registrationItemStruct) error {
		return registrationItem.callbacks.SignaledStart(confMap)
	})
	if nil != err {
		return
	}

	globals.Lock()
	toStopServing = make([]string, len(globals.servedVolumeList))
	copy(toStopServing, globals.servedVolumeList)
	globals.Unlock()

	err = unserveVolumes(confMap, toStopServing)
	if nil != err {
		return
	}

	err = forEachReverse("Down()", func(registrationItem *registrationItemStruct) error {
		return registrationItem.callbacks.Down(confMap)
	})

	return
}

func servedVolumes() (volumeNames []string) {
	globals.Lock()
	volumeNames = make([]string, len(globals.servedVolumeList))
	copy(volumeNames, globals.servedVolumeList)
	globals.Unlock()
	return
}

func (loggerCallbacksInterface *loggerCallbacksInterfaceStruct) Up(confMap conf.ConfMap) (err error) {
	return logger.Up(confMap)
}

func (loggerCallbacksInterface *loggerCallbacksInterfaceStruct) ServeVolume(confMap conf.ConfMap, volumeName string) (err error) {
	return nil
}

func (loggerCallbacksInterface *loggerCallbacksInterfaceStruct) UnserveVolume(confMap conf.ConfMap, volumeName string) (err error) {
	return nil
}

func (loggerCallbacksInterface *loggerCallbacksInterfaceStruct) SignaledStart(confMap conf.ConfMap) (err error) {
	return logger.SignaledStart(confMap)
}

func (loggerCallbacksInterface *loggerCallbacksInterfaceStruct) SignaledFinish(confMap conf.ConfMap) (err error) {
	return logger.SignaledFinish(confMap)
}

func (loggerCallbacksInterface *loggerCallbacksInterfaceStruct) Down(confMap conf.ConfMap) (err error) {
	return logger.Down(confMap)
}
