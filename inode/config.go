// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package inode

import (
	"sync"
	"sync/atomic"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/transitions"
)

type globalsStruct struct {
	sync.Mutex
	lastInodeNumber atomic.Uint64
	volumeMap       map[string]*volumeStruct // key == volumeStruct.volumeName
}

var globals globalsStruct

func init() {
	transitions.Register("inode", &globals)
}

func fetchVolumeHandle(volumeName string) (volumeHandle VolumeHandle, err error) {
	globals.Lock()
	vS, ok := globals.volumeMap[volumeName]
	globals.Unlock()

	if !ok {
		err = blunder.NewError(blunder.NotFoundError, "inode.FetchVolumeHandle(\"%s\") unable to find volume", volumeName)
		return
	}

	volumeHandle = vS
	return
}

func (dummy *globalsStruct) Up(confMap conf.ConfMap) (err error) {
	globals.Lock()
	globals.volumeMap = make(map[string]*volumeStruct)
	globals.Unlock()

	return nil
}

func (dummy *globalsStruct) ServeVolume(confMap conf.ConfMap, volumeName string) (err error) {
	var (
		mountID uint64
	)

	mountID, err = confMap.FetchOptionValueUint64("Volume:"+volumeName, "MountID")
	if nil != err {
		return
	}

	globals.Lock()
	defer globals.Unlock()

	if _, ok := globals.volumeMap[volumeName]; ok {
		err = blunder.NewError(blunder.FileExistsError, "inode.ServeVolume(): volume %s already served", volumeName)
		return
	}

	globals.volumeMap[volumeName] = newVolume(volumeName, mountID)

	logger.Infof("inode.ServeVolume(): volume %s MountID %d", volumeName, mountID)

	return
}

func (dummy *globalsStruct) UnserveVolume(confMap conf.ConfMap, volumeName string) (err error) {
	globals.Lock()
	delete(globals.volumeMap, volumeName)
	globals.Unlock()

	logger.Infof("inode.UnserveVolume(): volume %s", volumeName)

	return nil
}

func (dummy *globalsStruct) SignaledStart(confMap conf.ConfMap) (err error) {
	return nil
}

func (dummy *globalsStruct) SignaledFinish(confMap conf.ConfMap) (err error) {
	return nil
}

func (dummy *globalsStruct) Down(confMap conf.ConfMap) (err error) {
	globals.Lock()
	if 0 != len(globals.volumeMap) {
		logger.Warnf("inode.Down(): %d volume(s) still served", len(globals.volumeMap))
	}
	globals.volumeMap = nil
	globals.Unlock()

	return nil
}
