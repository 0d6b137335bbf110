// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"sync"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/inode"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/transitions"
)

type globalsStruct struct {
	sync.Mutex
	mountMap map[string]*mountStruct // key == volumeName
}

var globals globalsStruct

func init() {
	transitions.Register("fs", &globals)
}

func fetchMountHandle(volumeName string) (mountHandle MountHandle, err error) {
	globals.Lock()
	mS, ok := globals.mountMap[volumeName]
	globals.Unlock()

	if !ok {
		err = blunder.NewError(blunder.NotFoundError, "fs.FetchMountHandle(\"%s\") unable to find mount", volumeName)
		return
	}

	mountHandle = mS
	return
}

func (dummy *globalsStruct) Up(confMap conf.ConfMap) (err error) {
	globals.Lock()
	globals.mountMap = make(map[string]*mountStruct)
	globals.Unlock()

	return nil
}

// ServeVolume mounts the volume served by package inode on the default cache.
func (dummy *globalsStruct) ServeVolume(confMap conf.ConfMap, volumeName string) (err error) {
	var (
		mS           *mountStruct
		volumeHandle inode.VolumeHandle
	)

	volumeHandle, err = inode.FetchVolumeHandle(volumeName)
	if nil != err {
		return
	}

	mS, err = newMount(volumeHandle, nil)
	if nil != err {
		return
	}

	globals.Lock()
	globals.mountMap[volumeName] = mS
	globals.Unlock()

	logger.Infof("fs.ServeVolume(): volume %s mounted as MountID %d", volumeName, mS.MountID())

	return
}

func (dummy *globalsStruct) UnserveVolume(confMap conf.ConfMap, volumeName string) (err error) {
	globals.Lock()
	mS, ok := globals.mountMap[volumeName]
	delete(globals.mountMap, volumeName)
	globals.Unlock()

	if ok {
		mS.Unmount()
	}

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
	globals.mountMap = nil
	globals.Unlock()

	return nil
}
