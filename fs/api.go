// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package fs resolves paths against an inode volume, consulting a name cache
// for each component and keeping it coherent as the name space changes.
//
// Paths are '/' separated and always relative to the volume's root; empty
// components are ignored. Every inode returned has been held on behalf of
// the caller, who must Release() it.
//
package fs

import (
	"github.com/NVIDIA/namecache/inode"
	"github.com/NVIDIA/namecache/namecache"
)

// MountHandle is the interface to a mounted volume.
type MountHandle interface {
	VolumeName() (volumeName string)
	MountID() (mountID uint64)
	Cache() (cache *namecache.Cache)

	// ResolvePath returns the inode named by path. For namecache.CreateOp a
	// missing last component is not an error: nil is returned.
	ResolvePath(path string, op namecache.NameOp) (target *inode.InMemoryInodeStruct, err error)

	Create(path string) (file *inode.InMemoryInodeStruct, err error)
	Mkdir(path string) (dir *inode.InMemoryInodeStruct, err error)
	Unlink(path string) (err error)
	Rmdir(path string) (err error)
	Rename(srcPath string, dstPath string) (err error)
	ReadDir(path string) (dirEntries []inode.DirEntry, err error)

	// PathOf returns an absolute path naming target.
	PathOf(target *inode.InMemoryInodeStruct) (path string, err error)

	// Unmount purges every cache entry of this mount.
	Unmount()
}

// NewMount binds volumeHandle to cache. If cache is nil, namecache.Default()
// is used.
//
func NewMount(volumeHandle inode.VolumeHandle, cache *namecache.Cache) (mountHandle MountHandle, err error) {
	mS, err := newMount(volumeHandle, cache)
	if nil == err {
		mountHandle = mS
	}
	return
}

// FetchMountHandle returns the mount created when volumeName was served.
func FetchMountHandle(volumeName string) (mountHandle MountHandle, err error) {
	return fetchMountHandle(volumeName)
}
