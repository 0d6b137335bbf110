// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"sync"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/inode"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/namecache"
)

const (
	pathOfBufferSize = 4096
	maxPathDepth     = pathOfBufferSize / 2 // each component needs at least "/x"
)

type mountStruct struct {
	volumeHandle inode.VolumeHandle
	cache        *namecache.Cache

	// Held shared while filling the cache after a miss, exclusive while
	// changing the name space and purging what the change made stale.
	namespaceLock sync.RWMutex
}

func newMount(volumeHandle inode.VolumeHandle, cache *namecache.Cache) (mS *mountStruct, err error) {
	if nil == cache {
		cache = namecache.Default()
		if nil == cache {
			err = blunder.NewError(blunder.InvalidArgError, "fs: no cache supplied and namecache is not up")
			return
		}
	}

	mS = &mountStruct{
		volumeHandle: volumeHandle,
		cache:        cache,
	}

	return
}

func (mS *mountStruct) VolumeName() string {
	return mS.volumeHandle.VolumeName()
}

func (mS *mountStruct) MountID() uint64 {
	return mS.volumeHandle.MountID()
}

func (mS *mountStruct) Cache() *namecache.Cache {
	return mS.cache
}

func (mS *mountStruct) create(path string, isDir bool) (newInode *inode.InMemoryInodeStruct, err error) {
	dirInode, dirEntryInode, dirEntryBasename, err := mS.resolvePath(path, namecache.CreateOp)
	if nil != dirInode {
		defer dirInode.Release()
	}

	if nil != dirEntryInode {
		dirEntryInode.Release()
		err = blunder.NewError(blunder.FileExistsError, "%s already exists", path)
		return
	}
	if nil == dirInode {
		return
	}

	mS.namespaceLock.Lock()
	defer mS.namespaceLock.Unlock()

	if isDir {
		newInode, err = mS.volumeHandle.Mkdir(dirInode, dirEntryBasename)
	} else {
		newInode, err = mS.volumeHandle.CreateFile(dirInode, dirEntryBasename)
	}
	if nil != err {
		return
	}

	mS.cache.Enter(dirInode, newInode, &namecache.ComponentName{
		Name:  dirEntryBasename,
		Op:    namecache.CreateOp,
		Flags: namecache.MakeEntry | namecache.IsLastComponent,
	})

	return
}

func (mS *mountStruct) Create(path string) (file *inode.InMemoryInodeStruct, err error) {
	return mS.create(path, false)
}

func (mS *mountStruct) Mkdir(path string) (dir *inode.InMemoryInodeStruct, err error) {
	return mS.create(path, true)
}

func (mS *mountStruct) remove(path string, isDir bool) (err error) {
	dirInode, dirEntryInode, dirEntryBasename, err := mS.resolvePath(path, namecache.DeleteOp)
	if nil != dirInode {
		defer dirInode.Release()
	}
	if nil != err {
		return
	}
	defer dirEntryInode.Release()

	if nil == dirInode {
		err = blunder.NewError(blunder.InvalidArgError, "the root directory cannot be removed")
		return
	}

	mS.namespaceLock.Lock()
	defer mS.namespaceLock.Unlock()

	if isDir {
		err = mS.volumeHandle.Rmdir(dirInode, dirEntryBasename)
	} else {
		err = mS.volumeHandle.Unlink(dirInode, dirEntryBasename)
	}
	if nil != err {
		return
	}

	mS.cache.PurgeName(dirInode, dirEntryBasename)
	if isDir {
		mS.cache.Purge(dirEntryInode)
	}

	return
}

func (mS *mountStruct) Unlink(path string) (err error) {
	return mS.remove(path, false)
}

func (mS *mountStruct) Rmdir(path string) (err error) {
	return mS.remove(path, true)
}

func (mS *mountStruct) Rename(srcPath string, dstPath string) (err error) {
	var (
		renamed  *inode.InMemoryInodeStruct
		replaced *inode.InMemoryInodeStruct
	)

	srcDirInode, srcDirEntryInode, srcBasename, err := mS.resolvePath(srcPath, namecache.RenameOp)
	if nil != srcDirInode {
		defer srcDirInode.Release()
	}
	if nil != err {
		return
	}
	srcDirEntryInode.Release()
	if nil == srcDirInode {
		err = blunder.NewError(blunder.InvalidArgError, "the root directory cannot be renamed")
		return
	}

	dstDirInode, dstDirEntryInode, dstBasename, err := mS.resolvePath(dstPath, namecache.RenameOp)
	if nil != dstDirInode {
		defer dstDirInode.Release()
	}
	if nil != dstDirEntryInode {
		dstDirEntryInode.Release()
	}
	if nil == dstDirInode {
		if nil == err {
			err = blunder.NewError(blunder.InvalidArgError, "cannot rename over the root directory")
		}
		return
	}

	mS.namespaceLock.Lock()
	defer mS.namespaceLock.Unlock()

	renamed, replaced, err = mS.volumeHandle.Rename(srcDirInode, srcBasename, dstDirInode, dstBasename)
	if nil != err {
		return
	}

	mS.cache.PurgeName(srcDirInode, srcBasename)
	mS.cache.PurgeName(dstDirInode, dstBasename)

	if nil != replaced {
		mS.cache.Purge(replaced)
		replaced.Release()
	}
	renamed.Release()

	return
}

func (mS *mountStruct) ReadDir(path string) (dirEntries []inode.DirEntry, err error) {
	dirInode, err := mS.ResolvePath(path, namecache.LookupOp)
	if nil != err {
		return
	}
	defer dirInode.Release()

	dirEntries, err = mS.volumeHandle.ReadDir(dirInode)

	return
}

// PathOf walks from target up to the root, using the cache's reverse entries
// where present and asking the volume otherwise.
//
func (mS *mountStruct) PathOf(target *inode.InMemoryInodeStruct) (path string, err error) {
	var (
		basename     string
		depth        int
		ok           bool
		parent       *inode.InMemoryInodeStruct
		parentObject namecache.Object
		status       namecache.ReverseStatus
	)

	pathBuf := namecache.NewPathBuf(pathOfBufferSize)
	rootDir := mS.volumeHandle.RootDir()

	currentInode := target
	currentInode.Hold()

	for rootDir != currentInode {
		depth++
		if maxPathDepth < depth {
			currentInode.Release()
			err = blunder.NewError(blunder.NameTooLongError, "path of inode %d is deeper than %d", target.InodeNumber, maxPathDepth)
			return
		}

		parentObject, status = mS.cache.ReverseLookup(currentInode, pathBuf)

		switch status {
		case namecache.ReverseFound:
			parent, ok = parentObject.(*inode.InMemoryInodeStruct)
			if !ok {
				parentObject.Release()
				currentInode.Release()
				err = blunder.NewError(blunder.NotAnObjectError, "cached parent of inode %d is not an inode", target.InodeNumber)
				return
			}
		case namecache.ReverseNoSpace:
			currentInode.Release()
			err = blunder.NewError(blunder.NameTooLongError, "path of inode %d exceeds %d bytes", target.InodeNumber, pathOfBufferSize)
			return
		default:
			logger.Tracef("fs.PathOf(): inode %d reverse lookup %v, asking volume %s", currentInode.InodeNumber, status, mS.VolumeName())

			parent, basename, err = mS.volumeHandle.ParentOf(currentInode)
			if nil != err {
				currentInode.Release()
				return
			}
			if !pathBuf.Prepend(basename) {
				parent.Release()
				currentInode.Release()
				err = blunder.NewError(blunder.NameTooLongError, "path of inode %d exceeds %d bytes", target.InodeNumber, pathOfBufferSize)
				return
			}
		}

		currentInode.Release()
		currentInode = parent
	}

	currentInode.Release()

	path = pathBuf.String()

	return
}

func (mS *mountStruct) Unmount() {
	mS.cache.PurgeMount(mS.MountID())
}
