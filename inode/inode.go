// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package inode

import (
	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/logger"
)

func fetchNextInodeNumber() InodeNumber {
	return InodeNumber(globals.lastInodeNumber.Add(1))
}

// makeInMemoryInode returns a linked inode holding only the volume's reference.
func (vS *volumeStruct) makeInMemoryInode(inodeType InodeType, parent *InMemoryInodeStruct, basename string) (inode *InMemoryInodeStruct) {
	inode = &InMemoryInodeStruct{
		InodeNumber: fetchNextInodeNumber(),
		InodeType:   inodeType,
		volume:      vS,
		linked:      true,
		parent:      parent,
		basename:    basename,
	}
	if DirType == inodeType {
		inode.dirEntries = newDirEntryTree()
	}

	inode.InitDestroyable(func() {
		inode.destroyed.Store(true)
		logger.Tracef("inode: volume %s inode %d destroyed", vS.volumeName, inode.InodeNumber)
	})

	return
}

func validateBasename(basename string) (err error) {
	if ("" == basename) || ("." == basename) || (".." == basename) {
		err = blunder.NewError(blunder.InvalidArgError, "basename \"%s\" is not allowed", basename)
		return
	}
	if MaxBasenameLength < len(basename) {
		err = blunder.NewError(blunder.NameTooLongError, "basename of length %d exceeds %d", len(basename), MaxBasenameLength)
		return
	}
	for i := 0; i < len(basename); i++ {
		if ('/' == basename[i]) || (0 == basename[i]) {
			err = blunder.NewError(blunder.InvalidArgError, "basename \"%s\" contains '/' or NUL", basename)
			return
		}
	}
	return
}

// validateDirWhileLocked checks dir is a linked directory of vS.
func (vS *volumeStruct) validateDirWhileLocked(dir *InMemoryInodeStruct) (err error) {
	if nil == dir {
		err = blunder.NewError(blunder.InvalidArgError, "nil directory")
		return
	}
	if vS != dir.volume {
		err = blunder.NewError(blunder.CrossVolumeError, "inode %d is not in volume %s", dir.InodeNumber, vS.volumeName)
		return
	}
	if !dir.IsDir() {
		err = blunder.NewError(blunder.NotDirError, "inode %d is not a directory", dir.InodeNumber)
		return
	}
	if !dir.linked {
		err = blunder.NewError(blunder.NotFoundError, "directory inode %d has been removed", dir.InodeNumber)
		return
	}
	return
}

// unlinkWhileLocked drops inode's name. The caller must Release() the volume's
// reference once the lock is dropped.
func (vS *volumeStruct) unlinkWhileLocked(inode *InMemoryInodeStruct) {
	inode.linked = false
	inode.parent = nil
	delete(vS.inodeMap, inode.InodeNumber)
}

// isAncestorWhileLocked reports whether ancestor is dir or one of its parents.
func (vS *volumeStruct) isAncestorWhileLocked(ancestor *InMemoryInodeStruct, dir *InMemoryInodeStruct) bool {
	for {
		if ancestor == dir {
			return true
		}
		if (vS.root == dir) || (nil == dir.parent) {
			return false
		}
		dir = dir.parent
	}
}
