// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package inode

import (
	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/trackedlock"
)

type volumeStruct struct {
	trackedlock.Mutex
	volumeName string
	mountID    uint64
	root       *InMemoryInodeStruct
	inodeMap   map[InodeNumber]*InMemoryInodeStruct // linked inodes only
}

func newVolume(volumeName string, mountID uint64) (vS *volumeStruct) {
	vS = &volumeStruct{
		volumeName: volumeName,
		mountID:    mountID,
		inodeMap:   make(map[InodeNumber]*InMemoryInodeStruct),
	}

	vS.root = vS.makeInMemoryInode(DirType, nil, "")
	vS.root.parent = vS.root
	vS.inodeMap[vS.root.InodeNumber] = vS.root

	return
}

func (vS *volumeStruct) VolumeName() string {
	return vS.volumeName
}

func (vS *volumeStruct) MountID() uint64 {
	return vS.mountID
}

// RootDir returns the root directory. It is never removed, so no reference is
// taken on the caller's behalf.
func (vS *volumeStruct) RootDir() *InMemoryInodeStruct {
	return vS.root
}

func (vS *volumeStruct) InodeCount() (count uint64) {
	vS.Lock()
	count = uint64(len(vS.inodeMap))
	vS.Unlock()
	return
}

func (vS *volumeStruct) Lookup(dir *InMemoryInodeStruct, basename string) (target *InMemoryInodeStruct, err error) {
	var (
		ok bool
	)

	vS.Lock()
	defer vS.Unlock()

	err = vS.validateDirWhileLocked(dir)
	if nil != err {
		return
	}

	switch basename {
	case ".":
		target = dir
	case "..":
		target = dir.parent
	default:
		target, ok = dir.dirEntries.get(basename)
		if !ok {
			err = blunder.NewError(blunder.NotFoundError, "%s not found in directory inode %d", basename, dir.InodeNumber)
			return
		}
	}

	target.Hold()

	return
}

func (vS *volumeStruct) create(dir *InMemoryInodeStruct, basename string, inodeType InodeType) (inode *InMemoryInodeStruct, err error) {
	err = validateBasename(basename)
	if nil != err {
		return
	}

	vS.Lock()
	defer vS.Unlock()

	err = vS.validateDirWhileLocked(dir)
	if nil != err {
		return
	}

	if _, ok := dir.dirEntries.get(basename); ok {
		err = blunder.NewError(blunder.FileExistsError, "%s already exists in directory inode %d", basename, dir.InodeNumber)
		return
	}

	inode = vS.makeInMemoryInode(inodeType, dir, basename)
	_ = dir.dirEntries.put(basename, inode)
	vS.inodeMap[inode.InodeNumber] = inode

	inode.Hold()

	return
}

func (vS *volumeStruct) CreateFile(dir *InMemoryInodeStruct, basename string) (file *InMemoryInodeStruct, err error) {
	return vS.create(dir, basename, FileType)
}

func (vS *volumeStruct) Mkdir(dir *InMemoryInodeStruct, basename string) (newDir *InMemoryInodeStruct, err error) {
	return vS.create(dir, basename, DirType)
}

// remove unlinks basename from dir. wantDir selects Rmdir() vs Unlink() checks.
func (vS *volumeStruct) remove(dir *InMemoryInodeStruct, basename string, wantDir bool) (err error) {
	var (
		ok     bool
		target *InMemoryInodeStruct
	)

	err = validateBasename(basename)
	if nil != err {
		return
	}

	vS.Lock()

	err = vS.validateDirWhileLocked(dir)
	if nil != err {
		vS.Unlock()
		return
	}

	target, ok = dir.dirEntries.get(basename)
	if !ok {
		vS.Unlock()
		err = blunder.NewError(blunder.NotFoundError, "%s not found in directory inode %d", basename, dir.InodeNumber)
		return
	}

	if wantDir {
		if !target.IsDir() {
			vS.Unlock()
			err = blunder.NewError(blunder.NotDirError, "%s is not a directory", basename)
			return
		}
		if 0 != target.dirEntries.len() {
			vS.Unlock()
			err = blunder.NewError(blunder.NotEmptyError, "directory %s is not empty", basename)
			return
		}
	} else if target.IsDir() {
		vS.Unlock()
		err = blunder.NewError(blunder.IsDirError, "%s is a directory", basename)
		return
	}

	_, _ = dir.dirEntries.delete(basename)
	vS.unlinkWhileLocked(target)

	vS.Unlock()

	target.Release()

	return
}

func (vS *volumeStruct) Unlink(dir *InMemoryInodeStruct, basename string) (err error) {
	return vS.remove(dir, basename, false)
}

func (vS *volumeStruct) Rmdir(dir *InMemoryInodeStruct, basename string) (err error) {
	return vS.remove(dir, basename, true)
}

// Rename moves srcBasename in srcDir to dstBasename in dstDir, replacing any
// compatible inode already there. Both renamed and (if non-nil) replaced are
// returned held.
//
func (vS *volumeStruct) Rename(srcDir *InMemoryInodeStruct, srcBasename string, dstDir *InMemoryInodeStruct, dstBasename string) (renamed *InMemoryInodeStruct, replaced *InMemoryInodeStruct, err error) {
	var (
		ok bool
	)

	err = validateBasename(srcBasename)
	if nil != err {
		return
	}
	err = validateBasename(dstBasename)
	if nil != err {
		return
	}

	vS.Lock()

	err = vS.validateDirWhileLocked(srcDir)
	if nil == err {
		err = vS.validateDirWhileLocked(dstDir)
	}
	if nil != err {
		vS.Unlock()
		return
	}

	renamed, ok = srcDir.dirEntries.get(srcBasename)
	if !ok {
		vS.Unlock()
		renamed = nil
		err = blunder.NewError(blunder.NotFoundError, "%s not found in directory inode %d", srcBasename, srcDir.InodeNumber)
		return
	}

	if (srcDir == dstDir) && (srcBasename == dstBasename) {
		renamed.Hold()
		vS.Unlock()
		return
	}

	if renamed.IsDir() && vS.isAncestorWhileLocked(renamed, dstDir) {
		vS.Unlock()
		renamed = nil
		err = blunder.NewError(blunder.RenameIntoSelfError, "cannot move directory %s beneath itself", srcBasename)
		return
	}

	replaced, ok = dstDir.dirEntries.get(dstBasename)
	if ok {
		switch {
		case replaced.IsDir() && !renamed.IsDir():
			err = blunder.NewError(blunder.IsDirError, "%s is a directory", dstBasename)
		case !replaced.IsDir() && renamed.IsDir():
			err = blunder.NewError(blunder.NotDirError, "%s is not a directory", dstBasename)
		case replaced.IsDir() && (0 != replaced.dirEntries.len()):
			err = blunder.NewError(blunder.NotEmptyError, "directory %s is not empty", dstBasename)
		}
		if nil != err {
			vS.Unlock()
			renamed = nil
			replaced = nil
			return
		}
	}

	_, _ = srcDir.dirEntries.delete(srcBasename)
	_ = dstDir.dirEntries.put(dstBasename, renamed)
	renamed.parent = dstDir
	renamed.basename = dstBasename
	renamed.Hold()

	if nil != replaced {
		vS.unlinkWhileLocked(replaced)
		replaced.Hold()
	}

	vS.Unlock()

	if nil != replaced {
		replaced.Release() // the volume's reference
	}

	return
}

func (vS *volumeStruct) ReadDir(dir *InMemoryInodeStruct) (dirEntries []DirEntry, err error) {
	vS.Lock()
	defer vS.Unlock()

	err = vS.validateDirWhileLocked(dir)
	if nil != err {
		return
	}

	dirEntries = dir.dirEntries.readDir()

	return
}

// ParentOf returns the directory linking inode and the name it is linked as.
// For the root directory that is the root itself and "".
//
func (vS *volumeStruct) ParentOf(inode *InMemoryInodeStruct) (parent *InMemoryInodeStruct, basename string, err error) {
	vS.Lock()
	defer vS.Unlock()

	if vS != inode.volume {
		err = blunder.NewError(blunder.CrossVolumeError, "inode %d is not in volume %s", inode.InodeNumber, vS.volumeName)
		return
	}
	if !inode.linked {
		err = blunder.NewError(blunder.StaleError, "inode %d has been removed", inode.InodeNumber)
		return
	}

	parent = inode.parent
	basename = inode.basename
	parent.Hold()

	return
}
