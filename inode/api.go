// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package inode provides an in-memory inode layer: per-volume tables of
// directory and file inodes, with directories kept as name ordered B-trees.
//
// Every linked inode carries a reference held by its volume. Callers that are
// handed an inode (by Lookup, CreateFile, Mkdir, ParentOf, etc.) receive an
// additional reference they must Release(). Once an inode's last link is
// removed the volume drops its reference and, when the final holder releases,
// the inode is destroyed: TryHold() fails from then on.
//
package inode

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/NVIDIA/namecache/refcntpool"
)

type InodeNumber uint64
type InodeType uint16

const (
	DirType  InodeType = unix.DT_DIR
	FileType InodeType = unix.DT_REG
)

// MaxBasenameLength is the longest name a directory entry may have.
const MaxBasenameLength = 1024

// DirEntry is returned by ReadDir().
type DirEntry struct {
	InodeNumber
	Basename string
	Type     InodeType
}

// InMemoryInodeStruct is a directory or file inode. It satisfies
// namecache.Object so it may be used directly as a cache parent or target.
//
type InMemoryInodeStruct struct {
	refcntpool.RefCntItem
	InodeNumber
	InodeType
	volume     *volumeStruct
	linked     bool                 // guarded by volume lock
	parent     *InMemoryInodeStruct // directory holding the (single) link; root points to itself
	basename   string               // name of that link
	dirEntries *dirEntryTree        // DirType only
	destroyed  atomic.Bool
}

// VolumeHandle is the interface to a volume's inodes.
//
// None of the methods accept "." or ".." as a name to create or remove.
// Lookup() resolves both.
//
type VolumeHandle interface {
	VolumeName() (volumeName string)
	MountID() (mountID uint64)
	RootDir() (root *InMemoryInodeStruct)
	Lookup(dir *InMemoryInodeStruct, basename string) (target *InMemoryInodeStruct, err error)
	CreateFile(dir *InMemoryInodeStruct, basename string) (file *InMemoryInodeStruct, err error)
	Mkdir(dir *InMemoryInodeStruct, basename string) (newDir *InMemoryInodeStruct, err error)
	Unlink(dir *InMemoryInodeStruct, basename string) (err error)
	Rmdir(dir *InMemoryInodeStruct, basename string) (err error)
	Rename(srcDir *InMemoryInodeStruct, srcBasename string, dstDir *InMemoryInodeStruct, dstBasename string) (renamed *InMemoryInodeStruct, replaced *InMemoryInodeStruct, err error)
	ReadDir(dir *InMemoryInodeStruct) (dirEntries []DirEntry, err error)
	ParentOf(inode *InMemoryInodeStruct) (parent *InMemoryInodeStruct, basename string, err error)
	InodeCount() (count uint64)
}

// NewVolume creates an unserved volume containing only its root directory.
func NewVolume(volumeName string, mountID uint64) (volumeHandle VolumeHandle) {
	return newVolume(volumeName, mountID)
}

// FetchVolumeHandle returns the handle of a volume served by ServeVolume().
func FetchVolumeHandle(volumeName string) (volumeHandle VolumeHandle, err error) {
	return fetchVolumeHandle(volumeName)
}

// ObjectID returns the InodeNumber. InodeNumbers are unique across volumes.
func (inode *InMemoryInodeStruct) ObjectID() uint64 {
	return uint64(inode.InodeNumber)
}

func (inode *InMemoryInodeStruct) MountID() uint64 {
	return inode.volume.mountID
}

func (inode *InMemoryInodeStruct) IsDir() bool {
	return DirType == inode.InodeType
}

// Destroyed reports whether the inode has been unlinked and released.
func (inode *InMemoryInodeStruct) Destroyed() bool {
	return inode.destroyed.Load()
}
