// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"strings"

	"github.com/samber/lo"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/inode"
	"github.com/NVIDIA/namecache/namecache"
)

func splitPath(path string) (pathSplit []string) {
	return lo.Compact(strings.Split(path, "/"))
}

// lookupComponent returns basename in dirInode, held, consulting the cache
// first and filling it on a miss. "." and ".." bypass the cache. The last
// component of a delete or rename is never cached and a cached entry for it
// is invalidated.
//
func (mS *mountStruct) lookupComponent(dirInode *inode.InMemoryInodeStruct, basename string, op namecache.NameOp, isLast bool) (dirEntryInode *inode.InMemoryInodeStruct, err error) {
	var (
		ok bool
	)

	if ("." == basename) || (".." == basename) {
		dirEntryInode, err = mS.volumeHandle.Lookup(dirInode, basename)
		return
	}

	componentName := &namecache.ComponentName{
		Name: basename,
		Op:   op,
	}
	if isLast {
		componentName.Flags = namecache.IsLastComponent
	}
	// the name is about to go away; drop rather than use or make an entry
	if !isLast || ((namecache.DeleteOp != op) && (namecache.RenameOp != op)) {
		componentName.Flags |= namecache.MakeEntry
	}

	result := mS.cache.Lookup(dirInode, componentName)

	switch result.Kind {
	case namecache.Positive:
		dirEntryInode, ok = result.Target.(*inode.InMemoryInodeStruct)
		if !ok {
			result.Target.Release()
			err = blunder.NewError(blunder.NotAnObjectError, "cached target of %s is not an inode", basename)
		}
		return
	case namecache.Negative:
		err = blunder.NewError(blunder.NotFoundError, "%s not found in directory inode %d", basename, dirInode.InodeNumber)
		return
	}

	// Enter() must not race a name space change that would leave it stale
	mS.namespaceLock.RLock()
	dirEntryInode, err = mS.volumeHandle.Lookup(dirInode, basename)
	if 0 != componentName.Flags&namecache.MakeEntry {
		if nil == err {
			mS.cache.Enter(dirInode, dirEntryInode, componentName)
		} else if blunder.Is(err, blunder.NotFoundError) {
			mS.cache.Enter(dirInode, nil, componentName)
		}
	}
	mS.namespaceLock.RUnlock()

	return
}

// resolvePath walks path from the root directory. op applies to the last
// component only.
//
// On success dirEntryInode is returned held and, unless path names the root,
// so is dirInode (the directory containing dirEntryBasename). If only the last
// component is missing, err is a NotFoundError and dirInode is still returned
// held. On any other error nothing is held.
//
func (mS *mountStruct) resolvePath(path string, op namecache.NameOp) (dirInode *inode.InMemoryInodeStruct, dirEntryInode *inode.InMemoryInodeStruct, dirEntryBasename string, err error) {
	var (
		componentOp   namecache.NameOp
		isLast        bool
		lookupErr     error
		nextInode     *inode.InMemoryInodeStruct
		pathSplit     []string
		pathSplitPart string
		pathSplitIdx  int
	)

	pathSplit = splitPath(path)

	currentInode := mS.volumeHandle.RootDir()
	currentInode.Hold()

	if 0 == len(pathSplit) {
		dirEntryInode = currentInode
		return
	}

	for pathSplitIdx, pathSplitPart = range pathSplit {
		isLast = (len(pathSplit)-1 == pathSplitIdx)

		if !currentInode.IsDir() {
			currentInode.Release()
			err = blunder.NewError(blunder.NotDirError, "%s: parent of %s is not a directory", path, pathSplitPart)
			return
		}

		componentOp = namecache.LookupOp
		if isLast {
			componentOp = op
		}

		nextInode, lookupErr = mS.lookupComponent(currentInode, pathSplitPart, componentOp, isLast)

		if isLast {
			dirInode = currentInode
			dirEntryInode = nextInode
			dirEntryBasename = pathSplitPart
			err = lookupErr
			if (nil != err) && blunder.IsNot(err, blunder.NotFoundError) {
				dirInode.Release()
				dirInode = nil
			}
			return
		}

		currentInode.Release()

		if nil != lookupErr {
			err = lookupErr
			return
		}

		currentInode = nextInode
	}

	return
}

func (mS *mountStruct) ResolvePath(path string, op namecache.NameOp) (target *inode.InMemoryInodeStruct, err error) {
	dirInode, dirEntryInode, _, err := mS.resolvePath(path, op)
	if nil != dirInode {
		dirInode.Release()
	}

	if (nil != err) && (namecache.CreateOp == op) && (nil != dirInode) {
		err = nil
	}

	target = dirEntryInode

	return
}
