// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package inode

import (
	"github.com/google/btree"
)

const dirEntryTreeDegree = 16

type dirEntryStruct struct {
	basename string
	inode    *InMemoryInodeStruct
}

type dirEntryTree struct {
	tree *btree.BTreeG[dirEntryStruct]
}

func dirEntryLess(a, b dirEntryStruct) bool {
	return a.basename < b.basename
}

func newDirEntryTree() *dirEntryTree {
	return &dirEntryTree{tree: btree.NewG(dirEntryTreeDegree, dirEntryLess)}
}

func (dt *dirEntryTree) get(basename string) (inode *InMemoryInodeStruct, ok bool) {
	dirEntry, ok := dt.tree.Get(dirEntryStruct{basename: basename})
	if ok {
		inode = dirEntry.inode
	}
	return
}

// put inserts or replaces basename, returning the inode previously linked there.
func (dt *dirEntryTree) put(basename string, inode *InMemoryInodeStruct) (replaced *InMemoryInodeStruct) {
	old, ok := dt.tree.ReplaceOrInsert(dirEntryStruct{basename: basename, inode: inode})
	if ok {
		replaced = old.inode
	}
	return
}

func (dt *dirEntryTree) delete(basename string) (inode *InMemoryInodeStruct, ok bool) {
	dirEntry, ok := dt.tree.Delete(dirEntryStruct{basename: basename})
	if ok {
		inode = dirEntry.inode
	}
	return
}

func (dt *dirEntryTree) len() int {
	return dt.tree.Len()
}

func (dt *dirEntryTree) readDir() (dirEntries []DirEntry) {
	dirEntries = make([]DirEntry, 0, dt.tree.Len())
	dt.tree.Ascend(func(dirEntry dirEntryStruct) bool {
		dirEntries = append(dirEntries, DirEntry{
			InodeNumber: dirEntry.inode.InodeNumber,
			Basename:    dirEntry.basename,
			Type:        dirEntry.inode.InodeType,
		})
		return true
	})
	return
}
