// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package inode

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/transitions"
)

func TestCreateLookupReadDir(t *testing.T) {
	assert := assert.New(t)

	vh := NewVolume("TestVolume", 7)
	root := vh.RootDir()

	assert.Equal("TestVolume", vh.VolumeName())
	assert.Equal(uint64(7), vh.MountID())
	assert.Equal(uint64(7), root.MountID())
	assert.Equal(uint64(1), vh.InodeCount())

	dir, err := vh.Mkdir(root, "dir")
	require.NoError(t, err)
	defer dir.Release()
	assert.True(dir.IsDir())
	assert.Equal(int64(2), dir.RefCnt())

	for _, basename := range []string{"c", "a", "b"} {
		file, err := vh.CreateFile(dir, basename)
		require.NoError(t, err)
		assert.False(file.IsDir())
		file.Release()
	}
	assert.Equal(uint64(5), vh.InodeCount())

	_, err = vh.CreateFile(dir, "a")
	assert.True(blunder.Is(err, blunder.FileExistsError))

	dirEntries, err := vh.ReadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 3, len(dirEntries))
	assert.Equal("a", dirEntries[0].Basename)
	assert.Equal("b", dirEntries[1].Basename)
	assert.Equal("c", dirEntries[2].Basename)
	assert.Equal(FileType, dirEntries[0].Type)

	file, err := vh.Lookup(dir, "b")
	require.NoError(t, err)
	assert.Equal(dirEntries[1].InodeNumber, file.InodeNumber)
	assert.Equal(uint64(file.InodeNumber), file.ObjectID())
	file.Release()

	self, err := vh.Lookup(dir, ".")
	require.NoError(t, err)
	assert.True(self == dir)
	self.Release()

	parent, err := vh.Lookup(dir, "..")
	require.NoError(t, err)
	assert.True(parent == root)
	parent.Release()

	rootParent, err := vh.Lookup(root, "..")
	require.NoError(t, err)
	assert.True(rootParent == root)
	rootParent.Release()

	_, err = vh.Lookup(dir, "nope")
	assert.True(blunder.Is(err, blunder.NotFoundError))

	_, err = vh.Lookup(file, "x")
	assert.True(blunder.Is(err, blunder.NotDirError))
}

func TestBasenameValidation(t *testing.T) {
	vh := NewVolume("TestVolume", 1)
	root := vh.RootDir()

	for _, basename := range []string{"", ".", "..", "a/b", "a\x00b"} {
		_, err := vh.CreateFile(root, basename)
		assert.True(t, blunder.Is(err, blunder.InvalidArgError), basename)
	}

	_, err := vh.Mkdir(root, strings.Repeat("x", MaxBasenameLength+1))
	assert.True(t, blunder.Is(err, blunder.NameTooLongError))

	file, err := vh.CreateFile(root, strings.Repeat("x", MaxBasenameLength))
	require.NoError(t, err)
	file.Release()
}

func TestUnlinkAndRmdir(t *testing.T) {
	assert := assert.New(t)

	vh := NewVolume("TestVolume", 1)
	root := vh.RootDir()

	dir, err := vh.Mkdir(root, "dir")
	require.NoError(t, err)
	file, err := vh.CreateFile(dir, "file")
	require.NoError(t, err)

	assert.True(blunder.Is(vh.Unlink(root, "dir"), blunder.IsDirError))
	assert.True(blunder.Is(vh.Rmdir(dir, "file"), blunder.NotDirError))
	assert.True(blunder.Is(vh.Rmdir(root, "dir"), blunder.NotEmptyError))
	assert.True(blunder.Is(vh.Unlink(dir, "nope"), blunder.NotFoundError))

	require.NoError(t, vh.Unlink(dir, "file"))

	// still held by us
	assert.False(file.Destroyed())
	assert.True(file.TryHold())
	file.Release()

	_, _, err = vh.ParentOf(file)
	assert.True(blunder.Is(err, blunder.StaleError))

	file.Release()
	assert.True(file.Destroyed())
	assert.False(file.TryHold())

	require.NoError(t, vh.Rmdir(root, "dir"))
	_, err = vh.Lookup(dir, ".")
	assert.True(blunder.Is(err, blunder.NotFoundError))
	_, err = vh.CreateFile(dir, "late")
	assert.True(blunder.Is(err, blunder.NotFoundError))

	dir.Release()
	assert.True(dir.Destroyed())
	assert.Equal(uint64(1), vh.InodeCount())
}

func TestRename(t *testing.T) {
	assert := assert.New(t)

	vh := NewVolume("TestVolume", 1)
	root := vh.RootDir()

	a, err := vh.Mkdir(root, "a")
	require.NoError(t, err)
	defer a.Release()
	b, err := vh.Mkdir(a, "b")
	require.NoError(t, err)
	defer b.Release()
	f, err := vh.CreateFile(root, "f")
	require.NoError(t, err)
	defer f.Release()
	g, err := vh.CreateFile(b, "g")
	require.NoError(t, err)
	defer g.Release()

	// a directory cannot move beneath itself
	_, _, err = vh.Rename(root, "a", b, "a")
	assert.True(blunder.Is(err, blunder.RenameIntoSelfError))
	_, _, err = vh.Rename(root, "a", a, "c")
	assert.True(blunder.Is(err, blunder.RenameIntoSelfError))

	// type mismatches and non-empty targets
	_, _, err = vh.Rename(root, "f", a, "b")
	assert.True(blunder.Is(err, blunder.IsDirError))
	_, _, err = vh.Rename(a, "b", root, "f")
	assert.True(blunder.Is(err, blunder.NotDirError))
	_, _, err = vh.Rename(root, "missing", root, "x")
	assert.True(blunder.Is(err, blunder.NotFoundError))

	// same name is a no-op
	renamed, replaced, err := vh.Rename(root, "f", root, "f")
	require.NoError(t, err)
	assert.True(renamed == f)
	assert.Nil(replaced)
	renamed.Release()

	// move directory b up to the root
	renamed, replaced, err = vh.Rename(a, "b", root, "b2")
	require.NoError(t, err)
	assert.True(renamed == b)
	assert.Nil(replaced)
	renamed.Release()

	parent, basename, err := vh.ParentOf(b)
	require.NoError(t, err)
	assert.True(parent == root)
	assert.Equal("b2", basename)
	parent.Release()

	dotdot, err := vh.Lookup(b, "..")
	require.NoError(t, err)
	assert.True(dotdot == root)
	dotdot.Release()

	// replace a file
	renamed, replaced, err = vh.Rename(b, "g", root, "f")
	require.NoError(t, err)
	assert.True(renamed == g)
	assert.True(replaced == f)
	renamed.Release()
	replaced.Release()

	_, _, err = vh.ParentOf(f)
	assert.True(blunder.Is(err, blunder.StaleError))

	// replace an empty directory
	renamed, replaced, err = vh.Rename(root, "b2", root, "a")
	require.NoError(t, err)
	assert.True(renamed == b)
	assert.True(replaced == a)
	renamed.Release()
	replaced.Release()

	dirEntries, err := vh.ReadDir(root)
	require.NoError(t, err)
	require.Equal(t, 2, len(dirEntries))
	assert.Equal("a", dirEntries[0].Basename)
	assert.Equal(b.InodeNumber, dirEntries[0].InodeNumber)
	assert.Equal("f", dirEntries[1].Basename)
	assert.Equal(g.InodeNumber, dirEntries[1].InodeNumber)

	// root plus b and g
	assert.Equal(uint64(3), vh.InodeCount())
}

func TestCrossVolume(t *testing.T) {
	vh1 := NewVolume("Vol1", 1)
	vh2 := NewVolume("Vol2", 2)

	assert.NotEqual(t, vh1.RootDir().ObjectID(), vh2.RootDir().ObjectID())

	_, err := vh1.Lookup(vh2.RootDir(), "x")
	assert.True(t, blunder.Is(err, blunder.CrossVolumeError))
	_, _, err = vh1.ParentOf(vh2.RootDir())
	assert.True(t, blunder.Is(err, blunder.CrossVolumeError))
}

func TestConcurrentCreateRemove(t *testing.T) {
	var (
		wg sync.WaitGroup
	)

	vh := NewVolume("TestVolume", 1)
	root := vh.RootDir()

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			basename := string(rune('a' + g))
			for i := 0; i < 200; i++ {
				file, err := vh.CreateFile(root, basename)
				if nil != err {
					t.Error(err)
					return
				}
				file.Release()
				err = vh.Unlink(root, basename)
				if nil != err {
					t.Error(err)
					return
				}
				if !file.Destroyed() {
					t.Errorf("inode %d not destroyed", file.InodeNumber)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, uint64(1), vh.InodeCount())
}

func TestServeVolume(t *testing.T) {
	assert := assert.New(t)

	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Logging.LogFilePath=/dev/null",
		"Logging.LogToConsole=false",
		"FSGlobals.VolumeList=VolA,VolB",
		"Volume:VolA.MountID=11",
		"Volume:VolB.MountID=12",
		"NameCache.ReclaimPeriod=0s",
	})
	require.NoError(t, err)

	err = transitions.Up(confMap)
	require.NoError(t, err)

	vh, err := FetchVolumeHandle("VolB")
	require.NoError(t, err)
	assert.Equal(uint64(12), vh.MountID())

	err = confMap.UpdateFromString("FSGlobals.VolumeList=VolB")
	require.NoError(t, err)
	err = transitions.Signaled(confMap)
	require.NoError(t, err)

	_, err = FetchVolumeHandle("VolA")
	assert.True(blunder.Is(err, blunder.NotFoundError))

	err = transitions.Down(confMap)
	require.NoError(t, err)
}
