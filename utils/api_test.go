// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testCallerOfGetCallerFnName() string {
	return GetCallerFnName()
}

func TestFnNames(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("utils.TestFnNames", GetFnName())
	assert.Equal("utils.TestFnNames", testCallerOfGetCallerFnName())

	fn, pkg, gid := GetFuncPackage(0)
	assert.Equal("TestFnNames", fn)
	assert.Equal("utils", pkg)
	assert.NotEqual(uint64(0), gid)
}

func TestGoId(t *testing.T) {
	var (
		stackBuf [128]byte
	)

	assert := assert.New(t)

	stackTrace := stackBuf[:runtime.Stack(stackBuf[:], false)]
	assert.True(strings.HasPrefix(string(stackTrace), "goroutine "))
	assert.Equal(StackTraceToGoId(stackTrace), GetGoId())

	otherGoIdChan := make(chan uint64)
	go func() {
		otherGoIdChan <- GetGID()
	}()
	assert.NotEqual(GetGID(), <-otherGoIdChan)

	assert.Equal(uint64(0), StackTraceToGoId([]byte("garbage")))
}

func TestStopwatch(t *testing.T) {
	assert := assert.New(t)

	sw := NewStopwatch()
	assert.True(sw.IsRunning)
	time.Sleep(10 * time.Millisecond)

	elapsed := sw.Stop()
	assert.False(sw.IsRunning)
	assert.True(elapsed >= 10*time.Millisecond)
	assert.Equal(elapsed, sw.Elapsed())
	assert.True(sw.ElapsedUs() >= 10000)

	// Stop of a stopped Stopwatch changes nothing
	assert.Equal(elapsed, sw.Stop())

	sw.Restart()
	assert.True(sw.IsRunning)
	assert.True(sw.Elapsed() < elapsed+time.Second)
	assert.NotEmpty(sw.ElapsedString())
}
