// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/namecache/conf"
)

func testNestedFunc() {
	myint := 3
	ctx := TraceEnter("the prefix", 1, myint)
	defer ctx.TraceExit("the exit prefix", "done")
}

func TestAPI(t *testing.T) {
	var (
		target LogTarget
	)

	assert := assert.New(t)

	logFilePath := filepath.Join(t.TempDir(), "namecache.log")

	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Logging.LogFilePath=" + logFilePath,
		"Logging.LogToConsole=false",
		"Logging.TraceLevelLogging=logger",
		"Logging.DebugLevelLogging=namecache",
	})
	require.NoError(t, err)

	err = Up(confMap)
	require.NoError(t, err)

	target.Init(10)
	AddLogTarget(target)

	Tracef("hello there!")
	assert.True(target.Contains("hello there!"))
	assert.True(target.Contains("function=TestAPI"))
	assert.True(target.Contains("package=logger"))

	Warnf("%v: %v", "IAmTheCaller", "this is the warning")
	assert.True(target.Contains("this is the warning"))

	err = fmt.Errorf("this is the error")
	ErrorfWithError(err, "we had an error!")
	assert.True(target.Contains(`error="this is the error"`))

	testNestedFunc()
	assert.True(target.Contains(">> called the prefix 1 3"))
	assert.True(target.Contains("<< returning the exit prefix done"))

	// debug is enabled for namecache, not logger
	DebugfID(DbgTesting, "not for this package")
	assert.False(target.Contains("not for this package"))

	assert.Panics(func() { PanicfWithError(err, "broken invariant") })
	assert.True(target.Contains("broken invariant"))

	err = Down(confMap)
	assert.NoError(err)

	logFileContents, err := os.ReadFile(logFilePath)
	require.NoError(t, err)
	assert.True(strings.Contains(string(logFileContents), "hello there!"))
}

func TestSignaledFinish(t *testing.T) {
	var (
		target LogTarget
	)

	assert := assert.New(t)

	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Logging.TraceLevelLogging=none",
	})
	require.NoError(t, err)

	err = Up(confMap)
	require.NoError(t, err)

	target.Init(4)
	AddLogTarget(target)

	Tracef("invisible")
	assert.False(target.Contains("invisible"))

	err = confMap.UpdateFromString("Logging.TraceLevelLogging=logger")
	require.NoError(t, err)
	err = SignaledFinish(confMap)
	require.NoError(t, err)

	Tracef("visible")
	assert.True(target.Contains("visible"))
	assert.Equal(true, 0 < target.LogBuf.TotalEntries)

	err = Down(confMap)
	assert.NoError(err)
}
