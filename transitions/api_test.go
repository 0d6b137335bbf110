// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package transitions

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/namecache/conf"
)

type testCallbacksInterfaceStruct struct {
	name          string
	failServeOf   string
	callbackTrace *[]string
}

var testCallbackTrace []string

var (
	testCallbacksInterface1 = testCallbacksInterfaceStruct{name: "test1", callbackTrace: &testCallbackTrace}
	testCallbacksInterface2 = testCallbacksInterfaceStruct{name: "test2", callbackTrace: &testCallbackTrace}
)

func init() {
	Register(testCallbacksInterface1.name, &testCallbacksInterface1)
	Register(testCallbacksInterface2.name, &testCallbacksInterface2)
}

func (testCallbacksInterface *testCallbacksInterfaceStruct) record(format string, args ...interface{}) {
	*testCallbacksInterface.callbackTrace = append(*testCallbacksInterface.callbackTrace, testCallbacksInterface.name+"."+fmt.Sprintf(format, args...))
}

func (testCallbacksInterface *testCallbacksInterfaceStruct) Up(confMap conf.ConfMap) (err error) {
	testCallbacksInterface.record("Up()")
	return
}

func (testCallbacksInterface *testCallbacksInterfaceStruct) ServeVolume(confMap conf.ConfMap, volumeName string) (err error) {
	testCallbacksInterface.record("ServeVolume(%s)", volumeName)
	if volumeName == testCallbacksInterface.failServeOf {
		err = fmt.Errorf("refusing to serve %s", volumeName)
	}
	return
}

func (testCallbacksInterface *testCallbacksInterfaceStruct) UnserveVolume(confMap conf.ConfMap, volumeName string) (err error) {
	testCallbacksInterface.record("UnserveVolume(%s)", volumeName)
	return
}

func (testCallbacksInterface *testCallbacksInterfaceStruct) SignaledStart(confMap conf.ConfMap) (err error) {
	testCallbacksInterface.record("SignaledStart()")
	return
}

func (testCallbacksInterface *testCallbacksInterfaceStruct) SignaledFinish(confMap conf.ConfMap) (err error) {
	testCallbacksInterface.record("SignaledFinish()")
	return
}

func (testCallbacksInterface *testCallbacksInterfaceStruct) Down(confMap conf.ConfMap) (err error) {
	testCallbacksInterface.record("Down()")
	return
}

func TestAPI(t *testing.T) {
	assert := assert.New(t)

	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Logging.LogFilePath=/dev/null",
		"Logging.LogToConsole=false",
		"FSGlobals.VolumeList=VolumeB,VolumeA",
	})
	require.NoError(t, err)

	testCallbackTrace = nil

	err = Up(confMap)
	require.NoError(t, err)

	assert.Equal([]string{
		"test1.Up()",
		"test2.Up()",
		"test1.ServeVolume(VolumeA)",
		"test2.ServeVolume(VolumeA)",
		"test1.ServeVolume(VolumeB)",
		"test2.ServeVolume(VolumeB)",
		"test1.SignaledFinish()",
		"test2.SignaledFinish()",
	}, testCallbackTrace)
	assert.Equal([]string{"VolumeA", "VolumeB"}, ServedVolumes())

	err = confMap.UpdateFromString("FSGlobals.VolumeList=VolumeB,VolumeC")
	require.NoError(t, err)

	testCallbackTrace = nil

	err = Signaled(confMap)
	require.NoError(t, err)

	assert.Equal([]string{
		"test2.SignaledStart()",
		"test1.SignaledStart()",
		"test2.UnserveVolume(VolumeA)",
		"test1.UnserveVolume(VolumeA)",
		"test1.ServeVolume(VolumeC)",
		"test2.ServeVolume(VolumeC)",
		"test1.SignaledFinish()",
		"test2.SignaledFinish()",
	}, testCallbackTrace)
	assert.Equal([]string{"VolumeB", "VolumeC"}, ServedVolumes())

	testCallbackTrace = nil

	err = Down(confMap)
	require.NoError(t, err)

	assert.Equal([]string{
		"test2.SignaledStart()",
		"test1.SignaledStart()",
		"test2.UnserveVolume(VolumeB)",
		"test1.UnserveVolume(VolumeB)",
		"test2.UnserveVolume(VolumeC)",
		"test1.UnserveVolume(VolumeC)",
		"test2.Down()",
		"test1.Down()",
	}, testCallbackTrace)
	assert.Empty(ServedVolumes())
}

func TestServeFailure(t *testing.T) {
	assert := assert.New(t)

	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Logging.LogFilePath=/dev/null",
		"FSGlobals.VolumeList=VolumeA,VolumeBad",
	})
	require.NoError(t, err)

	testCallbacksInterface2.failServeOf = "VolumeBad"
	defer func() { testCallbacksInterface2.failServeOf = "" }()

	testCallbackTrace = nil

	err = Up(confMap)
	assert.Error(err)
	assert.Contains(err.Error(), "test2.ServeVolume(,VolumeBad)")
	assert.Equal([]string{"VolumeA"}, ServedVolumes())

	testCallbacksInterface2.failServeOf = ""

	err = Down(confMap)
	assert.NoError(err)
	assert.Empty(ServedVolumes())
}
