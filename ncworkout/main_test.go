// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/namecache/conf"
)

var testConfStrings = []string{
	"Logging.LogFilePath=/dev/null",
	"Logging.LogToConsole=false",
	"NameCache.ReclaimPeriod=0s",
}

func TestWorkout(t *testing.T) {
	var (
		out bytes.Buffer
	)

	assert := assert.New(t)

	dumpPath := filepath.Join(t.TempDir(), "ncworkout.conf")

	rootCmd := newRootCmd(&out)
	rootCmd.SetArgs(append([]string{
		"--threads", "4",
		"--dirs", "3",
		"--files", "10",
		"--ops", "2000",
		"--max-entries", "4096",
		"--dump-conf", dumpPath,
	}, testConfStrings...))

	err := rootCmd.Execute()
	require.NoError(t, err)

	output := out.String()
	assert.True(strings.Contains(output, "populated 3 dirs x 10 files"), output)
	assert.True(strings.Contains(output, "2000 ops in"), output)
	for _, opKindName := range opKindNames {
		assert.True(strings.Contains(output, opKindName), opKindName)
	}
	assert.True(strings.Contains(output, "namecache.cache-"), output)
	assert.True(strings.Contains(output, "max 4096"), output)

	confMap, err := conf.MakeConfMapFromFile(dumpPath)
	require.NoError(t, err)
	volumeList, err := confMap.FetchOptionValueStringSlice("FSGlobals", "VolumeList")
	require.NoError(t, err)
	assert.Equal([]string{defaultVolumeName}, volumeList)
	maxEntries, err := confMap.FetchOptionValueUint64("NameCache", "MaxEntries")
	require.NoError(t, err)
	assert.Equal(uint64(4096), maxEntries)
}

func TestWorkoutHuJSONConf(t *testing.T) {
	var (
		out bytes.Buffer
	)

	confPath := filepath.Join(t.TempDir(), "ncworkout.json")
	err := os.WriteFile(confPath, []byte(`{
		// two volumes; only the first is exercised
		"FSGlobals":   {"VolumeList": ["VolX", "VolY"]},
		"Volume:VolX": {"MountID": 5},
		"Volume:VolY": {"MountID": 6},
		"NameCache":   {"MaxEntries": 2048, "MaxNameLength": 32},
	}`), 0o644)
	require.NoError(t, err)

	rootCmd := newRootCmd(&out)
	rootCmd.SetArgs(append([]string{"-t", "2", "-d", "2", "-f", "4", "-o", "500", confPath}, testConfStrings...))

	err = rootCmd.Execute()
	require.NoError(t, err)
	assert.True(t, strings.Contains(out.String(), "max 2048"), out.String())
}

func TestWorkoutBadArgs(t *testing.T) {
	var (
		out bytes.Buffer
	)

	rootCmd := newRootCmd(&out)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--threads", "0"})
	assert.Error(t, rootCmd.Execute())

	rootCmd = newRootCmd(&out)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.conf")})
	assert.Error(t, rootCmd.Execute())
}
