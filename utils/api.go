// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package utils provides miscellaneous utilities shared by the namecache packages.
package utils

import (
	"bytes"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

var (
	trailingPathComponentRE = regexp.MustCompile(`[^\/]*$`)
	leadingPackageNameRE    = regexp.MustCompile(`^[^.]*`)
	trailingFuncNameRE      = regexp.MustCompile(`[^.]*$`)
)

// GetGID returns the id of the calling goroutine.
//
// The runtime deliberately hides goroutine ids, but logging the goroutine
// context is invaluable when debugging lock ordering problems.
//
func GetGID() uint64 {
	var stackBuf [64]byte

	return StackTraceToGoId(stackBuf[:runtime.Stack(stackBuf[:], false)])
}

// GetGoId is an alias of GetGID kept for lock tracking callers.
func GetGoId() uint64 {
	return GetGID()
}

// StackTraceToGoId parses the goroutine id out of the first line of a stack
// trace as returned by runtime.Stack().
//
func StackTraceToGoId(stackTrace []byte) (goId uint64) {
	stackTrace = bytes.TrimPrefix(stackTrace, []byte("goroutine "))
	spaceIndex := bytes.IndexByte(stackTrace, ' ')
	if spaceIndex < 0 {
		return 0
	}
	goId, _ = strconv.ParseUint(string(stackTrace[:spaceIndex]), 10, 64)
	return
}

// GetAFnName returns "<package>.<function>" of the caller level frames up.
func GetAFnName(level int) string {
	pc, _, _, ok := runtime.Caller(level + 1)
	if !ok {
		return "unknown.unknown"
	}
	functionObject := runtime.FuncForPC(pc)
	if nil == functionObject {
		return "unknown.unknown"
	}
	return trailingPathComponentRE.FindString(functionObject.Name())
}

// GetFuncPackage returns the function and package of the caller level frames
// up along with the current goroutine id.
//
func GetFuncPackage(level int) (fn string, pkg string, gid uint64) {
	funcPkg := GetAFnName(level + 1)

	pkg = leadingPackageNameRE.FindString(funcPkg)
	fn = trailingFuncNameRE.FindString(funcPkg)
	gid = GetGID()

	return
}

// GetFnName returns the name of the running function and its package.
func GetFnName() string {
	return GetAFnName(1)
}

// GetCallerFnName returns the name of the calling function and its package.
func GetCallerFnName() string {
	return GetAFnName(2)
}

// Stopwatch measures elapsed wall clock time.
type Stopwatch struct {
	StartTime   time.Time
	StopTime    time.Time
	ElapsedTime time.Duration
	IsRunning   bool
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{StartTime: time.Now(), IsRunning: true}
}

// Stop halts the stopwatch (if running) and returns the elapsed time.
func (sw *Stopwatch) Stop() time.Duration {
	sw.StopTime = time.Now()

	if sw.IsRunning {
		sw.ElapsedTime = sw.StopTime.Sub(sw.StartTime)
		sw.IsRunning = false
	}
	return sw.ElapsedTime
}

func (sw *Stopwatch) Restart() {
	if !sw.IsRunning {
		sw.ElapsedTime = 0
		sw.StartTime = time.Now()
		sw.StopTime = time.Time{}
		sw.IsRunning = true
	}
}

func (sw *Stopwatch) Elapsed() time.Duration {
	if !sw.IsRunning {
		return sw.ElapsedTime
	}
	return time.Since(sw.StartTime)
}

func (sw *Stopwatch) ElapsedUs() uint64 {
	return uint64(sw.Elapsed() / time.Microsecond)
}

func (sw *Stopwatch) ElapsedString() string {
	return sw.Elapsed().String()
}
