// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package transitions sequences the lifecycle of every namecache package from a
// single conf.ConfMap: start-up, volumes coming and going, configuration reloads,
// and shutdown.
package transitions

import (
	"github.com/NVIDIA/namecache/conf"
)

// Callbacks is the interface implemented by each package desiring notification of
// configuration changes. Each such package should implement a struct with pointer
// receivers for each API listed below even when there is no interest in being
// notified of a particular condition.
//
// By calling transitions.Register() in the package's init() func, the proper order
// of registration will be ensured. In specific, the following callbacks will be
// issued in the same order as package init() func calls have registered:
//
//   Up()
//   ServeVolume()
//   SignaledFinish()
//
// By contrast, the following callbacks will be issued in the reverse order as package
// init() func calls have registered:
//
//   SignaledStart()
//   UnserveVolume()
//   Down()
//
// The set of served volumes is taken from the FSGlobals.VolumeList option.
//
type Callbacks interface {
	Up(confMap conf.ConfMap) (err error)
	ServeVolume(confMap conf.ConfMap, volumeName string) (err error)
	UnserveVolume(confMap conf.ConfMap, volumeName string) (err error)
	SignaledStart(confMap conf.ConfMap) (err error)
	SignaledFinish(confMap conf.ConfMap) (err error)
	Down(confMap conf.ConfMap) (err error)
}

// Register should be called from a package's init() func should the package be interested
// in one or more of the callbacks that they will receive. Each callback func should receive
// a struct implementing the Callbacks interface by reference.
//
// As an example, consider the following:
//
//   package foo
//
//   import "github.com/NVIDIA/namecache/conf"
//   import "github.com/NVIDIA/namecache/transitions"
//
//   type transitionsCallbackInterfaceStruct struct {
//   }
//
//   var transitionsCallbackInterface transitionsCallbackInterfaceStruct
//
//   func init() {
//       transitions.Register("foo", &transitionsCallbackInterface)
//   }
//
//   func (transitionsCallbackInterface *transitionsCallbackInterfaceStruct) Up(confMap conf.ConfMap) (err error) {
//       // Perform start-up initialization derived from confMap
//       // ...set err at some point
//       return
//   }
//
//   ...
//
// A special exception to the need for registration is the package logger. Package
// transitions makes an explicit reference to logging functions in package logger and,
// as such, will perform the registration for package logger itself.
//
func Register(packageName string, callbacks Callbacks) {
	register(packageName, callbacks)
}

// Up should be called at startup by the main() (or setup func) of each program including
// any of the packages needing callback notifications. This will trigger Up() callbacks
// to each of the packages that have registered with package transitions starting with
// package logger, followed by ServeVolume() for each listed volume and SignaledFinish().
//
func Up(confMap conf.ConfMap) (err error) {
	return up(confMap)
}

// Signaled should be called when the configuration has changed (e.g. upon SIGHUP). The
// following callbacks are issued:
//
//   SignaledStart()  - reverse registration order
//   UnserveVolume()  - reverse registration order (for each volume no longer listed)
//   ServeVolume()    -         registration order (for each newly listed volume)
//   SignaledFinish() -         registration order
//
func Signaled(confMap conf.ConfMap) (err error) {
	return signaled(confMap)
}

// Down should be called just before shutdown. All served volumes are unserved (after
// a SignaledStart()) and then Down() callbacks are made in reverse registration order
// ending with package logger.
//
func Down(confMap conf.ConfMap) (err error) {
	return down(confMap)
}

// ServedVolumes returns the names of the volumes currently served, sorted.
func ServedVolumes() (volumeNames []string) {
	return servedVolumes()
}
