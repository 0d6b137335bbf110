// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package platform provides host properties used to size in-memory structures.
package platform

import (
	"sync"

	"github.com/shirou/gopsutil/v4/mem"
)

var (
	memSizeOnce  sync.Once
	memSizeValue uint64
)

// MemSize returns the total physical memory of the host in bytes.
//
// The value is read once and remembered. If it cannot be determined a
// conservative 4 GiB is returned instead.
func MemSize() (memSize uint64) {
	memSizeOnce.Do(func() {
		vmStat, err := mem.VirtualMemory()
		if (nil != err) || (0 == vmStat.Total) {
			memSizeValue = fallbackMemSize
			return
		}
		memSizeValue = vmStat.Total
	})

	memSize = memSizeValue

	return
}
