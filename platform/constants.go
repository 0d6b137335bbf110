// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package platform

const (
	// GoHeapAllocationMultiplier defines the float64 overhead of memory allocations
	// in the Golang runtime. This multiplier is > 1 primarily due to the desire to
	// avoid overly fragmenting RAM unless/until the Golang Garbage Collector
	// implements any form of compaction.
	//
	// Cache sizing divides its share of MemSize() by this value, so a name cache
	// configured to use 1% of RAM actually budgets for ~0.5% of it in entries.
	GoHeapAllocationMultiplier = float64(2.0)

	// fallbackMemSize is reported when the host memory size cannot be read.
	fallbackMemSize = uint64(4) << 30
)
