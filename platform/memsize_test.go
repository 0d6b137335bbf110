// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemSize(t *testing.T) {
	assert := assert.New(t)

	memSize := MemSize()
	assert.NotEqual(uint64(0), memSize)

	// remembered after the first call
	assert.Equal(memSize, MemSize())
	assert.True(GoHeapAllocationMultiplier > 1.0)
}
