// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package statslogger

// SimpleStats tracks the min, max and mean of a sampled gauge over an interval.
type SimpleStats struct {
	min     uint64
	max     uint64
	total   uint64
	samples uint64
}

func (sp *SimpleStats) Clear() {
	*sp = SimpleStats{}
}

func (sp *SimpleStats) Sample(cnt uint64) {
	if (0 == sp.samples) || (sp.min > cnt) {
		sp.min = cnt
	}
	if sp.max < cnt {
		sp.max = cnt
	}
	sp.total += cnt
	sp.samples++
}

func (sp *SimpleStats) Mean() uint64 {
	if 0 == sp.samples {
		return 0
	}
	return sp.total / sp.samples
}

func (sp *SimpleStats) Min() uint64 {
	return sp.min
}

func (sp *SimpleStats) Max() uint64 {
	return sp.max
}

func (sp *SimpleStats) Samples() uint64 {
	return sp.samples
}
