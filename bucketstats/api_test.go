// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package bucketstats

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// a structure containing all of the bucketstats statistics types and other
// fields; useful for testing
type allStatTypes struct {
	MyName   string // not a statistic
	bar      int    // also not a statistic
	Total1   Total
	Average1 Average
	Bucket1  BucketLog2Round
	Bucket2  BucketLog2Round
}

// verify that all of the bucketstats statistics types satisfy the appropriate
// interface (this is really a compile time test; it fails if they don't)
func TestBucketStatsInterfaces(t *testing.T) {
	var (
		stats allStatTypes
	)

	totalers := []Totaler{&stats.Total1, &stats.Average1, &stats.Bucket1}
	averagers := []Averager{&stats.Average1, &stats.Bucket1}
	bucketers := []Bucketer{&stats.Bucket1}

	assert.Equal(t, 3, len(totalers))
	assert.Equal(t, 2, len(averagers))
	assert.Equal(t, 1, len(bucketers))
	assert.Equal(t, 0, stats.bar)
}

func TestLog2RoundIdx(t *testing.T) {
	assert := assert.New(t)

	expected := map[uint64]uint{
		0: 0, 1: 1, 2: 2, 3: 3, 5: 3, 6: 4, 11: 4, 12: 5, 22: 5, 23: 6,
		1 << 20:        21,
		math.MaxUint64: 64,
	}
	for value, idx := range expected {
		assert.Equal(idx, log2RoundIdx(value), "value %d", value)
	}

	// every value maps into the bucket whose range holds it
	for value := uint64(0); value < 5000; value++ {
		idx := log2RoundIdx(value)
		assert.True(log2RoundBucketTable[idx].RangeLow <= value)
		assert.True(log2RoundBucketTable[idx].RangeHigh >= value)
	}

	// ranges are contiguous
	for n := 1; n < log2RoundBuckets; n++ {
		assert.Equal(log2RoundBucketTable[n-1].RangeHigh+1, log2RoundBucketTable[n].RangeLow, "bucket %d", n)
	}
}

func TestRegisterAndSprint(t *testing.T) {
	var (
		stats allStatTypes
	)

	assert := assert.New(t)

	stats.Bucket2.Name = "Sizes: in bytes"
	stats.Bucket2.NBucket = 4

	Register("bstest", "group", &stats)
	defer UnRegister("bstest", "group")

	assert.Equal("Total1", stats.Total1.Name)
	assert.Equal("Sizes__in_bytes", stats.Bucket2.Name)
	assert.Equal(uint(65), stats.Bucket1.NBucket)
	assert.Equal(uint(10), stats.Bucket2.NBucket)

	assert.Panics(func() { Register("bstest", "group", &allStatTypes{}) })
	assert.Panics(func() { Register("", "", &allStatTypes{}) })
	assert.Panics(func() { Register("bstest", "notastruct", &stats.bar) })

	stats.Total1.Increment()
	stats.Total1.Add(41)
	assert.Equal(uint64(42), stats.Total1.TotalGet())

	assert.Equal(uint64(0), stats.Average1.AverageGet())
	stats.Average1.Add(10)
	stats.Average1.Add(20)
	assert.Equal(uint64(2), stats.Average1.CountGet())
	assert.Equal(uint64(30), stats.Average1.TotalGet())
	assert.Equal(uint64(15), stats.Average1.AverageGet())

	stats.Bucket1.Add(1)
	stats.Bucket1.Add(4)
	stats.Bucket1.Add(4)
	assert.Equal(uint64(3), stats.Bucket1.CountGet())
	assert.Equal(uint64(9), stats.Bucket1.TotalGet())
	assert.Equal(uint64(3), stats.Bucket1.AverageGet())

	// large values land in the last bucket
	stats.Bucket2.Add(1 << 40)
	dist := stats.Bucket2.DistGet()
	assert.Equal(10, len(dist))
	assert.Equal(uint64(1), dist[9].Count)
	assert.Equal(uint64(math.MaxUint64), dist[9].RangeHigh)

	statsString := SprintStats(StatFormatParsable1, "bstest", "group")
	assert.True(strings.Contains(statsString, "bstest.group.Total1 total:42\n"))
	assert.True(strings.Contains(statsString, "bstest.group.Average1 total:30 count:2 avg:15\n"))
	assert.True(strings.Contains(statsString, "bstest.group.Bucket1 total:9 count:3 avg:3 0:0 1:1 2:0 4:2\n"))
	assert.Equal(4, strings.Count(statsString, "\n"))

	assert.Equal(statsString, SprintStats(StatFormatParsable1, "*", "*"))

	assert.Panics(func() { SprintStats(StatFormatParsable1, "bstest", "nosuchgroup") })
}

func TestConcurrentAdd(t *testing.T) {
	var (
		stats allStatTypes
		wg    sync.WaitGroup
	)

	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				stats.Total1.Increment()
				stats.Average1.Add(2)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(10000), stats.Total1.TotalGet())
	assert.Equal(t, uint64(2), stats.Average1.AverageGet())
}
