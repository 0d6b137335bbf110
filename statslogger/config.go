// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package statslogger periodically logs the process wide name cache's
// statistics, both absolute and as deltas since the previous log, along with
// Go runtime memory figures.
//
package statslogger

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/logger"
	"github.com/NVIDIA/namecache/namecache"
	"github.com/NVIDIA/namecache/transitions"
)

const (
	defaultStatsLogPeriod = 10 * time.Minute
	sampleInterval        = time.Second
)

type globalsStruct struct {
	sampleChan     <-chan time.Time // time to sample entry counts
	logChan        <-chan time.Time // time to log statistics
	stopChan       chan struct{}    // time to shutdown and go home
	doneChan       chan struct{}    // shutdown complete
	statsLogPeriod time.Duration    // time between statistics logging; 0 disables
	sampleTicker   *time.Ticker
	logTicker      *time.Ticker
	logsWritten    atomic.Uint64
}

var globals globalsStruct

func init() {
	transitions.Register("statslogger", &globals)
}

func parseConfMap(confMap conf.ConfMap) (statsLogPeriod time.Duration) {
	var (
		err error
	)

	statsLogPeriod, err = confMap.FetchOptionValueDuration("StatsLogger", "Period")
	if nil != err {
		logger.Infof("config variable 'StatsLogger.Period' defaulting to '%v': %v", defaultStatsLogPeriod, err)
		statsLogPeriod = defaultStatsLogPeriod
	}

	// statsLogPeriod must be >= 1 sec, except 0 means disabled
	if (statsLogPeriod < time.Second) && (0 != statsLogPeriod) {
		logger.Warnf("config variable 'StatsLogger.Period' value is non-zero and less then 1 sec; defaulting to '%v'", defaultStatsLogPeriod)
		statsLogPeriod = defaultStatsLogPeriod
	}

	return
}

func startStatsLogger() {
	if 0 == globals.statsLogPeriod {
		return
	}

	globals.sampleTicker = time.NewTicker(sampleInterval)
	globals.sampleChan = globals.sampleTicker.C
	globals.logTicker = time.NewTicker(globals.statsLogPeriod)
	globals.logChan = globals.logTicker.C

	globals.stopChan = make(chan struct{})
	globals.doneChan = make(chan struct{})

	go statsLogger(globals.stopChan, globals.doneChan)
}

func stopStatsLogger() {
	if nil == globals.logTicker {
		return
	}

	globals.stopChan <- struct{}{}
	<-globals.doneChan

	globals.sampleTicker.Stop()
	globals.logTicker.Stop()
	globals.sampleTicker = nil
	globals.logTicker = nil
}

func (dummy *globalsStruct) Up(confMap conf.ConfMap) (err error) {
	globals.statsLogPeriod = parseConfMap(confMap)

	logger.Infof("statslogger.Up(): Period %v", globals.statsLogPeriod)

	startStatsLogger()

	return nil
}

func (dummy *globalsStruct) ServeVolume(confMap conf.ConfMap, volumeName string) (err error) {
	return nil
}

func (dummy *globalsStruct) UnserveVolume(confMap conf.ConfMap, volumeName string) (err error) {
	return nil
}

func (dummy *globalsStruct) SignaledStart(confMap conf.ConfMap) (err error) {
	return nil
}

// SignaledFinish restarts the logger if StatsLogger.Period changed.
func (dummy *globalsStruct) SignaledFinish(confMap conf.ConfMap) (err error) {
	oldLogPeriod := globals.statsLogPeriod
	newLogPeriod := parseConfMap(confMap)

	if newLogPeriod == oldLogPeriod {
		return nil
	}

	logger.Infof("statslogger log period changing from %v to %v", oldLogPeriod, newLogPeriod)

	stopStatsLogger()
	globals.statsLogPeriod = newLogPeriod
	startStatsLogger()

	return nil
}

func (dummy *globalsStruct) Down(confMap conf.ConfMap) (err error) {
	logger.Infof("statslogger.Down() called")

	stopStatsLogger()

	return nil
}

// statsLogger samples the cache's entry counts every sampleChan tick and logs
// a batch of statistics every logChan tick. A final batch is logged on stop.
//
func statsLogger(stopChan chan struct{}, doneChan chan struct{}) {
	var (
		liveEntries    SimpleStats
		pendingEntries SimpleStats
		oldStats       namecache.Stats
		newStats       namecache.Stats
		oldMemStats    runtime.MemStats
		newMemStats    runtime.MemStats
	)

	sample := func() {
		cache := namecache.Default()
		if nil == cache {
			return
		}
		stats := cache.Stats()
		liveEntries.Sample(stats.LiveEntries)
		pendingEntries.Sample(stats.PendingEntries)
	}

	if cache := namecache.Default(); nil != cache {
		oldStats = cache.Stats()
	}

	// memstats "stops the world"
	runtime.ReadMemStats(&oldMemStats)

	logStats("total", nil, nil, &oldMemStats, &oldStats)
	globals.logsWritten.Add(1)

	for stopRequest := false; !stopRequest; {
		select {
		case <-stopChan:
			stopRequest = true
		case <-globals.sampleChan:
			sample()
			continue
		case <-globals.logChan:
		}

		cache := namecache.Default()
		if nil == cache {
			continue
		}

		sample()
		newStats = cache.Stats()
		runtime.ReadMemStats(&newMemStats)

		logStats("total", &liveEntries, &pendingEntries, &newMemStats, &newStats)

		deltaMemStats := memStatsDelta(&newMemStats, &oldMemStats)
		deltaStats := statsDelta(&newStats, &oldStats)
		logStats("delta", nil, nil, &deltaMemStats, &deltaStats)

		globals.logsWritten.Add(1)

		oldMemStats = newMemStats
		oldStats = newStats

		liveEntries.Clear()
		pendingEntries.Clear()
	}

	doneChan <- struct{}{}
}

// statsDelta returns the counters of newStats less those of oldStats. Gauges
// (entry counts, limits) are taken from newStats.
//
func statsDelta(newStats *namecache.Stats, oldStats *namecache.Stats) (delta namecache.Stats) {
	delta = *newStats

	delta.GoodHits -= oldStats.GoodHits
	delta.NegHits -= oldStats.NegHits
	delta.BadHits -= oldStats.BadHits
	delta.FalseHits -= oldStats.FalseHits
	delta.Misses -= oldStats.Misses
	delta.LongNames -= oldStats.LongNames
	delta.Pass2 -= oldStats.Pass2
	delta.TwoPasses -= oldStats.TwoPasses
	delta.Enters -= oldStats.Enters
	delta.EnterDeclined -= oldStats.EnterDeclined
	delta.Evictions -= oldStats.Evictions
	delta.Invalidations -= oldStats.Invalidations
	delta.Reclaimed -= oldStats.Reclaimed
	delta.ReverseHits -= oldStats.ReverseHits
	delta.ReverseMisses -= oldStats.ReverseMisses

	return
}

func memStatsDelta(newMemStats *runtime.MemStats, oldMemStats *runtime.MemStats) (delta runtime.MemStats) {
	delta.Sys = newMemStats.Sys - oldMemStats.Sys
	delta.TotalAlloc = newMemStats.TotalAlloc - oldMemStats.TotalAlloc
	delta.HeapInuse = newMemStats.HeapInuse - oldMemStats.HeapInuse
	delta.HeapIdle = newMemStats.HeapIdle - oldMemStats.HeapIdle
	delta.HeapReleased = newMemStats.HeapReleased - oldMemStats.HeapReleased
	delta.NumGC = newMemStats.NumGC - oldMemStats.NumGC
	delta.PauseTotalNs = newMemStats.PauseTotalNs - oldMemStats.PauseTotalNs
	delta.GCCPUFraction = newMemStats.GCCPUFraction - oldMemStats.GCCPUFraction

	return
}

// logStats writes statistics to the log in a semi-human readable format.
//
// statsType is "total" or "delta" indicating whether stats and memStats are
// absolute or relative to the previous log. liveEntries and pendingEntries
// may be nil.
//
func logStats(statsType string, liveEntries *SimpleStats, pendingEntries *SimpleStats, memStats *runtime.MemStats, stats *namecache.Stats) {
	if (nil != liveEntries) && (nil != pendingEntries) {
		logger.Infof("NameCache Entries: Live min=%d mean=%d max=%d  Pending min=%d mean=%d max=%d",
			liveEntries.Min(), liveEntries.Mean(), liveEntries.Max(),
			pendingEntries.Min(), pendingEntries.Mean(), pendingEntries.Max())
	}

	logger.Infof("Memory in Kibyte (%s): Sys=%d HeapInuse=%d HeapIdle=%d HeapReleased=%d Cumulative TotalAlloc=%d",
		statsType,
		int64(memStats.Sys)/1024, int64(memStats.HeapInuse)/1024, int64(memStats.HeapIdle)/1024,
		int64(memStats.HeapReleased)/1024, int64(memStats.TotalAlloc)/1024)
	logger.Infof("GC Stats (%s): NumGC=%d  PauseTotalMsec=%d  GC_CPU=%4.2f%%",
		statsType, memStats.NumGC, memStats.PauseTotalNs/1000000, memStats.GCCPUFraction*100)

	logger.Infof("NameCache Lookups (%s): GoodHits=%d NegHits=%d BadHits=%d FalseHits=%d Misses=%d LongNames=%d",
		statsType, stats.GoodHits, stats.NegHits, stats.BadHits, stats.FalseHits, stats.Misses, stats.LongNames)
	logger.Infof("NameCache Updates (%s): Enters=%d EnterDeclined=%d Pass2=%d TwoPasses=%d Invalidations=%d Evictions=%d Reclaimed=%d",
		statsType, stats.Enters, stats.EnterDeclined, stats.Pass2, stats.TwoPasses,
		stats.Invalidations, stats.Evictions, stats.Reclaimed)
	logger.Infof("NameCache Reverse (%s): Hits=%d Misses=%d  Entries Live=%d Allocated=%d Max=%d",
		statsType, stats.ReverseHits, stats.ReverseMisses, stats.LiveEntries, stats.AllocatedEntries, stats.MaxEntries)
}
