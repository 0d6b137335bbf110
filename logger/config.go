// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/NVIDIA/namecache/conf"
)

const (
	defaultLogFileMaxSizeMB  = 100
	defaultLogFileMaxBackups = 4
)

// multiWriter fans each log entry out to every added writer.
type multiWriter struct {
	sync.Mutex
	writers []io.Writer
}

func (mw *multiWriter) addWriter(writer io.Writer) {
	mw.Lock()
	mw.writers = append(mw.writers, writer)
	mw.Unlock()
}

func (mw *multiWriter) Write(p []byte) (n int, err error) {
	mw.Lock()
	defer mw.Unlock()

	for _, writer := range mw.writers {
		n, err = writer.Write(p)
		if nil != err {
			return
		}
	}

	n = len(p)
	return
}

var (
	logFile     *lumberjack.Logger
	logOutput   *multiWriter
	logUpCalled bool
)

func init() {
	logOutput = &multiWriter{}
	logOutput.addWriter(os.Stderr)
	log.SetOutput(logOutput)
	log.SetFormatter(&log.TextFormatter{DisableColors: true})
	log.SetLevel(log.DebugLevel)
}

// Up configures logging from the [Logging] section of confMap:
//
//   LogFilePath       - if set, logs go to this file, rotated by lumberjack
//   LogFileMaxSizeMB  - size at which the log file is rotated
//   LogFileMaxBackups - number of rotated log files retained
//   LogToConsole      - also log to stderr when LogFilePath is set
//   TraceLevelLogging - packages for which Tracef() is emitted
//   DebugLevelLogging - packages for which DebugfID() is emitted
//
func Up(confMap conf.ConfMap) (err error) {
	var (
		logFileMaxBackups int
		logFileMaxSizeMB  int
		logToConsole      bool
	)

	logFilePath, _ := confMap.FetchOptionValueString("Logging", "LogFilePath")

	output := &multiWriter{}

	if "" != logFilePath {
		logFileMaxSizeMB = defaultLogFileMaxSizeMB
		maxSizeMB, fetchErr := confMap.FetchOptionValueUint32("Logging", "LogFileMaxSizeMB")
		if nil == fetchErr {
			logFileMaxSizeMB = int(maxSizeMB)
		}

		logFileMaxBackups = defaultLogFileMaxBackups
		maxBackups, fetchErr := confMap.FetchOptionValueUint32("Logging", "LogFileMaxBackups")
		if nil == fetchErr {
			logFileMaxBackups = int(maxBackups)
		}

		logFile = &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
		}

		output.addWriter(logFile)

		logToConsole, err = confMap.FetchOptionValueBool("Logging", "LogToConsole")
		if nil != err {
			logToConsole = false
			err = nil
		}
		if logToConsole {
			output.addWriter(os.Stderr)
		}
	} else {
		output.addWriter(os.Stderr)
	}

	logOutput = output
	log.SetOutput(logOutput)

	// We always enable max logging in logrus and decide in this package whether to log
	log.SetLevel(log.DebugLevel)

	resetLoggingLevels()

	traceConfSlice, _ := confMap.FetchOptionValueStringSlice("Logging", "TraceLevelLogging")
	setTraceLoggingLevel(traceConfSlice)

	debugConfSlice, _ := confMap.FetchOptionValueStringSlice("Logging", "DebugLevelLogging")
	setDebugLoggingLevel(debugConfSlice)

	logUpCalled = true

	return
}

func SignaledStart(confMap conf.ConfMap) (err error) {
	return
}

// SignaledFinish re-reads the trace and debug settings.
func SignaledFinish(confMap conf.ConfMap) (err error) {
	resetLoggingLevels()

	traceConfSlice, _ := confMap.FetchOptionValueStringSlice("Logging", "TraceLevelLogging")
	setTraceLoggingLevel(traceConfSlice)

	debugConfSlice, _ := confMap.FetchOptionValueStringSlice("Logging", "DebugLevelLogging")
	setDebugLoggingLevel(debugConfSlice)

	return
}

func Down(confMap conf.ConfMap) (err error) {
	if nil != logFile {
		err = logFile.Close()
		logFile = nil
	}

	logOutput = &multiWriter{}
	logOutput.addWriter(os.Stderr)
	log.SetOutput(logOutput)

	logUpCalled = false

	return
}

func addLogTarget(writer io.Writer) {
	if !logUpCalled {
		Fatalf("logger.AddLogTarget() called before logger.Up()")
	}
	logOutput.addWriter(writer)
}
