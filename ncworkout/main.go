// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Program ncworkout drives concurrent path resolution and name space changes
// through package fs and reports operation rates and name cache statistics.
//
// Usage:
//
//     ncworkout [flags] [conf-file] [section.option=value]*
//
// conf-file is an ini file, or a HuJSON file if it ends in ".json".
//
package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/namecache/blunder"
	"github.com/NVIDIA/namecache/conf"
	"github.com/NVIDIA/namecache/fs"
	"github.com/NVIDIA/namecache/namecache"
	_ "github.com/NVIDIA/namecache/statslogger"
	"github.com/NVIDIA/namecache/transitions"
	"github.com/NVIDIA/namecache/utils"
)

const (
	dirNamePrefix  = "ncw_dir_"
	fileNamePrefix = "ncw_file_"
	tempNamePrefix = "ncw_temp_"

	defaultVolumeName = "NCWorkout"
)

type workoutOptionsStruct struct {
	threads    uint64
	dirs       uint64
	files      uint64 // per directory
	ops        uint64 // total across all threads
	maxEntries uint64 // 0 means take NameCache.MaxEntries from the conf
	volumeName string
	dumpConf   string
	seed       uint64
}

type opKind int

const (
	opResolve opKind = iota
	opResolveMissing
	opCreateUnlink
	opRename
	opPathOf
	opKinds
)

var opKindNames = [opKinds]string{"resolve", "resolve-missing", "create+unlink", "rename", "path-of"}

type threadResultStruct struct {
	counts [opKinds]uint64
}

func dirPath(dirIndex uint64) string {
	return fmt.Sprintf("%s%04d", dirNamePrefix, dirIndex)
}

func filePath(dirIndex uint64, fileIndex uint64) string {
	return fmt.Sprintf("%s/%s%05d", dirPath(dirIndex), fileNamePrefix, fileIndex)
}

func main() {
	err := newRootCmd(os.Stdout).Execute()
	if nil != err {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) (rootCmd *cobra.Command) {
	var (
		flags   *pflag.FlagSet
		options workoutOptionsStruct
	)

	rootCmd = &cobra.Command{
		Use:          "ncworkout [conf-file] [section.option=value]*",
		Short:        "Exercise the name cache through concurrent path resolution",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			confMap, err := buildConfMap(args, &options)
			if nil != err {
				return
			}
			return runWorkout(out, confMap, &options)
		},
	}

	flags = rootCmd.Flags()
	flags.Uint64VarP(&options.threads, "threads", "t", uint64(runtime.GOMAXPROCS(0)), "number of concurrent workers")
	flags.Uint64VarP(&options.dirs, "dirs", "d", 16, "number of directories populated before the run")
	flags.Uint64VarP(&options.files, "files", "f", 64, "number of files in each directory")
	flags.Uint64VarP(&options.ops, "ops", "o", 100000, "number of measured operations")
	flags.Uint64Var(&options.maxEntries, "max-entries", 0, "override NameCache.MaxEntries (0 keeps the conf value)")
	flags.StringVar(&options.volumeName, "volume", defaultVolumeName, "volume served when the conf lists none")
	flags.StringVar(&options.dumpConf, "dump-conf", "", "write the effective conf to this file")
	flags.Uint64Var(&options.seed, "seed", 1, "seed for the operation mix")

	return
}

// buildConfMap assembles the conf from an optional file plus overrides, then
// fills in what the workout needs if the conf does not supply it.
//
func buildConfMap(args []string, options *workoutOptionsStruct) (confMap conf.ConfMap, err error) {
	if (0 == options.threads) || (0 == options.dirs) || (0 == options.files) {
		err = blunder.NewError(blunder.InvalidArgError, "--threads, --dirs and --files must be positive")
		return
	}

	confMap = conf.MakeConfMap()

	if (0 < len(args)) && !strings.Contains(args[0], "=") {
		if strings.HasSuffix(args[0], ".json") {
			err = confMap.UpdateFromHuJSONFile(args[0])
		} else {
			err = confMap.UpdateFromFile(args[0])
		}
		if nil != err {
			return
		}
		args = args[1:]
	}

	err = confMap.UpdateFromStrings(args)
	if nil != err {
		return
	}

	if _, err = confMap.FetchOptionValueStringSlice("FSGlobals", "VolumeList"); nil != err {
		err = confMap.UpdateFromStrings([]string{
			"FSGlobals.VolumeList=" + options.volumeName,
			"Volume:" + options.volumeName + ".MountID=1",
		})
		if nil != err {
			return
		}
	}

	if 0 != options.maxEntries {
		err = confMap.UpdateFromString(fmt.Sprintf("NameCache.MaxEntries=%d", options.maxEntries))
		if nil != err {
			return
		}
	}

	if "" != options.dumpConf {
		err = confMap.DumpConfMapToFile(options.dumpConf, 0644)
	}

	return
}

func runWorkout(out io.Writer, confMap conf.ConfMap, options *workoutOptionsStruct) (err error) {
	var (
		mountHandle fs.MountHandle
		volumeList  []string
	)

	err = transitions.Up(confMap)
	if nil != err {
		return
	}
	defer func() {
		downErr := transitions.Down(confMap)
		if nil == err {
			err = downErr
		}
	}()

	volumeList, err = confMap.FetchOptionValueStringSlice("FSGlobals", "VolumeList")
	if nil != err {
		return
	}
	if 0 == len(volumeList) {
		err = blunder.NewError(blunder.BadConfigError, "FSGlobals.VolumeList is empty")
		return
	}

	mountHandle, err = fs.FetchMountHandle(volumeList[0])
	if nil != err {
		return
	}

	populateStopwatch := utils.NewStopwatch()
	err = populate(mountHandle, options)
	if nil != err {
		return
	}
	populateStopwatch.Stop()

	fmt.Fprintf(out, "populated %d dirs x %d files in %s\n", options.dirs, options.files, populateStopwatch.ElapsedString())

	results := make([]threadResultStruct, options.threads)

	var group errgroup.Group

	measureStopwatch := utils.NewStopwatch()
	for threadIndex := uint64(0); threadIndex < options.threads; threadIndex++ {
		opsThisThread := options.ops / options.threads
		if threadIndex < options.ops%options.threads {
			opsThisThread++
		}
		group.Go(func() error {
			return workout(mountHandle, options, threadIndex, opsThisThread, &results[threadIndex])
		})
	}
	err = group.Wait()
	if nil != err {
		return
	}
	elapsed := measureStopwatch.Stop()

	report(out, results, elapsed.Seconds())

	fmt.Fprintf(out, "\n%s", mountHandle.Cache().SprintStats())

	stats := mountHandle.Cache().Stats()
	fmt.Fprintf(out, "live %d pending %d allocated %d max %d\n",
		stats.LiveEntries, stats.PendingEntries, stats.AllocatedEntries, stats.MaxEntries)

	return
}

func populate(mountHandle fs.MountHandle, options *workoutOptionsStruct) (err error) {
	var group errgroup.Group

	group.SetLimit(int(options.threads))

	for dirIndex := uint64(0); dirIndex < options.dirs; dirIndex++ {
		group.Go(func() error {
			dir, err := mountHandle.Mkdir(dirPath(dirIndex))
			if nil != err {
				return err
			}
			dir.Release()

			for fileIndex := uint64(0); fileIndex < options.files; fileIndex++ {
				file, err := mountHandle.Create(filePath(dirIndex, fileIndex))
				if nil != err {
					return err
				}
				file.Release()
			}

			return nil
		})
	}

	err = group.Wait()

	return
}

// workout performs ops operations. Each thread creates and renames only its
// own temporary names so every operation's outcome is known in advance.
//
func workout(mountHandle fs.MountHandle, options *workoutOptionsStruct, threadIndex uint64, ops uint64, result *threadResultStruct) (err error) {
	rng := rand.New(rand.NewPCG(options.seed, threadIndex))

	tempPath := fmt.Sprintf("%s/%s%d", dirPath(threadIndex%options.dirs), tempNamePrefix, threadIndex)

	for op := uint64(0); op < ops; op++ {
		dirIndex := rng.Uint64N(options.dirs)
		fileIndex := rng.Uint64N(options.files)

		roll := rng.IntN(100)

		switch {
		case roll < 70:
			err = resolveExisting(mountHandle, filePath(dirIndex, fileIndex))
			result.counts[opResolve]++
		case roll < 80:
			err = resolveMissing(mountHandle, filePath(dirIndex, options.files+fileIndex))
			result.counts[opResolveMissing]++
		case roll < 90:
			err = createUnlink(mountHandle, tempPath)
			result.counts[opCreateUnlink]++
		case roll < 95:
			err = renameRoundTrip(mountHandle, filePath(dirIndex, fileIndex), tempPath)
			result.counts[opRename]++
		default:
			err = pathOf(mountHandle, filePath(dirIndex, fileIndex))
			result.counts[opPathOf]++
		}

		if nil != err {
			return
		}
	}

	return
}

func resolveExisting(mountHandle fs.MountHandle, path string) (err error) {
	target, err := mountHandle.ResolvePath(path, namecache.LookupOp)
	if nil != err {
		// another thread may have it renamed away for the moment
		if blunder.Is(err, blunder.NotFoundError) {
			err = nil
		}
		return
	}
	target.Release()
	return
}

func resolveMissing(mountHandle fs.MountHandle, path string) (err error) {
	target, err := mountHandle.ResolvePath(path, namecache.LookupOp)
	if nil == err {
		target.Release()
		err = fmt.Errorf("%s unexpectedly exists", path)
		return
	}
	if blunder.Is(err, blunder.NotFoundError) {
		err = nil
	}
	return
}

func createUnlink(mountHandle fs.MountHandle, tempPath string) (err error) {
	file, err := mountHandle.Create(tempPath)
	if nil != err {
		return
	}
	file.Release()
	err = mountHandle.Unlink(tempPath)
	return
}

// renameRoundTrip moves path to tempPath and back.
func renameRoundTrip(mountHandle fs.MountHandle, path string, tempPath string) (err error) {
	err = mountHandle.Rename(path, tempPath)
	if nil != err {
		if blunder.Is(err, blunder.NotFoundError) {
			err = nil
		}
		return
	}
	err = mountHandle.Rename(tempPath, path)
	return
}

func pathOf(mountHandle fs.MountHandle, path string) (err error) {
	target, err := mountHandle.ResolvePath(path, namecache.LookupOp)
	if nil != err {
		if blunder.Is(err, blunder.NotFoundError) {
			err = nil
		}
		return
	}
	defer target.Release()

	_, err = mountHandle.PathOf(target)
	if blunder.Is(err, blunder.StaleError) {
		err = nil
	}

	return
}

func report(out io.Writer, results []threadResultStruct, seconds float64) {
	totalOps := lo.SumBy(results, func(result threadResultStruct) uint64 {
		return lo.Sum(result.counts[:])
	})

	fmt.Fprintf(out, "%d ops in %.3fs across %d threads\n", totalOps, seconds, len(results))

	for kind := opKind(0); kind < opKinds; kind++ {
		count := lo.SumBy(results, func(result threadResultStruct) uint64 {
			return result.counts[kind]
		})
		rate := float64(0)
		if 0 < seconds {
			rate = float64(count) / seconds
		}
		fmt.Fprintf(out, "  %-16s %10d %12.1f ops/s\n", opKindNames[kind], count, rate)
	}
}
