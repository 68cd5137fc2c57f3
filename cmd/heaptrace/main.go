package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/docopt/docopt-go"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/brkheap/heap"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/memutils/sbrk"
	"golang.org/x/exp/slog"
)

const usage = `Heap Trace.
Replays an allocation trace against a brkheap heap, checking the contents of every live allocation.
Usage:
  heaptrace -h | --help
  heaptrace [--alignment=BYTES] [--growth=BYTES] [--limit=BYTES] [--capacity=BYTES]
            [--mmap] [--track] [--validate] [--release] [--map] [--verbose] <trace>
Options:
  -h --help            Show this screen.
  --alignment=BYTES    Alignment unit of every block [default: 16].
  --growth=BYTES       Round every growth request up to a multiple of this power of two, 0 for exact [default: 0].
  --limit=BYTES        Maximum heap size, 0 for no limit [default: 0].
  --capacity=BYTES     Address space reserved for the heap [default: 67108864].
  --mmap               Reserve the address space with an anonymous mapping instead of a Go slice.
  --track              Track live allocations so that invalid releases are caught.
  --validate           Validate the whole heap after every operation.
  --release            Release allocations that are still live at the end of the trace.
  --map                Print the heap's detailed JSON map when the trace completes.
  --verbose            Log heap growth and relocations.
Trace lines are "a <id> <size>", "z <id> <count> <size>", "r <id> <size>" or "f <id>". Use - to read stdin.`

type config struct {
	Alignment string
	Growth    string
	Limit     string
	Capacity  string
	Mmap      bool
	Track     bool
	Validate  bool
	Release   bool
	Map       bool
	Verbose   bool
	Trace     string `docopt:"<trace>"`
}

func (c config) createOptions() (heap.CreateOptions, int, error) {
	var options heap.CreateOptions
	numbers := []struct {
		name  string
		value string
		out   *int
	}{
		{"--growth", c.Growth, &options.GrowthIncrement},
		{"--limit", c.Limit, &options.HeapSizeLimit},
	}

	for _, number := range numbers {
		value, err := strconv.Atoi(number.value)
		if err != nil {
			return options, 0, errors.Wrapf(err, "%s", number.name)
		}
		*number.out = value
	}

	alignment, err := strconv.ParseUint(c.Alignment, 10, 32)
	if err != nil {
		return options, 0, errors.Wrap(err, "--alignment")
	}
	options.Alignment = uint(alignment)

	capacity, err := strconv.Atoi(c.Capacity)
	if err != nil {
		return options, 0, errors.Wrap(err, "--capacity")
	}

	if c.Track {
		options.Flags |= heap.HeapCreateTrackAllocations
	}

	return options, capacity, nil
}

func main() {
	opts, _ := docopt.ParseDoc(usage)
	var cfg config
	err := opts.Bind(&cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: ", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	err = run(logger, cfg, os.Stdout)
	if err != nil {
		logger.Error("trace failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfg config, out io.Writer) error {
	options, capacity, err := cfg.createOptions()
	if err != nil {
		return err
	}

	var input io.Reader = os.Stdin
	if cfg.Trace != "-" {
		file, err := os.Open(cfg.Trace)
		if err != nil {
			return errors.Wrap(err, "could not open trace")
		}
		defer file.Close()
		input = file
	}

	ops, err := ParseTrace(input)
	if err != nil {
		return err
	}

	var env sbrk.Environment
	if cfg.Mmap {
		mapping, err := sbrk.NewMmap(capacity)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := mapping.Close(); closeErr != nil {
				logger.Error("could not unmap the heap", slog.Any("error", closeErr))
			}
		}()
		env = mapping
	} else {
		env = sbrk.NewReserved(capacity)
	}

	h, err := heap.New(logger, env, options)
	if err != nil {
		return err
	}

	return replay(logger, h, cfg, ops, out)
}

func replay(logger *slog.Logger, h *heap.Heap, cfg config, ops []Op, out io.Writer) error {
	replayer := NewReplayer(logger, h, cfg.Validate)
	err := replayer.Run(ops)
	if err != nil {
		return err
	}

	if cfg.Release {
		err = replayer.ReleaseAll()
		if err != nil {
			return err
		}
	}

	err = h.Validate()
	if err != nil {
		return errors.Wrap(err, "heap is inconsistent after the trace")
	}

	err = h.CheckCorruption()
	if err != nil {
		return err
	}

	var stats memutils.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)
	heapStats := h.Stats()

	logger.Info("trace complete",
		slog.Int("operations", replayer.Ops()),
		slog.Int("live", replayer.Live()),
		slog.Int("heapBytes", stats.BlockBytes),
		slog.Int("allocatedBytes", stats.AllocationBytes),
		slog.Int("unusedRanges", stats.UnusedRangeCount),
		slog.Int("slack", h.Slack()),
		slog.Int("growCalls", heapStats.GrowCalls),
		slog.Int("relocations", heapStats.ResizeRelocations),
	)

	if cfg.Map {
		writer := jwriter.NewWriter()
		h.PrintDetailedMap(&writer)
		if writer.Error() != nil {
			return writer.Error()
		}

		_, err = fmt.Fprintln(out, string(writer.Bytes()))
		if err != nil {
			return err
		}
	}

	if replayer.Live() == 0 {
		return h.Destroy()
	}

	return nil
}
