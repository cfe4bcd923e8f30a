package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/refcount/memory"
	"github.com/vkngwrapper/refcount/memutils/metadata"
	"golang.org/x/exp/slog"
)

func main() {
	var (
		capacity = flag.Int("capacity", 1<<22, "Byte budget of the arena backing every scenario")
		handles  = flag.Int("handles", 10000, "Number of handles created by the bulk scenarios")
		detailed = flag.Bool("detailed", false, "Include a map of every arena range in the final statistics")
		verbose  = flag.Bool("v", false, "Log arena activity at debug level")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr))
	if *verbose {
		logger = slog.New(slog.HandlerOptions{Level: slog.LevelDebug}.NewTextHandler(os.Stderr))
	}

	if err := run(logger, *capacity, *handles, *detailed); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, capacity, handles int, detailed bool) error {
	arena, err := memory.NewArenaResource(logger, capacity, memory.ArenaCreateOptions{
		Flags:    memory.ArenaCreateExternallySynchronized | memory.ArenaCreateValidateOnDestroy,
		Strategy: metadata.AllocationStrategyMinTime,
	})
	if err != nil {
		return err
	}

	counting := memory.NewCountingResource(arena, true)

	for _, s := range scenarios {
		logger.Info("running scenario", slog.String("name", s.name))

		err = s.run(counting, handles)
		if err != nil {
			return errors.Wrapf(err, "scenario %s", s.name)
		}
	}

	stats := counting.Statistics()
	logger.Info("all scenarios passed",
		slog.Int("allocations", stats.Allocations),
		slog.Int("deallocations", stats.Deallocations),
		slog.Int("peakBytes", stats.PeakBytes),
	)

	fmt.Println(arena.BuildStatsString(detailed))

	err = counting.Err()
	if err != nil {
		return err
	}

	return arena.Destroy()
}
