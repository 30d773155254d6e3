package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func newMonitorCommand() command {
	return command{
		name:        "monitor",
		description: "Print the live occupancy count derived from gesture events",
		configure: func(fs *flag.FlagSet) {
			fs.Duration("interval", time.Second, "Print interval")
			fs.Int("count", 0, "Stop after this many reports (0 = until interrupted)")
		},
		run: runMonitor,
	}
}

func runMonitor(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}
	interval := durationFlag(fs, "interval")
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	limit := intFlag(fs, "count")

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := newManager(ctx)
	mgr.Start()
	defer mgr.Close()

	if err := mgr.WaitReady(sigCtx); err != nil {
		if sigCtx.Err() != nil {
			return nil
		}
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for reported := 0; limit == 0 || reported < limit; reported++ {
		select {
		case <-sigCtx.Done():
			return nil
		case <-ticker.C:
		}
		counts, err := mgr.Occupancy()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Current occupancy: %d (left=%d, right=%d)\n", counts.Present, counts.Left, counts.Right)
	}
	return nil
}

func intFlag(fs *flag.FlagSet, name string) int {
	f := fs.Lookup(name)
	if f == nil {
		return 0
	}
	if getter, ok := f.Value.(flag.Getter); ok {
		if v, ok := getter.Get().(int); ok {
			return v
		}
	}
	return 0
}
