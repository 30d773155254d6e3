package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/luhtfiimanal/crowdlink/preprocess"
)

func newPreprocessCommand() command {
	return command{
		name:        "preprocess",
		description: "Push a raw flow file through the device and save the occupancy table",
		configure: func(fs *flag.FlagSet) {
			fs.Duration("ack-timeout", 0, "Per-line ACK timeout (overrides session.ack_timeout)")
			fs.Duration("ready-timeout", 10*time.Second, "How long to wait for the serial link to come up")
			fs.String("results", "", "Output directory (overrides paths.results_dir)")
		},
		run: runPreprocess,
	}
}

func runPreprocess(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}
	if len(args) != 1 {
		return fmt.Errorf("preprocess expects exactly one input file")
	}

	ackTimeout := ctx.Config.Session.AckTimeout
	if d := durationFlag(fs, "ack-timeout"); d > 0 {
		ackTimeout = d
	}
	resultsDir := ctx.Config.Paths.ResultsDir
	if v := stringFlag(fs, "results"); v != "" {
		resultsDir = v
	}

	mgr := newManager(ctx)
	mgr.Start()
	defer mgr.Close()

	readyCtx, cancel := context.WithTimeout(context.Background(), ctx.Config.Serial.Settle+durationFlag(fs, "ready-timeout"))
	defer cancel()
	if err := mgr.WaitReady(readyCtx); err != nil {
		return fmt.Errorf("serial link: %w", err)
	}

	res, err := preprocess.Run(context.Background(), mgr, args[0], preprocess.Options{
		ResultsDir: resultsDir,
		AckTimeout: ackTimeout,
	})
	if err != nil {
		ctx.Logger.Error().Err(err).Str("input", args[0]).Msg("preprocess failed")
		return err
	}
	ctx.Logger.Info().
		Str("output", res.OutputPath).
		Str("session", res.SessionID).
		Int("session_lines", res.SessionLines).
		Int("rows", res.Rows).
		Msg("occupancy table written")
	fmt.Fprintln(stdout, res.OutputPath)
	return nil
}

func durationFlag(fs *flag.FlagSet, name string) time.Duration {
	f := fs.Lookup(name)
	if f == nil {
		return 0
	}
	if getter, ok := f.Value.(flag.Getter); ok {
		if d, ok := getter.Get().(time.Duration); ok {
			return d
		}
	}
	return 0
}
