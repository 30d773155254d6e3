package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/luhtfiimanal/crowdlink/internal/api"
)

func newServeCommand() command {
	return command{
		name:        "serve",
		description: "Run the serial link and the HTTP API until interrupted",
		configure: func(fs *flag.FlagSet) {
			fs.String("listen", "", "HTTP listen address (overrides api.listen)")
		},
		run: runServe,
	}
}

func runServe(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}
	addr := ctx.Config.API.Listen
	if v := stringFlag(fs, "listen"); v != "" {
		addr = v
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := newManager(ctx)
	mgr.Start()
	defer mgr.Close()

	srv := api.NewServer(mgr, api.ServerOptions{
		Addr:       addr,
		DataDir:    ctx.Config.Paths.DataDir,
		ResultsDir: ctx.Config.Paths.ResultsDir,
		AckTimeout: ctx.Config.Session.AckTimeout,
		Logger:     ctx.Logger.With().Str("component", "api").Logger(),
	})

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(srv.Serve)
	g.Go(func() error {
		<-gctx.Done()
		ctx.Logger.Info().Msg("shutting down")
		return srv.Stop(context.Background())
	})
	g.Go(func() error {
		// A dead link does not stop the API: status and occupancy report it.
		if err := mgr.WaitReady(gctx); err != nil && gctx.Err() == nil {
			ctx.Logger.Error().Err(err).Msg("serial link unavailable")
			return nil
		}
		if gctx.Err() == nil {
			ctx.Logger.Info().Msg("serial link ready")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func stringFlag(fs *flag.FlagSet, name string) string {
	if f := fs.Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}
