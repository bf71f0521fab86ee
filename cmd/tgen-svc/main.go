// Command tgen-svc runs the tgen traffic generator service.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/core/nnduration"
	"github.com/vepnet/tgen/core/version"
	"github.com/vepnet/tgen/gen"
	"github.com/vepnet/tgen/mgmt"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var logger = logging.New("main")

var (
	flagListen string
	flagConfig string
)

var app = &cli.App{
	Name:    "tgen-svc",
	Usage:   "Run the tgen traffic generator service.",
	Version: version.V.String(),
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "listen",
			Value:       "127.0.0.1:3030",
			Usage:       "control surface `addr`",
			Destination: &flagListen,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "persisted configuration `file`",
			Destination: &flagConfig,
		},
		&cli.DurationFlag{
			Name:  "neigh-interval",
			Usage: "neighbor scan `interval`",
		},
	},
	Action: func(c *cli.Context) error {
		ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
		defer cancel()

		cfg := gen.Config{ConfigFile: flagConfig}
		if d := c.Duration("neigh-interval"); d > 0 {
			cfg.Neigh.Interval = nnduration.Milliseconds(d.Milliseconds())
		}

		g, e := gen.New(cfg)
		if e != nil {
			return e
		}
		if e := g.Run(ctx); e != nil {
			logger.Warn("link watch unavailable", zap.Error(e))
		}

		srv := mgmt.NewServer(g)
		go func() {
			<-ctx.Done()
			logger.Info("shutting down")
			srv.Close()
		}()
		return multierr.Append(srv.ListenAndServe(flagListen), g.Close())
	},
}

func main() {
	if e := app.Run(os.Args); e != nil {
		logger.Fatal("service failed", zap.Error(e))
	}
}
