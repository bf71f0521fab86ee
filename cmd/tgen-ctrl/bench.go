package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

func init() {
	var (
		benchProfile  string
		benchTests    cli.StringSlice
		benchSizes    cli.IntSlice
		trialDuration time.Duration
	)
	defineCommand(&cli.Command{
		Category: "benchmark",
		Name:     "start-benchmark",
		Usage:    "Start an RFC 2544 benchmark sweep",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "profile `name` describing the device-under-test path",
				Destination: &benchProfile,
				Required:    true,
			},
			&cli.StringSliceFlag{
				Name:        "test",
				Usage:       "`test` to run: throughput, latency, frame-loss, back-to-back (repeatable; default all)",
				Destination: &benchTests,
			},
			&cli.IntSliceFlag{
				Name:        "frame-size",
				Usage:       "frame `size` in octets (repeatable; default RFC 2544 standard sizes)",
				Destination: &benchSizes,
			},
			&cli.DurationFlag{
				Name:        "trial-duration",
				Usage:       "per-trial `duration`",
				Destination: &trialDuration,
			},
		},
		Action: func(c *cli.Context) error {
			body := map[string]any{"profile": benchProfile}
			if tests := benchTests.Value(); len(tests) > 0 {
				body["tests"] = tests
			}
			if sizes := benchSizes.Value(); len(sizes) > 0 {
				body["frameSizes"] = sizes
			}
			if trialDuration > 0 {
				body["trialDuration"] = trialDuration.Milliseconds()
			}
			return clientDoPrint(c.Context, "POST", "api/rfc2544/start", body, "")
		},
	})

	var resultsProfile string
	defineCommand(&cli.Command{
		Category: "benchmark",
		Name:     "get-benchmark",
		Usage:    "Show RFC 2544 benchmark results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "profile `name`",
				Destination: &resultsProfile,
				Required:    true,
			},
		},
		Action: func(c *cli.Context) error {
			return clientDoPrint(c.Context, "GET", "api/rfc2544/results/"+resultsProfile, nil, "")
		},
	})
}
