package main

import (
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"github.com/vepnet/tgen/registry"
)

func printStats(st registry.Stats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Profile", "State", "Frames", "Bytes", "LossDrops", "DupEmits", "Overruns"})
	table.SetAutoFormatHeaders(false)

	names := make([]string, 0, len(st.Profiles))
	for name := range st.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ps := st.Profiles[name]
		table.Append([]string{
			name, string(ps.State),
			strconv.FormatUint(ps.Counters.FramesSent, 10),
			strconv.FormatUint(ps.Counters.BytesSent, 10),
			strconv.FormatUint(ps.Counters.LossDrops, 10),
			strconv.FormatUint(ps.Counters.DupEmits, 10),
			strconv.FormatUint(ps.Counters.ShaperOverruns, 10),
		})
	}
	table.Render()
}

func init() {
	var watch time.Duration
	defineCommand(&cli.Command{
		Category: "stats",
		Name:     "get-stats",
		Usage:    "Show traffic statistics",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "watch",
				Aliases:     []string{"w"},
				Usage:       "refresh every `interval` until interrupted",
				Destination: &watch,
			},
		},
		Action: func(c *cli.Context) error {
			for {
				if cmdJSON {
					if e := clientDoPrint(c.Context, "GET", "api/traffic/stats", nil, ""); e != nil {
						return e
					}
				} else {
					var st registry.Stats
					if e := client.Do(c.Context, "GET", "api/traffic/stats", nil, &st); e != nil {
						return e
					}
					printStats(st)
				}
				if watch <= 0 {
					return nil
				}
				select {
				case <-c.Context.Done():
					return nil
				case <-time.After(watch):
				}
			}
		},
	})

	var resetProfile string
	defineCommand(&cli.Command{
		Category: "stats",
		Name:     "reset-stats",
		Usage:    "Reset traffic statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "reset only this profile `name`",
				Destination: &resetProfile,
			},
		},
		Action: func(c *cli.Context) error {
			return clientDoPrint(c.Context, "POST", "api/stats/reset",
				map[string]any{"profile": resetProfile}, "")
		},
	})
}
