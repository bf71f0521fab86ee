package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"github.com/vepnet/tgen/port"
)

type ifaceInfo struct {
	port.Config
	Up        bool                `json:"up"`
	Counters  port.Counters       `json:"counters"`
	Neighbors *port.NeighborCache `json:"neighbors,omitempty"`
}

func init() {
	defineCommand(&cli.Command{
		Category: "service",
		Name:     "show-status",
		Usage:    "Show service version, capabilities, and traffic state",
		Action: func(c *cli.Context) error {
			return clientDoPrint(c.Context, "GET", "api/status", nil, "")
		},
	})

	defineCommand(&cli.Command{
		Category: "interface",
		Name:     "list-interfaces",
		Usage:    "List network interfaces",
		Action: func(c *cli.Context) error {
			if cmdJSON {
				return clientDoPrint(c.Context, "GET", "api/interfaces", nil, "ports")
			}
			var body struct {
				Ports []ifaceInfo `json:"ports"`
			}
			if e := client.Do(c.Context, "GET", "api/interfaces", nil, &body); e != nil {
				return e
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Name", "MAC", "Link", "Speed", "MTU", "Type", "TxFrames", "TxDropped"})
			table.SetAutoFormatHeaders(false)
			for _, p := range body.Ports {
				table.Append([]string{
					p.Name, p.MAC, upDown(p.Up),
					fmt.Sprintf("%d Mbps", p.SpeedMbps),
					strconv.Itoa(p.MTU), string(p.Type),
					strconv.FormatUint(p.Counters.TxFrames, 10),
					strconv.FormatUint(p.Counters.TxDropped, 10),
				})
			}
			table.Render()
			return nil
		},
	})

	var discoverIfaces cli.StringSlice
	defineCommand(&cli.Command{
		Category: "interface",
		Name:     "discover-neighbors",
		Usage:    "Trigger an on-demand neighbor scan",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "interface",
				Aliases:     []string{"i"},
				Usage:       "limit scan to `interface` (repeatable)",
				Destination: &discoverIfaces,
			},
		},
		Action: func(c *cli.Context) error {
			body := map[string]any{"interfaces": discoverIfaces.Value()}
			return clientDoPrint(c.Context, "POST", "api/neighbors/discover", body, "neighbors")
		},
	})
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
