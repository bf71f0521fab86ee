package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"github.com/vepnet/tgen/profile"
)

type profileInfo struct {
	profile.Config
	State    profile.State    `json:"state"`
	Counters profile.Counters `json:"counters"`
	Failure  string           `json:"failure,omitempty"`
}

func defineProfileNameCommand(name, usage, method, pathSuffix string) {
	var profileName string
	defineCommand(&cli.Command{
		Category: "profile",
		Name:     name,
		Usage:    usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "profile `name`",
				Destination: &profileName,
				Required:    true,
			},
		},
		Action: func(c *cli.Context) error {
			return clientDoPrint(c.Context, method, "api/traffic-profiles/"+profileName+pathSuffix, nil, "")
		},
	})
}

func init() {
	defineCommand(&cli.Command{
		Category: "profile",
		Name:     "list-profiles",
		Usage:    "List traffic profiles",
		Action: func(c *cli.Context) error {
			if cmdJSON {
				return clientDoPrint(c.Context, "GET", "api/traffic-profiles", nil, "profiles")
			}
			var body struct {
				Profiles []profileInfo `json:"profiles"`
			}
			if e := client.Do(c.Context, "GET", "api/traffic-profiles", nil, &body); e != nil {
				return e
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Name", "State", "Proto", "Path", "Rate", "FrameSize", "FramesSent"})
			table.SetAutoFormatHeaders(false)
			for _, pr := range body.Profiles {
				state := string(pr.State)
				if pr.Failure != "" {
					state += ": " + pr.Failure
				}
				table.Append([]string{
					pr.Name, state, string(pr.Protocol),
					pr.SrcPort + ">" + pr.DstPort,
					fmt.Sprintf("%g Mbps", pr.BandwidthMbps),
					strconv.Itoa(pr.FrameSize),
					strconv.FormatUint(pr.Counters.FramesSent, 10),
				})
			}
			table.Render()
			return nil
		},
	})

	defineCommand(&cli.Command{
		Category: "profile",
		Name:     "create-profile",
		Usage:    "Create a traffic profile (pass JSON via stdin)",
		Action: func(c *cli.Context) error {
			var cfg profile.Config
			if e := readStdinJSON(&cfg); e != nil {
				return e
			}
			return clientDoPrint(c.Context, "POST", "api/traffic-profiles", cfg, "")
		},
	})

	var updateName string
	defineCommand(&cli.Command{
		Category: "profile",
		Name:     "update-profile",
		Usage:    "Update a traffic profile (pass changed fields as JSON via stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "profile `name`",
				Destination: &updateName,
				Required:    true,
			},
		},
		Action: func(c *cli.Context) error {
			var fields map[string]any
			if e := readStdinJSON(&fields); e != nil {
				return e
			}
			return clientDoPrint(c.Context, "PUT", "api/traffic-profiles/"+updateName, fields, "")
		},
	})

	defineProfileNameCommand("delete-profile", "Delete a traffic profile", "DELETE", "")
	defineProfileNameCommand("enable-profile", "Enable a traffic profile", "POST", "/enable")
	defineProfileNameCommand("disable-profile", "Disable a traffic profile", "POST", "/disable")

	defineCommand(&cli.Command{
		Category: "profile",
		Name:     "start-traffic",
		Usage:    "Enable every idle traffic profile",
		Action: func(c *cli.Context) error {
			return clientDoPrint(c.Context, "POST", "api/traffic/start", nil, "started")
		},
	})
	defineCommand(&cli.Command{
		Category: "profile",
		Name:     "stop-traffic",
		Usage:    "Disable every running traffic profile",
		Action: func(c *cli.Context) error {
			return clientDoPrint(c.Context, "POST", "api/traffic/stop", nil, "")
		},
	})
}
