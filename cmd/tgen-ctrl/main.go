// Command tgen-ctrl controls a running tgen-svc instance.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/vepnet/tgen/core/version"
)

var (
	server  string
	cmdJSON bool
	client  *Client
)

var app = &cli.App{
	Name:    "tgen-ctrl",
	Usage:   "Control tgen service.",
	Version: version.V.String(),
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "server",
			Value:       "http://127.0.0.1:3030/",
			Usage:       "tgen-svc HTTP `uri`",
			Destination: &server,
		},
		&cli.BoolFlag{
			Name:        "json",
			Aliases:     []string{"j"},
			Usage:       "print JSON lines instead of tables",
			Destination: &cmdJSON,
		},
	},
	Before: func(c *cli.Context) (e error) {
		client, e = NewClient(server)
		return e
	},
}

func defineCommand(command *cli.Command) {
	app.Commands = append(app.Commands, command)
}

func main() {
	if e := app.Run(os.Args); e != nil {
		fmt.Fprintln(os.Stderr, e)
		os.Exit(1)
	}
}
