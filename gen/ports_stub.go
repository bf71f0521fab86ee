//go:build !linux

package gen

import (
	"context"
	"errors"

	"github.com/vepnet/tgen/neigh"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/rfc2544"
)

var errUnsupported = errors.New("port discovery requires linux")

func attachPorts() error {
	return errUnsupported
}

func newScanner() neigh.Scanner {
	return stubScanner{}
}

type stubScanner struct{}

func (stubScanner) Scan(context.Context, string) (*port.NeighborCache, error) {
	return nil, errUnsupported
}

func captureOpener() rfc2544.CaptureOpener {
	return nil
}

func watchLinks(context.Context) error {
	return nil
}
