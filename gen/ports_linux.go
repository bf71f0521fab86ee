//go:build linux

package gen

import (
	"context"

	"github.com/vepnet/tgen/neigh"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/port/afpacket"
	"github.com/vepnet/tgen/port/portenum"
	"github.com/vepnet/tgen/rfc2544"
	"go.uber.org/zap"
)

// attachPorts enumerates host Ethernet devices and publishes a port with an
// AF_PACKET transmitter for each. A device that cannot be opened (no
// privileges, driver quirks) is skipped with a warning.
func attachPorts() error {
	cfgs, e := portenum.Scan()
	if e != nil {
		return e
	}
	for _, cfg := range cfgs {
		hdl, e := afpacket.New(cfg.Name)
		if e != nil {
			logger.Warn("port skipped", zap.String("port", cfg.Name), zap.Error(e))
			continue
		}
		p, e := port.New(cfg, hdl)
		if e != nil {
			hdl.Close()
			logger.Warn("port skipped", zap.String("port", cfg.Name), zap.Error(e))
			continue
		}
		p.SetUp(portenum.LinkState(cfg.Name).Up)
		port.Put(p)
	}
	return nil
}

func newScanner() neigh.Scanner {
	return neigh.HostScanner{}
}

func captureOpener() rfc2544.CaptureOpener {
	return rfc2544.OpenCapture
}

func watchLinks(ctx context.Context) error {
	return portenum.Watch(ctx)
}
