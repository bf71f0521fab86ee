//go:build linux

package neigh

import (
	"context"
	"net/netip"
	"os/exec"
	"time"

	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/port/portenum"
	"github.com/vishvananda/netlink"
	"go.uber.org/zap"
)

// LLDPTimeout bounds one lldpcli invocation.
const LLDPTimeout = 2 * time.Second

// HostScanner reads the kernel neighbor table via netlink and the host LLDP
// daemon via lldpcli. A missing or failing lldpcli leaves the LLDP table
// empty; ARP and link state are still reported.
type HostScanner struct{}

var _ Scanner = HostScanner{}

// Scan implements Scanner interface.
func (HostScanner) Scan(ctx context.Context, portName string) (*port.NeighborCache, error) {
	link, e := netlink.LinkByName(portName)
	if e != nil {
		return nil, e
	}

	nc := &port.NeighborCache{Link: portenum.LinkState(portName)}

	neighs, e := netlink.NeighList(link.Attrs().Index, netlink.FAMILY_ALL)
	if e != nil {
		return nil, e
	}
	for _, n := range neighs {
		if len(n.HardwareAddr) == 0 || n.State&(netlink.NUD_FAILED|netlink.NUD_INCOMPLETE) != 0 {
			continue
		}
		ip, ok := netip.AddrFromSlice(n.IP)
		if !ok {
			continue
		}
		nc.ARP = append(nc.ARP, port.ARPEntry{
			IP:    ip.Unmap(),
			MAC:   n.HardwareAddr.String(),
			State: nudState(n.State),
		})
	}

	nc.LLDP = lldpNeighbors(ctx, portName)
	return nc, nil
}

// lldpNeighbors shells out to lldpcli; failures degrade to an empty table.
func lldpNeighbors(ctx context.Context, portName string) []port.LLDPEntry {
	ctx, cancel := context.WithTimeout(ctx, LLDPTimeout)
	defer cancel()
	out, e := exec.CommandContext(ctx, "lldpcli", "-f", "json0", "show", "neighbors", "ports", portName).Output()
	if e != nil {
		logger.Debug("lldpcli unavailable", zap.String("port", portName), zap.Error(e))
		return nil
	}
	entries, e := parseLLDP(out, portName)
	if e != nil {
		logger.Warn("lldpcli output unparseable", zap.String("port", portName), zap.Error(e))
		return nil
	}
	return entries
}

func nudState(s int) string {
	switch {
	case s&netlink.NUD_PERMANENT != 0:
		return "PERMANENT"
	case s&netlink.NUD_REACHABLE != 0:
		return "REACHABLE"
	case s&netlink.NUD_STALE != 0:
		return "STALE"
	case s&netlink.NUD_DELAY != 0:
		return "DELAY"
	case s&netlink.NUD_PROBE != 0:
		return "PROBE"
	case s&netlink.NUD_NOARP != 0:
		return "NOARP"
	}
	return "NONE"
}
