//go:build linux

// Package portenum enumerates host Ethernet ports via netlink and ethtool.
package portenum

import (
	"context"
	"net/netip"
	"strings"

	"github.com/safchain/ethtool"
	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/core/macaddr"
	"github.com/vepnet/tgen/port"
	"github.com/vishvananda/netlink"
	"go.uber.org/zap"
)

var logger = logging.New("portenum")

// Scan reads host Ethernet devices and returns port descriptors.
// Loopback, bridge, and virtual devices without a unicast MAC are skipped.
func Scan() (cfgs []port.Config, e error) {
	links, e := netlink.LinkList()
	if e != nil {
		return nil, e
	}

	et, e := ethtool.NewEthtool()
	if e != nil {
		logger.Warn("ethtool unavailable, speed and capability detection disabled", zap.Error(e))
	} else {
		defer et.Close()
	}

	for _, link := range links {
		attrs := link.Attrs()
		if link.Type() != "device" || !macaddr.IsUnicast(attrs.HardwareAddr) {
			continue
		}

		cfg := port.Config{
			Name: attrs.Name,
			MAC:  attrs.HardwareAddr.String(),
			MTU:  attrs.MTU,
			Type: port.TypeCopper,
		}
		fillAddrs(&cfg, link)
		if et != nil {
			fillEthtool(&cfg, et)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

func fillAddrs(cfg *port.Config, link netlink.Link) {
	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		addrs, e := netlink.AddrList(link, family)
		if e != nil {
			continue
		}
		for _, addr := range addrs {
			ip, ok := netip.AddrFromSlice(addr.IP)
			if !ok || ip.IsLinkLocalUnicast() {
				continue
			}
			ones, _ := addr.Mask.Size()
			pfx := netip.PrefixFrom(ip.Unmap(), ones)
			if family == netlink.FAMILY_V4 {
				if !cfg.IPv4.IsValid() {
					cfg.IPv4 = pfx
				}
			} else if !cfg.IPv6.IsValid() {
				cfg.IPv6 = pfx
			}
		}
	}
}

func fillEthtool(cfg *port.Config, et *ethtool.Ethtool) {
	cmd := ethtool.EthtoolCmd{}
	if speed, e := et.CmdGet(&cmd, cfg.Name); e == nil && speed > 0 && speed < 0xFFFFFFFF {
		cfg.SpeedMbps = int(speed)
	}
	switch cmd.Port {
	case 0x03, 0x05: // PORT_FIBRE, PORT_DA
		cfg.Type = port.TypeSFP
	}

	if tsinfo, e := et.GetTimestampingInformation(cfg.Name); e == nil {
		// SOF_TIMESTAMPING_TX_HARDWARE
		cfg.Caps.HWTimestamp = tsinfo.SoTimestamping&(1<<0) != 0
	}

	if driver, e := et.DriverName(cfg.Name); e == nil && strings.Contains(driver, "mlx") {
		cfg.Caps.FastPath = true
	}
}

// LinkState reads the kernel view of a device link.
func LinkState(name string) (st port.LinkState) {
	link, e := netlink.LinkByName(name)
	if e != nil {
		return st
	}
	st.Up = link.Attrs().OperState == netlink.OperUp

	et, e := ethtool.NewEthtool()
	if e != nil {
		return st
	}
	defer et.Close()
	cmd := ethtool.EthtoolCmd{}
	if speed, e := et.CmdGet(&cmd, name); e == nil && speed > 0 && speed < 0xFFFFFFFF {
		st.SpeedMbps = int(speed)
	}
	switch cmd.Duplex {
	case 0:
		st.Duplex = "half"
	case 1:
		st.Duplex = "full"
	}
	return st
}

// Watch subscribes to kernel link updates and flips port availability until ctx is canceled.
func Watch(ctx context.Context) error {
	ch := make(chan netlink.LinkUpdate, 16)
	done := make(chan struct{})
	if e := netlink.LinkSubscribe(ch, done); e != nil {
		return e
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-ch:
				attrs := update.Link.Attrs()
				p := port.Get(attrs.Name)
				if p == nil {
					continue
				}
				p.SetUp(attrs.OperState == netlink.OperUp)
			}
		}
	}()
	return nil
}
