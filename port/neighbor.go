package port

import (
	"net"
	"net/netip"
	"time"
)

// ARPEntry is one kernel ARP/NDP table entry witnessed on a port.
type ARPEntry struct {
	IP    netip.Addr `json:"ip"`
	MAC   string     `json:"mac"`
	State string     `json:"state"`
}

// LLDPEntry is one LLDP neighbor reported by the host LLDP daemon.
type LLDPEntry struct {
	ChassisID  string `json:"chassisID"`
	PortID     string `json:"portID"`
	SystemName string `json:"systemName,omitempty"`
	SystemDesc string `json:"systemDesc,omitempty"`
	TTL        int    `json:"ttl,omitempty"`
}

// LinkState is the kernel view of a port link.
type LinkState struct {
	Up        bool   `json:"up"`
	SpeedMbps int    `json:"speedMbps,omitempty"`
	Duplex    string `json:"duplex,omitempty"`
}

// NeighborCache is the per-port neighbor scan result.
// The prober replaces it wholesale; readers never observe partial updates.
type NeighborCache struct {
	ARP      []ARPEntry  `json:"arp"`
	LLDP     []LLDPEntry `json:"lldp"`
	Link     LinkState   `json:"link"`
	LastScan time.Time   `json:"lastScan"`
}

// LookupMAC resolves an IP address to a neighbor MAC address.
func (nc *NeighborCache) LookupMAC(ip netip.Addr) (mac net.HardwareAddr, ok bool) {
	for _, en := range nc.ARP {
		if en.IP == ip {
			if a, e := net.ParseMAC(en.MAC); e == nil {
				return a, true
			}
		}
	}
	return nil, false
}
