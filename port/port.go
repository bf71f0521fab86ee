// Package port models host Ethernet ports and their raw-L2 transmitters.
package port

import (
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/core/macaddr"
	"go.uber.org/zap"
)

var logger = logging.New("port")

// Type is a port hardware classification.
type Type string

// Port types.
const (
	TypeCopper   Type = "copper"
	TypeSFP      Type = "sfp"
	TypeFastPath Type = "fast-path"
)

// Capabilities describes optional port features.
type Capabilities struct {
	HWTimestamp bool `json:"hwTimestamp"`
	FastPath    bool `json:"fastPath"`
}

// Config describes a host Ethernet port.
// It is filled by enumeration at startup; addresses may also be declared statically.
type Config struct {
	Name      string       `json:"name"`
	MAC       string       `json:"mac"`
	IPv4      netip.Prefix `json:"ipv4,omitempty"`
	IPv6      netip.Prefix `json:"ipv6,omitempty"`
	SpeedMbps int          `json:"speedMbps"`
	MTU       int          `json:"mtu"`
	Type      Type         `json:"type"`
	Caps      Capabilities `json:"capabilities"`
}

// HardwareAddr parses cfg.MAC.
func (cfg Config) HardwareAddr() net.HardwareAddr {
	a, _ := net.ParseMAC(cfg.MAC)
	return a
}

func (cfg *Config) applyDefaults() {
	if cfg.MTU == 0 {
		cfg.MTU = 1500
	}
	if cfg.Type == "" {
		cfg.Type = TypeCopper
	}
}

// Validate checks Config fields.
func (cfg Config) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("port name must be non-empty")
	}
	if !macaddr.IsUnicast(cfg.HardwareAddr()) {
		return fmt.Errorf("port %s: %q is not a unicast MAC-48 address", cfg.Name, cfg.MAC)
	}
	return nil
}

// Port is a host Ethernet port owned by the process.
// Ports are created at startup and never destroyed; they flip between ready
// and unavailable as the kernel link state changes.
type Port struct {
	cfg      Config
	cnt      CountersRef
	up       atomic.Bool
	tx       *Transmitter
	neighbor atomic.Pointer[NeighborCache]
}

// New creates a Port and attaches its Transmitter to the given handle.
func New(cfg Config, hdl Handle) (*Port, error) {
	cfg.applyDefaults()
	if e := cfg.Validate(); e != nil {
		return nil, e
	}
	p := &Port{cfg: cfg}
	p.up.Store(true)
	p.tx = newTransmitter(p, hdl)
	return p, nil
}

// Name returns the stable device name.
func (p *Port) Name() string {
	return p.cfg.Name
}

// Config returns the port descriptor.
func (p *Port) Config() Config {
	return p.cfg
}

// MAC returns the port MAC address.
func (p *Port) MAC() net.HardwareAddr {
	return p.cfg.HardwareAddr()
}

// IsUp reports whether the kernel link is up.
func (p *Port) IsUp() bool {
	return p.up.Load()
}

// SetUp records a link state transition reported by the kernel.
func (p *Port) SetUp(up bool) {
	if p.up.Swap(up) == up {
		return
	}
	if up {
		logger.Info("port up", p.logField())
		emitter.Emit(evtPortUp, p.cfg.Name)
	} else {
		logger.Warn("port down", p.logField())
		p.tx.flushDown()
		emitter.Emit(evtPortDown, p.cfg.Name)
	}
}

// Transmitter returns the port's transmitter.
func (p *Port) Transmitter() *Transmitter {
	return p.tx
}

// Counters returns a point-in-time snapshot of TX counters.
func (p *Port) Counters() Counters {
	return p.cnt.Read()
}

// ResetCounters zeroes the TX counters.
func (p *Port) ResetCounters() {
	p.cnt.Reset()
}

// NeighborCache returns the last published neighbor scan result, possibly nil.
func (p *Port) NeighborCache() *NeighborCache {
	return p.neighbor.Load()
}

// SetNeighborCache atomically replaces the neighbor cache.
func (p *Port) SetNeighborCache(nc *NeighborCache) {
	p.neighbor.Store(nc)
}

// LookupNeighborMAC resolves an IP address against the ARP cache.
// Missing entries return false; callers fall back to broadcast.
func (p *Port) LookupNeighborMAC(ip netip.Addr) (mac net.HardwareAddr, ok bool) {
	nc := p.neighbor.Load()
	if nc == nil {
		return nil, false
	}
	return nc.LookupMAC(ip)
}

// Close shuts down the transmitter.
func (p *Port) Close() error {
	return p.tx.Close()
}

func (p *Port) logField() zap.Field {
	return zap.String("port", p.cfg.Name)
}

// MarshalJSON implements json.Marshaler interface.
func (p *Port) MarshalJSON() ([]byte, error) {
	return json.Marshal(portJSON{
		Config:   p.cfg,
		Up:       p.IsUp(),
		Counters: p.Counters(),
	})
}

type portJSON struct {
	Config
	Up       bool     `json:"up"`
	Counters Counters `json:"counters"`
}

var (
	gPorts     = map[string]*Port{}
	gPortsLock sync.RWMutex
)

// Put publishes a port into the process-wide table.
func Put(p *Port) {
	gPortsLock.Lock()
	defer gPortsLock.Unlock()
	gPorts[p.Name()] = p
	emitter.Emit(evtPortNew, p.Name())
}

// Get retrieves a port by device name.
func Get(name string) *Port {
	gPortsLock.RLock()
	defer gPortsLock.RUnlock()
	return gPorts[name]
}

// List returns all ports sorted by name.
func List() (list []*Port) {
	gPortsLock.RLock()
	defer gPortsLock.RUnlock()
	for _, p := range gPorts {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// CloseAll shuts down every port transmitter and clears the table.
// Intended for process shutdown and tests.
func CloseAll() {
	gPortsLock.Lock()
	ports := gPorts
	gPorts = map[string]*Port{}
	gPortsLock.Unlock()
	for _, p := range ports {
		p.Close()
	}
}
