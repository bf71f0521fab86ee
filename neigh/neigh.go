// Package neigh periodically scans kernel and LLDP neighbor tables and
// publishes per-port neighbor caches.
package neigh

import (
	"context"
	"net/netip"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/core/nnduration"
	"github.com/vepnet/tgen/port"
	"go.uber.org/zap"
)

var logger = logging.New("neigh")

// DefaultMaxEntries caps remembered ARP neighbors per port.
const DefaultMaxEntries = 256

// Scanner produces a port's current neighbor view.
// The process-wide implementation reads netlink and the host LLDP daemon.
type Scanner interface {
	Scan(ctx context.Context, portName string) (*port.NeighborCache, error)
}

// Config configures the Prober.
type Config struct {
	// Interval between background scans. Default 10s.
	Interval nnduration.Milliseconds `json:"interval,omitempty"`

	// MaxEntries caps remembered ARP neighbors per port. Default 256.
	MaxEntries int `json:"maxEntries,omitempty"`
}

func (cfg *Config) applyDefaults() {
	if cfg.Interval == 0 {
		cfg.Interval = nnduration.Milliseconds(10000)
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
}

// Prober owns the neighbor scan schedule. Each scan merges the kernel view
// into a per-port LRU, so neighbors evicted from the kernel table remain
// resolvable until the cap pushes them out, then swaps the port's published
// cache wholesale.
type Prober struct {
	cfg     Config
	scanner Scanner

	mu   sync.Mutex
	seen map[string]*lru.Cache[netip.Addr, port.ARPEntry]
}

// NewProber creates a Prober using the given scanner.
func NewProber(cfg Config, scanner Scanner) *Prober {
	cfg.applyDefaults()
	return &Prober{
		cfg:     cfg,
		scanner: scanner,
		seen:    map[string]*lru.Cache[netip.Addr, port.ARPEntry]{},
	}
}

// Run scans all ports on the configured interval until ctx is canceled.
// The first sweep happens immediately.
func (pr *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(pr.cfg.Interval.Duration())
	defer ticker.Stop()
	pr.ScanAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pr.ScanAll(ctx)
		}
	}
}

// ScanAll scans every published port once.
func (pr *Prober) ScanAll(ctx context.Context) {
	for _, p := range port.List() {
		if _, e := pr.ScanPort(ctx, p); e != nil {
			logger.Warn("neighbor scan failed", zap.String("port", p.Name()), zap.Error(e))
		}
	}
}

// ScanPort scans one port on demand and publishes the result.
func (pr *Prober) ScanPort(ctx context.Context, p *port.Port) (*port.NeighborCache, error) {
	nc, e := pr.scanner.Scan(ctx, p.Name())
	if e != nil {
		return nil, e
	}
	nc.ARP = pr.merge(p.Name(), nc.ARP)
	nc.LastScan = time.Now().UTC()
	p.SetNeighborCache(nc)
	p.SetUp(nc.Link.Up)
	return nc, nil
}

// merge folds a fresh kernel table into the port's LRU of seen neighbors
// and returns the merged entries.
func (pr *Prober) merge(portName string, fresh []port.ARPEntry) []port.ARPEntry {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	cache, ok := pr.seen[portName]
	if !ok {
		cache, _ = lru.New[netip.Addr, port.ARPEntry](pr.cfg.MaxEntries)
		pr.seen[portName] = cache
	}
	for _, en := range fresh {
		cache.Add(en.IP, en)
	}
	out := make([]port.ARPEntry, 0, cache.Len())
	for _, ip := range cache.Keys() {
		if en, ok := cache.Peek(ip); ok {
			out = append(out, en)
		}
	}
	return out
}
