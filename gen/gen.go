// Package gen composes the traffic generator core.
package gen

import (
	"context"

	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/core/version"
	"github.com/vepnet/tgen/neigh"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/registry"
	"github.com/vepnet/tgen/rfc2544"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var logger = logging.New("gen")

// Capabilities is the feature set declared at startup. Absent capabilities
// have no runtime "maybe" state: the management server simply does not
// register their endpoints.
type Capabilities struct {
	FastPath    bool `json:"fastPath"`
	HWTimestamp bool `json:"hwTimestamp"`
	SNMP        bool `json:"snmp"`
	NetFlow     bool `json:"netflow"`
	BGP         bool `json:"bgp"`
}

// Config configures the core.
type Config struct {
	// ConfigFile is the persisted profile configuration path. Empty disables
	// persistence.
	ConfigFile string

	// Neigh configures the neighbor prober schedule.
	Neigh neigh.Config

	// SkipPortDiscovery leaves the port table to the caller. Used by tests.
	SkipPortDiscovery bool
}

// Gen is the traffic generator core: the port table, the profile registry,
// the neighbor prober, and the benchmark driver, with one explicit lifecycle.
type Gen struct {
	caps   Capabilities
	reg    *registry.Registry
	prober *neigh.Prober
	driver *rfc2544.Driver
	store  *Store
}

// New constructs the core: enumerates and attaches host ports, loads the
// persisted configuration, and recreates profiles in their saved state.
func New(cfg Config) (*Gen, error) {
	g := &Gen{
		reg:   registry.New(),
		store: NewStore(cfg.ConfigFile),
	}

	if !cfg.SkipPortDiscovery {
		if e := attachPorts(); e != nil {
			return nil, e
		}
	}
	for _, p := range port.List() {
		pc := p.Config()
		g.caps.FastPath = g.caps.FastPath || pc.Caps.FastPath
		g.caps.HWTimestamp = g.caps.HWTimestamp || pc.Caps.HWTimestamp
	}

	g.prober = neigh.NewProber(cfg.Neigh, newScanner())
	g.driver = rfc2544.NewDriver(rfc2544.RegistryFactory{Registry: g.reg, Open: captureOpener()})

	stored, e := g.store.Load()
	if e != nil {
		return nil, e
	}
	for _, pc := range stored {
		if _, e := g.reg.Add(pc); e != nil {
			logger.Warn("stored profile rejected", zap.String("profile", pc.Name), zap.Error(e))
		}
	}

	logger.Info("core ready",
		zap.Int("ports", len(port.List())),
		zap.Int("profiles", len(g.reg.List())),
		zap.String("version", version.V.Version),
	)
	return g, nil
}

// Capabilities returns the startup capability set.
func (g *Gen) Capabilities() Capabilities {
	return g.caps
}

// Registry returns the profile registry.
func (g *Gen) Registry() *registry.Registry {
	return g.reg
}

// Prober returns the neighbor prober.
func (g *Gen) Prober() *neigh.Prober {
	return g.prober
}

// Driver returns the benchmark driver.
func (g *Gen) Driver() *rfc2544.Driver {
	return g.driver
}

// Run starts the background tasks: the neighbor scan schedule and the kernel
// link watch. It returns once they are launched.
func (g *Gen) Run(ctx context.Context) error {
	go g.prober.Run(ctx)
	return watchLinks(ctx)
}

// SaveConfig persists the current profile set. Called after every successful
// mutation.
func (g *Gen) SaveConfig() error {
	return g.store.Save(g.reg.Configs())
}

// Close shuts the core down: benchmark sweeps are canceled, running profiles
// disabled within their grace periods, the final configuration persisted,
// and port transmitters drained.
func (g *Gen) Close() error {
	// Persist before disabling, so a profile running at shutdown restarts
	// enabled on the next launch.
	errs := multierr.Append(g.SaveConfig(), g.driver.Close())
	g.reg.DisableAll()
	port.CloseAll()
	logger.Info("core closed")
	return errs
}
