package gen_test

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vepnet/tgen/core/testenv"
	"github.com/vepnet/tgen/gen"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/port/portmock"
	"github.com/vepnet/tgen/profile"
)

var makeAR = testenv.MakeAR

func makeConfig(name string, enabled bool) profile.Config {
	cfg := profile.Config{
		Name:          name,
		SrcPort:       "mock0",
		DstPort:       "mock1",
		Protocol:      profile.ProtocolIPv4,
		DstIP:         netip.MustParseAddr("10.0.0.2"),
		BandwidthMbps: 100,
		FrameSize:     128,
		Enabled:       enabled,
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestStoreRoundTrip(t *testing.T) {
	assert, require := makeAR(t)

	path := filepath.Join(t.TempDir(), "tgen.json")
	s := gen.NewStore(path)

	cfgs, e := s.Load()
	require.NoError(e)
	assert.Empty(cfgs)

	saved := []profile.Config{makeConfig("A", true), makeConfig("B", false)}
	require.NoError(s.Save(saved))

	cfgs, e = s.Load()
	require.NoError(e)
	require.Len(cfgs, 2)
	assert.Equal(saved, cfgs)

	// No temp file leftovers.
	entries, e := os.ReadDir(filepath.Dir(path))
	require.NoError(e)
	assert.Len(entries, 1)
}

func TestStoreCorrupt(t *testing.T) {
	assert, require := makeAR(t)

	path := filepath.Join(t.TempDir(), "tgen.json")
	require.NoError(os.WriteFile(path, []byte("{"), 0o644))
	_, e := gen.NewStore(path).Load()
	assert.Error(e)
}

func TestStoreDisabled(t *testing.T) {
	assert, require := makeAR(t)

	s := gen.NewStore("")
	require.NoError(s.Save([]profile.Config{makeConfig("A", false)}))
	cfgs, e := s.Load()
	assert.NoError(e)
	assert.Empty(cfgs)
}

func TestCoreLifecycle(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	portmock.MakePort("mock0", "02:00:00:00:00:01")
	portmock.MakePort("mock1", "02:00:00:00:00:02")

	path := filepath.Join(t.TempDir(), "tgen.json")
	require.NoError(gen.NewStore(path).Save([]profile.Config{
		makeConfig("A", true),
		makeConfig("B", false),
	}))

	g, e := gen.New(gen.Config{ConfigFile: path, SkipPortDiscovery: true})
	require.NoError(e)

	// Stored profiles come back in their saved enabled state.
	require.NotNil(g.Registry().Get("A"))
	assert.Equal(profile.StateRunning, g.Registry().Get("A").State())
	assert.Equal(profile.StateIdle, g.Registry().Get("B").State())

	time.Sleep(30 * time.Millisecond)
	require.NoError(g.Close())
	assert.Equal(profile.StateIdle, g.Registry().Get("A").State())

	// The closing save keeps A marked enabled for the next start.
	cfgs, e := gen.NewStore(path).Load()
	require.NoError(e)
	require.Len(cfgs, 2)
	for _, cfg := range cfgs {
		switch cfg.Name {
		case "A":
			assert.True(cfg.Enabled)
		case "B":
			assert.False(cfg.Enabled)
		}
	}
}

func TestCapabilities(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()

	hdl := portmock.New()
	p, e := port.New(port.Config{
		Name: "mock0", MAC: "02:00:00:00:00:01", MTU: 9000,
		IPv4: netip.MustParsePrefix("10.0.0.1/24"),
		Caps: port.Capabilities{HWTimestamp: true},
	}, hdl)
	require.NoError(e)
	port.Put(p)

	g, e := gen.New(gen.Config{SkipPortDiscovery: true})
	require.NoError(e)
	caps := g.Capabilities()
	assert.True(caps.HWTimestamp)
	assert.False(caps.FastPath)
	assert.False(caps.SNMP)
	require.NoError(g.Close())
}
