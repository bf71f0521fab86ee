package registry_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/vepnet/tgen/core/testenv"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/port/portmock"
	"github.com/vepnet/tgen/profile"
	"github.com/vepnet/tgen/registry"
)

var makeAR = testenv.MakeAR

func makePorts() {
	portmock.MakePort("mock0", "02:00:00:00:00:01")
	portmock.MakePort("mock1", "02:00:00:00:00:02")
}

func makeConfig(name string) profile.Config {
	return profile.Config{
		Name:          name,
		SrcPort:       "mock0",
		DstPort:       "mock1",
		Protocol:      profile.ProtocolIPv4,
		DstIP:         netip.MustParseAddr("10.0.0.2"),
		BandwidthMbps: 100,
		FrameSize:     128,
	}
}

func TestAddDelete(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	makePorts()
	reg := registry.New()

	var added []string
	defer registry.OnProfileAdd(func(name string) { added = append(added, name) }).Close()

	_, e := reg.Add(makeConfig("A"))
	require.NoError(e)
	_, e = reg.Add(makeConfig("A"))
	assert.ErrorIs(e, registry.ErrExists)

	_, e = reg.Add(profile.Config{Name: ""})
	assert.ErrorIs(e, profile.ErrName)

	require.NotNil(reg.Get("A"))
	assert.Nil(reg.Get("B"))
	assert.Len(reg.List(), 1)
	assert.Equal([]string{"A"}, added)

	require.NoError(reg.Delete("A"))
	assert.ErrorIs(reg.Delete("A"), registry.ErrNotFound)
	assert.Empty(reg.List())
}

func TestDeleteActive(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	makePorts()
	reg := registry.New()

	cfg := makeConfig("A")
	cfg.Enabled = true
	_, e := reg.Add(cfg)
	require.NoError(e)
	assert.Equal(profile.StateRunning, reg.Get("A").State())

	assert.ErrorIs(reg.Delete("A"), registry.ErrActive)
	require.NoError(reg.Disable("A"))
	assert.NoError(reg.Delete("A"))
}

func TestUpdate(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	makePorts()
	reg := registry.New()

	cfg := makeConfig("A")
	_, e := reg.Add(cfg)
	require.NoError(e)

	// Idle: any valid change goes through.
	next := cfg
	next.DstIP = netip.MustParseAddr("10.0.0.9")
	_, e = reg.Update("A", next)
	require.NoError(e)
	assert.Equal(next.DstIP, reg.Get("A").Config().DstIP)

	require.NoError(reg.Enable("A"))

	// Running: hot fields only.
	hot := reg.Get("A").Config()
	hot.BandwidthMbps = 10
	hot.Impairments.LossPct = 5
	_, e = reg.Update("A", hot)
	require.NoError(e)
	assert.Equal(10.0, reg.Get("A").Config().BandwidthMbps)

	cold := reg.Get("A").Config()
	cold.DstIP = netip.MustParseAddr("10.0.0.3")
	_, e = reg.Update("A", cold)
	assert.ErrorIs(e, registry.ErrFrozen)

	_, e = reg.Update("B", hot)
	assert.ErrorIs(e, registry.ErrNotFound)
	require.NoError(reg.Disable("A"))
}

func TestSnapshotReset(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	makePorts()
	reg := registry.New()

	cfg := makeConfig("A")
	cfg.Enabled = true
	_, e := reg.Add(cfg)
	require.NoError(e)
	_, e = reg.Add(makeConfig("B"))
	require.NoError(e)

	time.Sleep(50 * time.Millisecond)
	require.NoError(reg.Disable("A"))

	st := reg.Snapshot()
	assert.False(st.Timestamp.IsZero())
	assert.Len(st.Profiles, 2)
	assert.Len(st.Ports, 2)
	assert.NotZero(st.Profiles["A"].Counters.FramesSent)
	assert.Equal(profile.StateIdle, st.Profiles["B"].State)

	require.NoError(reg.ResetStats("A"))
	assert.Zero(reg.Get("A").Counters().FramesSent)
	assert.ErrorIs(reg.ResetStats("C"), registry.ErrNotFound)

	require.NoError(reg.ResetStats(""))
	for _, p := range port.List() {
		assert.Zero(p.Counters().TxFrames)
	}
}

func TestDisableAll(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	makePorts()
	reg := registry.New()

	for _, name := range []string{"A", "B"} {
		cfg := makeConfig(name)
		cfg.Enabled = true
		_, e := reg.Add(cfg)
		require.NoError(e)
	}
	reg.DisableAll()
	for _, r := range reg.List() {
		assert.Equal(profile.StateIdle, r.State())
		assert.False(r.Config().Enabled)
	}
}

func TestStartStopAll(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	makePorts()
	reg := registry.New()

	a := makeConfig("A")
	a.Enabled = true
	_, e := reg.Add(a)
	require.NoError(e)
	_, e = reg.Add(makeConfig("B"))
	require.NoError(e)
	require.Equal(profile.StateRunning, reg.Get("A").State())

	// Bulk stop keeps the enabled mark.
	reg.StopAll()
	require.Equal(profile.StateIdle, reg.Get("A").State())
	assert.True(reg.Get("A").Config().Enabled)
	assert.False(reg.Get("B").Config().Enabled)

	// Bulk start covers only profiles marked enabled.
	assert.Equal([]string{"A"}, reg.StartAll())
	assert.Equal(profile.StateRunning, reg.Get("A").State())
	assert.Equal(profile.StateIdle, reg.Get("B").State())
	assert.Empty(reg.StartAll())

	// An individual disable clears the mark; bulk start then skips it.
	require.NoError(reg.Disable("A"))
	assert.False(reg.Get("A").Config().Enabled)
	assert.Empty(reg.StartAll())
}
