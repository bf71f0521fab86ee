package runner_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/vepnet/tgen/core/testenv"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/port/portmock"
	"github.com/vepnet/tgen/profile"
	"github.com/vepnet/tgen/runner"
)

var makeAR = testenv.MakeAR

func makeConfig(name string) profile.Config {
	cfg := profile.Config{
		Name:          name,
		SrcPort:       "mock0",
		DstPort:       "mock1",
		Protocol:      profile.ProtocolIPv4,
		DstIP:         netip.MustParseAddr("10.0.0.2"),
		BandwidthMbps: 500,
		FrameSize:     128,
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestEnableDisable(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	_, hdl := portmock.MakePort("mock0", "02:00:00:00:00:01")
	portmock.MakePort("mock1", "02:00:00:00:00:02")

	r := runner.New(makeConfig("P1"))
	assert.Equal(profile.StateIdle, r.State())

	require.NoError(r.Enable())
	assert.Equal(profile.StateRunning, r.State())
	assert.True(r.Config().Enabled)

	time.Sleep(100 * time.Millisecond)
	require.NoError(r.Disable())
	assert.Equal(profile.StateIdle, r.State())
	assert.False(r.Config().Enabled)

	cnt := r.Counters()
	assert.NotZero(cnt.FramesSent)
	assert.Equal(cnt.FramesSent*128, cnt.BytesSent)

	// Frames handed to the transmitter keep departing after disable.
	time.Sleep(50 * time.Millisecond)
	assert.NotZero(hdl.Count())
}

func TestEnableMissingPort(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	portmock.MakePort("mock1", "02:00:00:00:00:02")

	r := runner.New(makeConfig("P2"))
	require.Error(r.Enable())
	assert.Equal(profile.StateFailed, r.State())
	assert.Error(r.Failure())

	// Disable clears the failed state.
	require.NoError(r.Disable())
	assert.Equal(profile.StateIdle, r.State())
	assert.NoError(r.Failure())
}

func TestUpdateLive(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	portmock.MakePort("mock0", "02:00:00:00:00:01")
	portmock.MakePort("mock1", "02:00:00:00:00:02")

	cfg := makeConfig("P3")
	r := runner.New(cfg)
	assert.ErrorIs(r.UpdateLive(cfg), runner.ErrState)

	require.NoError(r.Enable())
	next := cfg
	next.BandwidthMbps = 50
	next.FrameSize = 256
	next.Impairments.LossPct = 10
	require.True(cfg.CanUpdateLive(next))
	require.NoError(r.UpdateLive(next))
	assert.Equal(profile.StateRunning, r.State())
	assert.Equal(50.0, r.Config().BandwidthMbps)
	assert.Equal(256, r.Config().FrameSize)
	require.NoError(r.Disable())
}

func TestUpdateIdle(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	portmock.MakePort("mock0", "02:00:00:00:00:01")
	portmock.MakePort("mock1", "02:00:00:00:00:02")

	cfg := makeConfig("P4")
	r := runner.New(cfg)
	next := cfg
	next.DstIP = netip.MustParseAddr("10.0.0.9")
	require.NoError(r.Update(next))
	assert.Equal(next.DstIP, r.Config().DstIP)

	require.NoError(r.Enable())
	assert.ErrorIs(r.Update(next), runner.ErrState)
	require.NoError(r.Disable())
}

func TestLossSuppressesSend(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	portmock.MakePort("mock0", "02:00:00:00:00:01")
	portmock.MakePort("mock1", "02:00:00:00:00:02")

	cfg := makeConfig("P5")
	cfg.Impairments.LossPct = 100
	r := runner.New(cfg)
	require.NoError(r.Enable())
	time.Sleep(50 * time.Millisecond)
	cnt := r.Counters()
	assert.Zero(cnt.FramesSent)
	assert.NotZero(cnt.LossDrops)
	require.NoError(r.Disable())
}

func TestResetCounters(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	portmock.MakePort("mock0", "02:00:00:00:00:01")
	portmock.MakePort("mock1", "02:00:00:00:00:02")

	r := runner.New(makeConfig("P6"))
	require.NoError(r.Enable())
	time.Sleep(50 * time.Millisecond)
	require.NoError(r.Disable())
	require.NotZero(r.Counters().FramesSent)

	r.ResetCounters()
	assert.Zero(r.Counters().FramesSent)
	assert.Zero(r.Counters().BytesSent)
}

func TestReenableResetsCounters(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()
	portmock.MakePort("mock0", "02:00:00:00:00:01")
	portmock.MakePort("mock1", "02:00:00:00:00:02")

	r := runner.New(makeConfig("P7"))
	require.NoError(r.Enable())
	time.Sleep(50 * time.Millisecond)
	require.NoError(r.Disable())
	require.NotZero(r.Counters().FramesSent)

	// Pause the pacer before re-enabling, so the zeroed counters are
	// observable without racing the emission task.
	next := r.Config()
	next.BandwidthMbps = 0
	require.NoError(r.Update(next))
	require.NoError(r.Enable())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(r.Counters().FramesSent)
	assert.Zero(r.Counters().BytesSent)
	require.NoError(r.Disable())
}
