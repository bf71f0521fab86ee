package profile_test

import (
	"net/netip"
	"testing"

	"github.com/vepnet/tgen/core/testenv"
	"github.com/vepnet/tgen/profile"
)

var makeAR = testenv.MakeAR

func makeConfig() profile.Config {
	return profile.Config{
		Name:          "P1",
		SrcPort:       "eth1",
		DstPort:       "eth2",
		Protocol:      profile.ProtocolIPv4,
		DstIP:         netip.MustParseAddr("10.0.0.2"),
		BandwidthMbps: 100,
		FrameSize:     1500,
	}
}

func TestValidate(t *testing.T) {
	assert, _ := makeAR(t)

	cfg := makeConfig()
	cfg.ApplyDefaults()
	assert.NoError(cfg.Validate())
	assert.EqualValues(9999, cfg.DstL4Port)

	cfg = makeConfig()
	cfg.Name = ""
	assert.ErrorIs(cfg.Validate(), profile.ErrName)

	cfg = makeConfig()
	cfg.DstPort = cfg.SrcPort
	assert.ErrorIs(cfg.Validate(), profile.ErrPort)

	cfg = makeConfig()
	cfg.Protocol = "gre"
	assert.Error(cfg.Validate())

	cfg = makeConfig()
	cfg.DstIP = netip.MustParseAddr("fd00::2")
	assert.ErrorIs(cfg.Validate(), profile.ErrDstIP)

	cfg = makeConfig()
	cfg.Protocol = profile.ProtocolIPv6
	cfg.DstIP = netip.MustParseAddr("fd00::2")
	assert.NoError(cfg.Validate())

	cfg = makeConfig()
	cfg.FrameSize = 63
	assert.ErrorIs(cfg.Validate(), profile.ErrFrameSize)

	cfg = makeConfig()
	cfg.FrameSize = 9001
	assert.ErrorIs(cfg.Validate(), profile.ErrFrameSize)

	cfg = makeConfig()
	cfg.DSCP = 64
	assert.ErrorIs(cfg.Validate(), profile.ErrDSCP)

	cfg = makeConfig()
	cfg.Protocol = profile.ProtocolVXLAN
	cfg.VXLANVNI = 5000
	cfg.FrameSize = 100
	assert.ErrorIs(cfg.Validate(), profile.ErrFrameSize)
	cfg.FrameSize = 1400
	assert.NoError(cfg.Validate())

	cfg = makeConfig()
	cfg.Protocol = profile.ProtocolQinQ
	cfg.VLANOuter, cfg.VLANInner = 100, 0
	assert.ErrorIs(cfg.Validate(), profile.ErrVLAN)
	cfg.VLANInner = 200
	assert.NoError(cfg.Validate())

	cfg = makeConfig()
	cfg.Protocol = profile.ProtocolMPLS
	cfg.MPLSLabel = 3
	assert.ErrorIs(cfg.Validate(), profile.ErrMPLSLabel)
	cfg.MPLSLabel = 100
	assert.NoError(cfg.Validate())
}

func TestImpairClamp(t *testing.T) {
	assert, _ := makeAR(t)

	cfg := makeConfig()
	cfg.Impairments.LossPct = 60
	cfg.Impairments.DuplicatePct = 30
	cfg.Impairments.ReorderPct = 30
	warns := cfg.ApplyDefaults()
	assert.Len(warns, 1)
	assert.EqualValues(100, cfg.Impairments.LossPct+cfg.Impairments.DuplicatePct+cfg.Impairments.ReorderPct)
	assert.EqualValues(60, cfg.Impairments.LossPct)
	assert.NoError(cfg.Validate())

	cfg = makeConfig()
	cfg.Impairments.LossPct = -1
	assert.ErrorIs(cfg.Validate(), profile.ErrImpairPercent)
}

func TestCanUpdateLive(t *testing.T) {
	assert, _ := makeAR(t)

	cfg := makeConfig()
	next := cfg
	next.BandwidthMbps = 500
	next.FrameSize = 512
	next.Impairments.LossPct = 2
	assert.True(cfg.CanUpdateLive(next))

	next = cfg
	next.DstIP = netip.MustParseAddr("10.0.0.3")
	assert.False(cfg.CanUpdateLive(next))

	next = cfg
	next.DstPort = "eth3"
	assert.False(cfg.CanUpdateLive(next))
}

func TestConfigJSON(t *testing.T) {
	assert, _ := makeAR(t)

	cfg := makeConfig()
	cfg.Impairments.Latency = 20
	var decoded profile.Config
	testenv.FromJSON(testenv.ToJSON(cfg), &decoded)
	assert.Equal(cfg, decoded)
}
