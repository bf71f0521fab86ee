// Package profile defines traffic profile descriptors.
package profile

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/vepnet/tgen/core/logging"
)

var logger = logging.New("profile")

// Frame size limits, in on-wire octets excluding FCS.
const (
	MinFrameSize = 64
	MaxFrameSize = 9000
)

// MaxDSCP is the largest DiffServ codepoint.
const MaxDSCP = 63

// Error conditions.
var (
	ErrName      = errors.New("profile name must be non-empty")
	ErrPort      = errors.New("source and destination port names must be non-empty and distinct")
	ErrDstIP     = errors.New("destination IP address is missing or does not match protocol family")
	ErrFrameSize = fmt.Errorf("frame size must be between %d and %d and no smaller than the encapsulation minimum", MinFrameSize, MaxFrameSize)
	ErrDSCP      = fmt.Errorf("DSCP must be between 0 and %d", MaxDSCP)
	ErrBandwidth = errors.New("bandwidth must be non-negative")
	ErrVLAN      = errors.New("VLAN ID must be between 1 and 4094")
	ErrMPLSLabel = errors.New("MPLS label must be between 16 and 1048575")
	ErrVXLANVNI  = errors.New("VXLAN VNI must be between 1 and 16777215")
)

// Config is a traffic profile descriptor.
type Config struct {
	Name     string   `json:"name"`
	SrcPort  string   `json:"srcPort"`
	DstPort  string   `json:"dstPort"`
	Protocol Protocol `json:"protocol"`

	DstIP     netip.Addr `json:"dstIP"`
	SrcIP     netip.Addr `json:"srcIP"`               // default: source port address
	DstL4Port uint16     `json:"dstL4Port,omitempty"` // default per protocol
	SrcL4Port uint16     `json:"srcL4Port,omitempty"` // zero selects a random ephemeral port

	MPLSLabel uint32 `json:"mplsLabel,omitempty"`
	VXLANVNI  uint32 `json:"vni,omitempty"`
	VLANOuter uint16 `json:"vlanOuter,omitempty"`
	VLANInner uint16 `json:"vlanInner,omitempty"`

	BandwidthMbps float64 `json:"bandwidthMbps"`
	FrameSize     int     `json:"frameSize"`
	DSCP          uint8   `json:"dscp,omitempty"`

	Impairments Impairments `json:"impairments"`

	Enabled bool `json:"enabled"`
}

// ApplyDefaults fills in unset optional fields.
// Out-of-range impairment percentages are clamped, with a warning logged and returned.
func (cfg *Config) ApplyDefaults() (warns []string) {
	if cfg.FrameSize == 0 {
		cfg.FrameSize = 1400
	}
	if cfg.DstL4Port == 0 {
		cfg.DstL4Port = cfg.Protocol.DefaultDstL4Port()
	}
	warns = cfg.Impairments.clamp()
	for _, w := range warns {
		logger.Warn(w)
	}
	return warns
}

// Validate checks Config fields.
func (cfg Config) Validate() error {
	if cfg.Name == "" {
		return ErrName
	}
	if cfg.SrcPort == "" || cfg.DstPort == "" || cfg.SrcPort == cfg.DstPort {
		return ErrPort
	}
	if !cfg.Protocol.Valid() {
		return fmt.Errorf("unknown protocol %q", cfg.Protocol)
	}
	if !cfg.DstIP.IsValid() || cfg.DstIP.Is6() != (cfg.Protocol == ProtocolIPv6) {
		return ErrDstIP
	}
	if cfg.FrameSize < cfg.Protocol.MinFrameSize() || cfg.FrameSize > MaxFrameSize {
		return fmt.Errorf("%w (protocol %s needs at least %d)", ErrFrameSize, cfg.Protocol, cfg.Protocol.MinFrameSize())
	}
	if cfg.DSCP > MaxDSCP {
		return ErrDSCP
	}
	if cfg.BandwidthMbps < 0 {
		return ErrBandwidth
	}

	switch cfg.Protocol {
	case ProtocolMPLS:
		if cfg.MPLSLabel < 16 || cfg.MPLSLabel > 0x000FFFFF {
			return ErrMPLSLabel
		}
	case ProtocolVXLAN:
		if cfg.VXLANVNI < 1 || cfg.VXLANVNI > 0x00FFFFFF {
			return ErrVXLANVNI
		}
	case ProtocolQinQ:
		for _, vid := range []uint16{cfg.VLANOuter, cfg.VLANInner} {
			if vid < 1 || vid > 4094 {
				return ErrVLAN
			}
		}
	}

	return cfg.Impairments.validate()
}

// CanUpdateLive determines whether next can replace cfg without a disable/enable cycle.
// Bandwidth, frame size, and the impairment block are hot-updatable; everything else is frozen while running.
func (cfg Config) CanUpdateLive(next Config) bool {
	a, b := cfg, next
	a.BandwidthMbps, b.BandwidthMbps = 0, 0
	a.FrameSize, b.FrameSize = 0, 0
	a.Impairments, b.Impairments = Impairments{}, Impairments{}
	return a == b
}
