// Package framegen encodes on-wire Ethernet frames from profile descriptors.
package framegen

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/vepnet/tgen/core/macaddr"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/profile"
)

// ErrUnencodable indicates a descriptor that cannot be encoded as configured.
var ErrUnencodable = errors.New("descriptor cannot be encoded")

// VXLANPort is the IANA-assigned VXLAN destination UDP port.
const VXLANPort = 4789

// Builder deterministically encodes frames for one profile.
//
// Build is a pure function of (sequence number, emit instant): repeated calls
// with the same arguments yield bit-identical frames. Destination MAC and
// source address resolution happen once at construction; an unresolved
// neighbor falls back to the broadcast address without blocking.
type Builder struct {
	cfg       profile.Config
	id        uint32
	srcMAC    net.HardwareAddr
	dstMAC    net.HardwareAddr
	srcIP     net.IP
	dstIP     net.IP
	srcL4     uint16
	headerLen int
	opts      gopacket.SerializeOptions
}

// New creates a Builder for a profile bound to its source port.
func New(cfg profile.Config, src *port.Port) (*Builder, error) {
	b := &Builder{
		cfg:    cfg,
		id:     ProfileID(cfg.Name),
		srcMAC: src.MAC(),
		dstMAC: macaddr.Broadcast,
		dstIP:  cfg.DstIP.AsSlice(),
		opts:   gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
	}

	if mac, ok := src.LookupNeighborMAC(cfg.DstIP); ok {
		b.dstMAC = mac
	}

	srcIP := cfg.SrcIP
	if !srcIP.IsValid() {
		pc := src.Config()
		if cfg.Protocol == profile.ProtocolIPv6 {
			srcIP = pc.IPv6.Addr()
		} else {
			srcIP = pc.IPv4.Addr()
		}
	}
	if !srcIP.IsValid() {
		return nil, fmt.Errorf("%w: no source address on port %s", ErrUnencodable, src.Name())
	}
	b.srcIP = srcIP.AsSlice()

	b.srcL4 = cfg.SrcL4Port
	if b.srcL4 == 0 {
		b.srcL4 = ephemeralPort(b.id)
	}

	if cfg.FrameSize < cfg.Protocol.MinFrameSize() {
		return nil, fmt.Errorf("%w: frame size %d below %s minimum %d",
			ErrUnencodable, cfg.FrameSize, cfg.Protocol, cfg.Protocol.MinFrameSize())
	}
	if maxLen := 14 + src.Config().MTU + port.VLANAllowance; cfg.FrameSize > maxLen {
		return nil, fmt.Errorf("%w: frame size %d exceeds port %s MTU allowance %d",
			ErrUnencodable, cfg.FrameSize, src.Name(), maxLen)
	}

	b.headerLen = headerLen(cfg.Protocol)
	if cfg.Protocol == profile.ProtocolHTTPFlood && cfg.FrameSize < b.headerLen+len(b.httpRequest()) {
		return nil, fmt.Errorf("%w: frame size %d cannot carry the HTTP request", ErrUnencodable, cfg.FrameSize)
	}
	return b, nil
}

func headerLen(p profile.Protocol) int {
	const ethIPv4UDP = profile.EthernetHeaderLength + profile.IPv4HeaderLength + profile.UDPHeaderLength
	switch p {
	case profile.ProtocolIPv6:
		return profile.EthernetHeaderLength + profile.IPv6HeaderLength + profile.UDPHeaderLength
	case profile.ProtocolMPLS:
		return ethIPv4UDP + profile.MPLSShimLength
	case profile.ProtocolVXLAN:
		return ethIPv4UDP + profile.VXLANHeaderLength + ethIPv4UDP
	case profile.ProtocolQinQ:
		return ethIPv4UDP + 2*profile.VLANTagLength
	case profile.ProtocolSYNFlood, profile.ProtocolHTTPFlood:
		return profile.EthernetHeaderLength + profile.IPv4HeaderLength + profile.TCPHeaderLength
	}
	return ethIPv4UDP
}

// Build encodes the frame carrying seq, emitted at the given instant.
// The returned buffer is exactly the configured frame size (FCS excluded).
func (b *Builder) Build(seq uint32, emit time.Time) ([]byte, error) {
	switch b.cfg.Protocol {
	case profile.ProtocolIPv4, profile.ProtocolUDPFlood:
		return b.buildIPv4UDP(seq, emit, nil)
	case profile.ProtocolIPv6:
		return b.buildIPv6UDP(seq, emit)
	case profile.ProtocolMPLS:
		return b.buildMPLS(seq, emit)
	case profile.ProtocolVXLAN:
		return b.buildVXLAN(seq, emit)
	case profile.ProtocolQinQ:
		return b.buildQinQ(seq, emit)
	case profile.ProtocolDNSAmp:
		return b.buildIPv4UDP(seq, emit, dnsQuery(b.id, seq))
	case profile.ProtocolSYNFlood:
		return b.buildTCP(seq, nil, true)
	case profile.ProtocolHTTPFlood:
		return b.buildTCP(seq, b.httpRequest(), false)
	}
	return nil, fmt.Errorf("%w: protocol %q", ErrUnencodable, b.cfg.Protocol)
}

func (b *Builder) eth(etherType layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       b.srcMAC,
		DstMAC:       b.dstMAC,
		EthernetType: etherType,
	}
}

func (b *Builder) ipv4(seq uint32) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TOS:      b.cfg.DSCP << 2,
		Id:       uint16(seq),
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    b.srcIP,
		DstIP:    b.dstIP,
	}
}

// payload fills the signed payload: 16-byte signature, zero padding to length n.
func (b *Builder) payload(n int, seq uint32, emit time.Time) gopacket.Payload {
	p := make([]byte, n)
	PutSignature(p, Signature{ProfileID: b.id, Seq: seq, EmitMicros: MonotonicMicros(emit)})
	return gopacket.Payload(p)
}

func (b *Builder) serialize(expect int, ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if e := gopacket.SerializeLayers(buf, b.opts, ls...); e != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnencodable, e)
	}
	frame := buf.Bytes()
	if len(frame) > expect {
		return nil, fmt.Errorf("%w: encoded %d octets exceed frame size %d", ErrUnencodable, len(frame), expect)
	}
	if len(frame) < expect {
		frame = append(frame, make([]byte, expect-len(frame))...)
	}
	return frame, nil
}

func (b *Builder) buildIPv4UDP(seq uint32, emit time.Time, fixed []byte) ([]byte, error) {
	ip := b.ipv4(seq)
	udp := &layers.UDP{SrcPort: layers.UDPPort(b.srcL4), DstPort: layers.UDPPort(b.cfg.DstL4Port)}
	udp.SetNetworkLayerForChecksum(ip)

	var pl gopacket.Payload
	if fixed != nil {
		pl = gopacket.Payload(fixed)
	} else {
		pl = b.payload(b.cfg.FrameSize-b.headerLen, seq, emit)
	}
	return b.serialize(b.cfg.FrameSize, b.eth(layers.EthernetTypeIPv4), ip, udp, pl)
}

func (b *Builder) buildIPv6UDP(seq uint32, emit time.Time) ([]byte, error) {
	ip := &layers.IPv6{
		Version:      6,
		TrafficClass: b.cfg.DSCP << 2,
		HopLimit:     64,
		NextHeader:   layers.IPProtocolUDP,
		SrcIP:        b.srcIP,
		DstIP:        b.dstIP,
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(b.srcL4), DstPort: layers.UDPPort(b.cfg.DstL4Port)}
	udp.SetNetworkLayerForChecksum(ip)
	pl := b.payload(b.cfg.FrameSize-b.headerLen, seq, emit)
	return b.serialize(b.cfg.FrameSize, b.eth(layers.EthernetTypeIPv6), ip, udp, pl)
}

func (b *Builder) buildMPLS(seq uint32, emit time.Time) ([]byte, error) {
	mpls := &layers.MPLS{
		Label:        b.cfg.MPLSLabel,
		TrafficClass: b.cfg.DSCP >> 3,
		StackBottom:  true,
		TTL:          64,
	}
	ip := b.ipv4(seq)
	udp := &layers.UDP{SrcPort: layers.UDPPort(b.srcL4), DstPort: layers.UDPPort(b.cfg.DstL4Port)}
	udp.SetNetworkLayerForChecksum(ip)
	pl := b.payload(b.cfg.FrameSize-b.headerLen, seq, emit)
	return b.serialize(b.cfg.FrameSize, b.eth(layers.EthernetTypeMPLSUnicast), mpls, ip, udp, pl)
}

func (b *Builder) buildVXLAN(seq uint32, emit time.Time) ([]byte, error) {
	// Inner frame first; the outer UDP datagram carries it verbatim.
	innerIP := b.ipv4(seq)
	innerUDP := &layers.UDP{SrcPort: layers.UDPPort(b.srcL4), DstPort: layers.UDPPort(b.cfg.DstL4Port)}
	innerUDP.SetNetworkLayerForChecksum(innerIP)
	payloadLen := b.cfg.FrameSize - b.headerLen
	innerBuf := gopacket.NewSerializeBuffer()
	if e := gopacket.SerializeLayers(innerBuf, b.opts,
		b.eth(layers.EthernetTypeIPv4), innerIP, innerUDP, b.payload(payloadLen, seq, emit)); e != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnencodable, e)
	}

	outerIP := b.ipv4(seq)
	outerUDP := &layers.UDP{SrcPort: layers.UDPPort(ephemeralPort(b.id ^ seq)), DstPort: VXLANPort}
	outerUDP.SetNetworkLayerForChecksum(outerIP)
	vxlan := &layers.VXLAN{ValidIDFlag: true, VNI: b.cfg.VXLANVNI}
	return b.serialize(b.cfg.FrameSize,
		b.eth(layers.EthernetTypeIPv4), outerIP, outerUDP, vxlan, gopacket.Payload(innerBuf.Bytes()))
}

func (b *Builder) buildQinQ(seq uint32, emit time.Time) ([]byte, error) {
	outer := &layers.Dot1Q{VLANIdentifier: b.cfg.VLANOuter, Type: layers.EthernetTypeDot1Q}
	inner := &layers.Dot1Q{VLANIdentifier: b.cfg.VLANInner, Type: layers.EthernetTypeIPv4}
	ip := b.ipv4(seq)
	udp := &layers.UDP{SrcPort: layers.UDPPort(b.srcL4), DstPort: layers.UDPPort(b.cfg.DstL4Port)}
	udp.SetNetworkLayerForChecksum(ip)
	pl := b.payload(b.cfg.FrameSize-b.headerLen, seq, emit)
	return b.serialize(b.cfg.FrameSize, b.eth(layers.EthernetTypeQinQ), outer, inner, ip, udp, pl)
}

func (b *Builder) buildTCP(seq uint32, data []byte, syn bool) ([]byte, error) {
	ip := b.ipv4(seq)
	ip.Protocol = layers.IPProtocolTCP
	tcp := &layers.TCP{
		DstPort: layers.TCPPort(b.cfg.DstL4Port),
		Window:  65535,
	}
	if syn {
		// SYN flood randomizes the TCP sequence and source port per frame.
		tcp.SYN = true
		tcp.SrcPort = layers.TCPPort(ephemeralPort(mix(b.id, seq, 1)))
		tcp.Seq = mix(b.id, seq, 2)
	} else {
		tcp.PSH, tcp.ACK = true, true
		tcp.SrcPort = layers.TCPPort(b.srcL4)
		tcp.Seq = mix(b.id, seq, 3)
		tcp.Ack = mix(b.id, seq, 4)
	}
	tcp.SetNetworkLayerForChecksum(ip)
	return b.serialize(b.cfg.FrameSize, b.eth(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(data))
}

func (b *Builder) httpRequest() []byte {
	return []byte(fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s:%d\r\nUser-Agent: tgen\r\nConnection: keep-alive\r\n\r\n",
		b.cfg.DstIP, b.cfg.DstL4Port))
}

// mix derives a deterministic pseudo-random value from profile id, sequence number, and salt.
func mix(id, seq, salt uint32) uint32 {
	h := fnv.New32a()
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:], id)
	binary.LittleEndian.PutUint32(buf[4:], seq)
	binary.LittleEndian.PutUint32(buf[8:], salt)
	h.Write(buf[:])
	return h.Sum32()
}

func ephemeralPort(v uint32) uint16 {
	return uint16(49152 + mix(v, 0x9E37, 0)%16384)
}
