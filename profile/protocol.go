package profile

// Protocol selects the frame encapsulation of a profile.
type Protocol string

// Recognized protocols.
const (
	ProtocolIPv4      Protocol = "ipv4"
	ProtocolIPv6      Protocol = "ipv6"
	ProtocolMPLS      Protocol = "mpls"
	ProtocolVXLAN     Protocol = "vxlan"
	ProtocolQinQ      Protocol = "qinq"
	ProtocolUDPFlood  Protocol = "udp-flood"
	ProtocolSYNFlood  Protocol = "tcp-syn-flood"
	ProtocolHTTPFlood Protocol = "http-flood"
	ProtocolDNSAmp    Protocol = "dns-amp"
)

// Header lengths, in octets.
const (
	EthernetHeaderLength = 14
	VLANTagLength        = 4
	MPLSShimLength       = 4
	IPv4HeaderLength     = 20
	IPv6HeaderLength     = 40
	UDPHeaderLength      = 8
	TCPHeaderLength      = 20
	VXLANHeaderLength    = 8
	SignatureLength      = 16
	DNSQueryLength       = 29 // DNS header + QNAME "example.com" + QTYPE/QCLASS

	// minEthernetFrame is the shortest Ethernet frame excluding FCS.
	minEthernetFrame = 60
)

var protocolMinFrameSizes = map[Protocol]int{
	ProtocolIPv4:      MinFrameSize,
	ProtocolIPv6:      EthernetHeaderLength + IPv6HeaderLength + UDPHeaderLength + SignatureLength,
	ProtocolMPLS:      MinFrameSize,
	// The inner Ethernet frame is padded to the 60-octet minimum before encapsulation.
	ProtocolVXLAN: EthernetHeaderLength + IPv4HeaderLength + UDPHeaderLength + VXLANHeaderLength + minEthernetFrame,
	ProtocolQinQ:      EthernetHeaderLength + 2*VLANTagLength + IPv4HeaderLength + UDPHeaderLength + SignatureLength,
	ProtocolUDPFlood:  MinFrameSize,
	ProtocolSYNFlood:  MinFrameSize,
	ProtocolHTTPFlood: MinFrameSize,
	ProtocolDNSAmp:    EthernetHeaderLength + IPv4HeaderLength + UDPHeaderLength + DNSQueryLength,
}

// Valid determines whether p is a recognized protocol.
func (p Protocol) Valid() bool {
	_, ok := protocolMinFrameSizes[p]
	return ok
}

// MinFrameSize returns the smallest frame size that fits the encapsulation and payload signature.
func (p Protocol) MinFrameSize() int {
	if sz, ok := protocolMinFrameSizes[p]; ok {
		return sz
	}
	return MinFrameSize
}

// DefaultDstL4Port returns the destination L4 port used when the descriptor leaves it unset.
func (p Protocol) DefaultDstL4Port() uint16 {
	switch p {
	case ProtocolDNSAmp:
		return 53
	case ProtocolHTTPFlood:
		return 80
	}
	return 9999
}

func (p Protocol) String() string {
	return string(p)
}
