package framegen

import "encoding/binary"

// dnsQuery builds a minimal recursive ANY query for example.com, the shape
// used by DNS amplification test traffic. The transaction ID is derived from
// the frame sequence so retransmission analysis can tell frames apart.
func dnsQuery(id, seq uint32) []byte {
	q := make([]byte, 0, 29)

	var hdr [12]byte
	binary.BigEndian.PutUint16(hdr[0:], uint16(mix(id, seq, 5))) // transaction ID
	binary.BigEndian.PutUint16(hdr[2:], 0x0100)                  // RD
	binary.BigEndian.PutUint16(hdr[4:], 1)                       // QDCOUNT
	q = append(q, hdr[:]...)

	for _, label := range []string{"example", "com"} {
		q = append(q, byte(len(label)))
		q = append(q, label...)
	}
	q = append(q, 0)          // root
	q = append(q, 0x00, 0xFF) // QTYPE ANY
	q = append(q, 0x00, 0x01) // QCLASS IN
	return q
}
