//go:build linux

// Package afpacket provides a raw-L2 send endpoint backed by an AF_PACKET socket.
package afpacket

import (
	"fmt"

	"github.com/gopacket/gopacket/afpacket"
	"github.com/vepnet/tgen/port"
)

// Handle is a wrapper of afpacket.TPacket bound to one device.
type Handle struct {
	*afpacket.TPacket
}

var _ port.Handle = (*Handle)(nil)

// Close implements io.Closer interface.
func (h *Handle) Close() error {
	h.TPacket.Close()
	return nil
}

// New opens an AF_PACKET endpoint bound to the named device.
// Binding to the device, rather than sniffing promiscuously, ensures writes
// leave the intended physical port.
func New(device string) (*Handle, error) {
	tp, e := afpacket.NewTPacket(
		afpacket.OptInterface(device),
		afpacket.OptFrameSize(2048),
	)
	if e != nil {
		return nil, fmt.Errorf("afpacket %s: %w", device, e)
	}
	return &Handle{TPacket: tp}, nil
}
