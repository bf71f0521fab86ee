//go:build linux

package rfc2544

import (
	"time"

	"github.com/vepnet/tgen/framegen"
	"github.com/vepnet/tgen/port/afpacket"
)

// OpenCapture opens an AF_PACKET tap on the named device, filtering for
// signed frames. It satisfies CaptureOpener.
func OpenCapture(portName string) (Capture, error) {
	hdl, e := afpacket.New(portName)
	if e != nil {
		return nil, e
	}
	return &afpacketCapture{hdl: hdl}, nil
}

type afpacketCapture struct {
	hdl *afpacket.Handle
}

// Read implements Capture interface.
func (c *afpacketCapture) Read() (sig framegen.Signature, at time.Time, e error) {
	for {
		data, ci, e := c.hdl.ZeroCopyReadPacketData()
		if e != nil {
			return sig, at, e
		}
		if sig, ok := framegen.FindSignature(data); ok {
			return sig, ci.Timestamp, nil
		}
	}
}

// Close implements Capture interface.
func (c *afpacketCapture) Close() error {
	return c.hdl.Close()
}
