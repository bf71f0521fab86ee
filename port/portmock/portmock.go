// Package portmock provides an in-memory port handle for tests.
package portmock

import (
	"net/netip"
	"sync"
	"syscall"
	"time"

	"github.com/vepnet/tgen/port"
)

// Handle records written frames instead of hitting a NIC.
type Handle struct {
	mu     sync.Mutex
	frames [][]byte
	times  []time.Time

	// FailWrites makes the next N writes fail with EAGAIN.
	FailWrites int
	// WriteErr, if set, is returned by every write.
	WriteErr error
	// BlockWrites, if non-nil, stalls every write until the channel closes.
	BlockWrites chan struct{}
}

var _ port.Handle = (*Handle)(nil)

// New creates a mock handle.
func New() *Handle {
	return &Handle{}
}

// WritePacketData implements port.Handle interface.
func (h *Handle) WritePacketData(pkt []byte) error {
	h.mu.Lock()
	block := h.BlockWrites
	h.mu.Unlock()
	if block != nil {
		<-block
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.WriteErr != nil {
		return h.WriteErr
	}
	if h.FailWrites > 0 {
		h.FailWrites--
		return syscall.EAGAIN
	}
	h.frames = append(h.frames, append([]byte(nil), pkt...))
	h.times = append(h.times, time.Now())
	return nil
}

// Close implements io.Closer interface.
func (h *Handle) Close() error {
	return nil
}

// Count returns the number of frames written.
func (h *Handle) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// Frames returns a copy of written frames.
func (h *Handle) Frames() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.frames...)
}

// Times returns write timestamps.
func (h *Handle) Times() []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Time(nil), h.times...)
}

// MakePort creates and publishes a port with a mock handle.
func MakePort(name, mac string) (*port.Port, *Handle) {
	hdl := New()
	p, e := port.New(port.Config{
		Name:      name,
		MAC:       mac,
		IPv4:      netip.MustParsePrefix("10.0.0.1/24"),
		IPv6:      netip.MustParsePrefix("fd00::1/64"),
		SpeedMbps: 1000,
		MTU:       9000,
	}, hdl)
	if e != nil {
		panic(e)
	}
	port.Put(p)
	return p, hdl
}
