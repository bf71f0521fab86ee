package profile

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Counters contains a point-in-time snapshot of profile counters.
type Counters struct {
	FramesSent     uint64    `json:"framesSent"`
	BytesSent      uint64    `json:"bytesSent"`
	LossDrops      uint64    `json:"lossDrops"`
	DupEmits       uint64    `json:"dupEmits"`
	ReorderEvents  uint64    `json:"reorderEvents"`
	ShaperOverruns uint64    `json:"shaperOverruns"`
	LastSend       time.Time `json:"lastSend,omitempty"`
}

func (cnt Counters) String() string {
	return fmt.Sprintf("TX %dfrm %db loss=%d dup=%d reorder=%d overrun=%d",
		cnt.FramesSent, cnt.BytesSent, cnt.LossDrops, cnt.DupEmits, cnt.ReorderEvents, cnt.ShaperOverruns)
}

// CountersRef holds live profile counters.
// Pipeline stages increment the atomic fields; readers snapshot them lock-free.
type CountersRef struct {
	FramesSent     atomic.Uint64
	BytesSent      atomic.Uint64
	LossDrops      atomic.Uint64
	DupEmits       atomic.Uint64
	ReorderEvents  atomic.Uint64
	ShaperOverruns atomic.Uint64
	LastSendNano   atomic.Int64
}

// Read returns a snapshot.
func (ref *CountersRef) Read() (cnt Counters) {
	cnt.FramesSent = ref.FramesSent.Load()
	cnt.BytesSent = ref.BytesSent.Load()
	cnt.LossDrops = ref.LossDrops.Load()
	cnt.DupEmits = ref.DupEmits.Load()
	cnt.ReorderEvents = ref.ReorderEvents.Load()
	cnt.ShaperOverruns = ref.ShaperOverruns.Load()
	if nano := ref.LastSendNano.Load(); nano != 0 {
		cnt.LastSend = time.Unix(0, nano)
	}
	return cnt
}

// Reset zeroes all counters.
func (ref *CountersRef) Reset() {
	ref.FramesSent.Store(0)
	ref.BytesSent.Store(0)
	ref.LossDrops.Store(0)
	ref.DupEmits.Store(0)
	ref.ReorderEvents.Store(0)
	ref.ShaperOverruns.Store(0)
	ref.LastSendNano.Store(0)
}
