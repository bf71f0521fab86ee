package port

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Counters contains a point-in-time snapshot of port TX counters.
type Counters struct {
	TxFrames  uint64    `json:"txFrames"`
	TxBytes   uint64    `json:"txBytes"`
	TxDropped uint64    `json:"txDropped"`
	LastTx    time.Time `json:"lastTx,omitempty"`
}

func (cnt Counters) String() string {
	return fmt.Sprintf("TX %dfrm %db %ddropped", cnt.TxFrames, cnt.TxBytes, cnt.TxDropped)
}

// CountersRef holds live port counters as atomic monotonic fields.
// The transmitter task is the only writer; snapshots are read lock-free.
type CountersRef struct {
	TxFrames   atomic.Uint64
	TxBytes    atomic.Uint64
	TxDropped  atomic.Uint64
	LastTxNano atomic.Int64
}

// Read returns a snapshot.
func (ref *CountersRef) Read() (cnt Counters) {
	cnt.TxFrames = ref.TxFrames.Load()
	cnt.TxBytes = ref.TxBytes.Load()
	cnt.TxDropped = ref.TxDropped.Load()
	if nano := ref.LastTxNano.Load(); nano != 0 {
		cnt.LastTx = time.Unix(0, nano)
	}
	return cnt
}

// Reset zeroes all counters.
func (ref *CountersRef) Reset() {
	ref.TxFrames.Store(0)
	ref.TxBytes.Store(0)
	ref.TxDropped.Store(0)
	ref.LastTxNano.Store(0)
}
