package port

import (
	"errors"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Transmitter limits.
const (
	// DefaultQueueCapacity bounds frames admitted but not yet written.
	DefaultQueueCapacity = 8192

	// VLANAllowance is extra room above the MTU for stacked VLAN tags.
	VLANAllowance = 8

	// ShutdownGrace bounds queue draining during Close.
	ShutdownGrace = 500 * time.Millisecond

	maxWriteAttempts = 4
	initialBackoff   = 50 * time.Microsecond
)

// Error conditions.
var (
	ErrPortUnavailable = errors.New("port link is down")
	ErrOverflow        = errors.New("transmit queue is full")
	ErrOversize        = errors.New("frame exceeds port MTU plus VLAN allowance")
	ErrClosed          = errors.New("transmitter is closed")
)

// Handle represents a raw-L2 send endpoint bound to exactly one device.
type Handle interface {
	WritePacketData(pkt []byte) error
	Close() error
}

// TxTimestamper is implemented by handles capturing hardware TX timestamps.
type TxTimestamper interface {
	LastTxTimestamp() time.Time
}

// Transmitter owns a port's raw send endpoint and serializes writes.
//
// Frames are admitted with a due time; the scheduling task sleeps until the
// earliest due time and writes frames in (due, enqueue) order.
type Transmitter struct {
	port    *Port
	hdl     Handle
	input   chan txFrame
	flush   chan struct{}
	closing chan struct{}
	done    chan struct{}
	seq     atomic.Uint64
}

func newTransmitter(p *Port, hdl Handle) *Transmitter {
	tx := &Transmitter{
		port:    p,
		hdl:     hdl,
		input:   make(chan txFrame, DefaultQueueCapacity),
		flush:   make(chan struct{}, 1),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go tx.loop()
	return tx
}

// Send enqueues a frame to be written at or after due.
//
// While the port link is down, frames are accepted and immediately counted as
// dropped, and ErrPortUnavailable is returned. A saturated queue rejects the
// frame with ErrOverflow, likewise counting it as dropped.
func (tx *Transmitter) Send(frame []byte, due time.Time) error {
	select {
	case <-tx.closing:
		return ErrClosed
	default:
	}
	if len(frame) > maxFrameLen(tx.port.cfg.MTU) {
		return ErrOversize
	}
	if !tx.port.IsUp() {
		tx.port.cnt.TxDropped.Add(1)
		return ErrPortUnavailable
	}

	select {
	case tx.input <- txFrame{payload: frame, due: due, seq: tx.seq.Add(1)}:
		return nil
	default:
		tx.port.cnt.TxDropped.Add(1)
		return ErrOverflow
	}
}

// maxFrameLen returns the longest admissible frame for an MTU.
func maxFrameLen(mtu int) int {
	return 14 + mtu + VLANAllowance
}

// Close drains the queue within ShutdownGrace, then force-closes the endpoint.
func (tx *Transmitter) Close() error {
	select {
	case <-tx.closing:
		<-tx.done
		return nil
	default:
	}
	close(tx.closing)
	<-tx.done
	return tx.hdl.Close()
}

// flushDown is invoked on link-down; pending queue contents become drops.
func (tx *Transmitter) flushDown() {
	select {
	case tx.flush <- struct{}{}:
	default:
	}
}

func (tx *Transmitter) loop() {
	defer close(tx.done)
	var q txQueue
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	discard := func() {
		n := uint64(len(q)) + uint64(len(tx.input))
		q = q[:0]
		for {
			select {
			case <-tx.input:
			default:
				if n > 0 {
					tx.port.cnt.TxDropped.Add(n)
					logger.Warn("transmit queue flushed", tx.port.logField(), zap.Uint64("dropped", n))
				}
				return
			}
		}
	}

	for {
		if q.Len() == 0 {
			select {
			case f := <-tx.input:
				q.push(f)
			case <-tx.flush:
				discard()
			case <-tx.closing:
				tx.drain(&q)
				return
			}
			continue
		}

		timer.Reset(time.Until(q.head().due))
		select {
		case f := <-tx.input:
			q.push(f)
		case <-timer.C:
			tx.write(q.pop())
		case <-tx.flush:
			discard()
		case <-tx.closing:
			tx.drain(&q)
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// drain writes remaining frames until the queue empties or the grace period
// expires; leftovers are counted as dropped.
func (tx *Transmitter) drain(q *txQueue) {
	for {
		select {
		case f := <-tx.input:
			q.push(f)
		default:
			goto drained
		}
	}
drained:
	deadline := time.Now().Add(ShutdownGrace)
	for q.Len() > 0 {
		f := q.head()
		if f.due.After(deadline) || time.Now().After(deadline) {
			break
		}
		if d := time.Until(f.due); d > 0 {
			time.Sleep(d)
		}
		tx.write(q.pop())
	}
	if n := q.Len(); n > 0 {
		tx.port.cnt.TxDropped.Add(uint64(n))
		logger.Warn("frames dropped at shutdown", tx.port.logField(), zap.Int("dropped", n))
	}
}

func (tx *Transmitter) write(f txFrame) {
	if !tx.port.IsUp() {
		tx.port.cnt.TxDropped.Add(1)
		return
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		now := time.Now()
		e := tx.hdl.WritePacketData(f.payload)
		if e == nil {
			tx.port.cnt.TxFrames.Add(1)
			tx.port.cnt.TxBytes.Add(uint64(len(f.payload)))
			if ts, ok := tx.hdl.(TxTimestamper); ok && tx.port.cfg.Caps.HWTimestamp {
				tx.port.cnt.LastTxNano.Store(ts.LastTxTimestamp().UnixNano())
			} else {
				tx.port.cnt.LastTxNano.Store(now.UnixNano())
			}
			return
		}
		if !isTransient(e) || attempt >= maxWriteAttempts {
			tx.port.cnt.TxDropped.Add(1)
			logger.Debug("write error", tx.port.logField(), zap.Error(e), zap.Int("attempts", attempt))
			return
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

func isTransient(e error) bool {
	return errors.Is(e, syscall.EAGAIN) || errors.Is(e, syscall.ENOBUFS) || errors.Is(e, syscall.EINTR)
}
