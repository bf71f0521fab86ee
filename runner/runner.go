// Package runner drives frame emission for one enabled profile.
package runner

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/framegen"
	"github.com/vepnet/tgen/pacer"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/profile"
	"github.com/vepnet/tgen/shaper"
	"go.uber.org/zap"
)

var logger = logging.New("runner")

// MinStopGrace bounds how long Disable waits for the emission task to exit.
const MinStopGrace = 100 * time.Millisecond

// pausePoll is the re-check interval while the pacer is paused.
const pausePoll = 10 * time.Millisecond

// ErrState indicates an operation invalid in the current profile state.
var ErrState = errors.New("operation not permitted in current profile state")

// Runner owns the emission pipeline of one profile: a pacer schedules
// departures, the frame builder encodes each sequence number, the shaper
// applies impairments, and the source port transmitter writes frames at
// their due instants.
//
// The zero-value state is idle. Port unavailability is soft: frames keep
// being scheduled and the port counts them as dropped. Encoding errors are
// fatal and move the runner to the failed state.
type Runner struct {
	mu      sync.Mutex
	cfg     profile.Config
	state   profile.State
	failure error

	cnt profile.CountersRef
	src *port.Port
	bld atomic.Pointer[framegen.Builder]
	pc  *pacer.Pacer
	sh  *shaper.Shaper

	closing chan struct{}
	done    chan struct{}
}

// New creates an idle Runner for a validated profile descriptor.
func New(cfg profile.Config) *Runner {
	return &Runner{cfg: cfg, state: profile.StateIdle}
}

// Config returns the current descriptor.
func (r *Runner) Config() profile.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// State returns the current lifecycle state.
func (r *Runner) State() profile.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Failure returns the error that moved the runner to the failed state.
func (r *Runner) Failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}

// Counters returns a point-in-time snapshot of emission counters.
func (r *Runner) Counters() profile.Counters {
	return r.cnt.Read()
}

// ResetCounters zeroes the emission counters.
func (r *Runner) ResetCounters() {
	r.cnt.Reset()
}

// SetEnabled records the configured enabled mark without starting or
// stopping emission.
func (r *Runner) SetEnabled(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Enabled = v
}

// Enable resolves the source port and starts the emission task.
// Resolution failures leave the runner failed; Disable clears that state.
func (r *Runner) Enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != profile.StateIdle && r.state != profile.StateFailed {
		return fmt.Errorf("%w: %s", ErrState, r.state)
	}
	r.state = profile.StateStarting
	r.failure = nil
	// Each enable starts a fresh emission run; counters restart from zero.
	r.cnt.Reset()

	src := port.Get(r.cfg.SrcPort)
	if src == nil {
		return r.failLocked(fmt.Errorf("source port %q does not exist", r.cfg.SrcPort))
	}
	if dst := port.Get(r.cfg.DstPort); dst == nil {
		return r.failLocked(fmt.Errorf("destination port %q does not exist", r.cfg.DstPort))
	}
	bld, e := framegen.New(r.cfg, src)
	if e != nil {
		return r.failLocked(e)
	}

	now := time.Now()
	r.src = src
	r.bld.Store(bld)
	r.pc = pacer.New(r.cfg.BandwidthMbps, r.cfg.FrameSize, now)
	r.sh = shaper.New(r.cfg.Impairments, r.cfg.FrameSize, seed(r.cfg.Name), &r.cnt)
	r.closing = make(chan struct{})
	r.done = make(chan struct{})
	r.cfg.Enabled = true
	r.state = profile.StateRunning
	logger.Info("profile enabled", r.logField(), zap.Float64("bandwidthMbps", r.cfg.BandwidthMbps))

	go r.loop(r.closing, r.done)
	return nil
}

// Disable stops the emission task and returns the runner to idle.
// Frames already handed to the port transmitter still depart on schedule.
func (r *Runner) Disable() error {
	r.mu.Lock()
	if r.state == profile.StateFailed {
		r.state = profile.StateIdle
		r.cfg.Enabled = false
		r.mu.Unlock()
		return nil
	}
	if r.state != profile.StateRunning {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrState, r.state)
	}
	r.state = profile.StateStopping
	closing, done := r.closing, r.done
	grace := r.stopGraceLocked()
	r.mu.Unlock()

	close(closing)
	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("emission task did not exit within grace", r.logField())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == profile.StateStopping {
		r.state = profile.StateIdle
	}
	r.cfg.Enabled = false
	logger.Info("profile disabled", r.logField())
	return nil
}

// UpdateLive applies a hot-updatable descriptor change while running.
// The caller must have checked CanUpdateLive.
func (r *Runner) UpdateLive(next profile.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != profile.StateRunning {
		return fmt.Errorf("%w: %s", ErrState, r.state)
	}
	r.state = profile.StateUpdating

	if next.FrameSize != r.cfg.FrameSize {
		bld, e := framegen.New(next, r.src)
		if e != nil {
			r.state = profile.StateRunning
			return e
		}
		r.bld.Store(bld)
	}
	r.pc.SetRate(next.BandwidthMbps, next.FrameSize, time.Now())
	r.sh.SetConfig(next.Impairments, next.FrameSize)
	next.Enabled = true
	r.cfg = next
	r.state = profile.StateRunning
	logger.Info("profile updated", r.logField(), zap.Float64("bandwidthMbps", next.BandwidthMbps))
	return nil
}

// Update replaces the descriptor while idle or failed.
func (r *Runner) Update(next profile.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.IsActive() {
		return fmt.Errorf("%w: %s", ErrState, r.state)
	}
	next.Enabled = false
	r.cfg = next
	return nil
}

func (r *Runner) failLocked(e error) error {
	r.state = profile.StateFailed
	r.failure = e
	logger.Error("profile failed", r.logField(), zap.Error(e))
	return e
}

func (r *Runner) stopGraceLocked() time.Duration {
	g := r.cfg.Impairments.Latency.Duration()
	if g < MinStopGrace {
		g = MinStopGrace
	}
	return g + port.ShutdownGrace
}

func (r *Runner) logField() zap.Field {
	return zap.String("profile", r.cfg.Name)
}

func (r *Runner) loop(closing, done chan struct{}) {
	defer close(done)
	tx := r.src.Transmitter()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	var seq uint32
	for {
		select {
		case <-closing:
			return
		default:
		}

		due, ok := r.pc.Tick(time.Now())
		if !ok {
			timer.Reset(pausePoll)
			select {
			case <-closing:
				return
			case <-timer.C:
			}
			continue
		}
		if d := time.Until(due); d > 0 {
			timer.Reset(d)
			select {
			case <-closing:
				return
			case <-timer.C:
			}
		}

		frame, e := r.bld.Load().Build(seq, due)
		if e != nil {
			r.mu.Lock()
			r.failLocked(e)
			r.mu.Unlock()
			return
		}

		for _, em := range r.sh.Apply(due) {
			switch e := tx.Send(frame, em.Due); {
			case e == nil:
				r.cnt.FramesSent.Add(1)
				r.cnt.BytesSent.Add(uint64(len(frame)))
				r.cnt.LastSendNano.Store(em.Due.UnixNano())
			case errors.Is(e, port.ErrPortUnavailable) || errors.Is(e, port.ErrOverflow):
				// Soft: the port tracks drops, emission continues.
			default:
				r.mu.Lock()
				r.failLocked(e)
				r.mu.Unlock()
				return
			}
		}
		seq++
	}
}

// seed derives the impairment PRNG seed from the profile name, so restarts
// of the same profile impair the same sequence numbers.
func seed(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}
