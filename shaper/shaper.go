// Package shaper applies configured impairments to scheduled frame emissions.
package shaper

import (
	"math/rand"
	"sync"
	"time"

	"github.com/vepnet/tgen/pacer"
	"github.com/vepnet/tgen/profile"
)

const (
	// DuplicateOffset separates a duplicated copy from its original.
	DuplicateOffset = 50 * time.Microsecond

	// meanBurstLength is the mean run length of the loss state in the
	// two-state burst loss model.
	meanBurstLength = 5

	// reorderFloor is the excursion of a reordered frame when latency and
	// jitter are both zero, so the frame still overtakes its immediate
	// successors.
	reorderFloor = 100 * time.Microsecond

	// MaxShapingDelay bounds the backlog a shaping cap may accumulate;
	// frames delayed past it are dropped as shaper overruns.
	MaxShapingDelay = 100 * time.Millisecond
)

// Emission is one scheduled frame departure produced by the pipeline.
type Emission struct {
	Due       time.Time
	Duplicate bool
}

// Shaper transforms the pacer's due instants through the impairment pipeline:
// random and burst loss, duplication, reordering, fixed latency with jitter,
// and an optional shaping bandwidth cap. Impairment decisions come from a
// per-profile seeded PRNG, so two runs of the same profile impair the same
// sequence numbers.
//
// Apply is called from a single runner goroutine; SetConfig may race with it
// and is serialized by the mutex.
type Shaper struct {
	mu        sync.Mutex
	cfg       profile.Impairments
	rng       *rand.Rand
	cnt       *profile.CountersRef
	burstLoss bool

	shapeInterval time.Duration
	shapeNext     time.Time
}

// New creates a Shaper for one profile. seed fixes the impairment PRNG.
func New(cfg profile.Impairments, frameSize int, seed int64, cnt *profile.CountersRef) *Shaper {
	s := &Shaper{
		rng: rand.New(rand.NewSource(seed)),
		cnt: cnt,
	}
	s.setConfigLocked(cfg, frameSize)
	return s
}

// SetConfig replaces the impairment parameters without resetting the PRNG
// or the shaping backlog.
func (s *Shaper) SetConfig(cfg profile.Impairments, frameSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConfigLocked(cfg, frameSize)
}

func (s *Shaper) setConfigLocked(cfg profile.Impairments, frameSize int) {
	s.cfg = cfg
	s.shapeInterval = pacer.Interval(cfg.ShapingMbps, frameSize)
}

// Apply runs one paced departure through the pipeline. It returns zero
// emissions when the frame is dropped, one normally, and two when duplicated.
func (s *Shaper) Apply(due time.Time) []Emission {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dropped() {
		s.cnt.LossDrops.Add(1)
		return nil
	}

	due = due.Add(s.delay())

	if s.shapeInterval > 0 {
		if s.shapeNext.After(due) {
			if s.shapeNext.Sub(due) > MaxShapingDelay {
				s.cnt.ShaperOverruns.Add(1)
				return nil
			}
			due = s.shapeNext
		}
		s.shapeNext = due.Add(s.shapeInterval)
	}

	out := []Emission{{Due: due}}
	if s.pct(s.cfg.DuplicatePct) {
		s.cnt.DupEmits.Add(1)
		out = append(out, Emission{Due: due.Add(DuplicateOffset), Duplicate: true})
	}
	return out
}

// dropped decides random and burst loss. Burst loss is a two-state model:
// the loss state is entered with probability BurstLossPct/100 per frame,
// drops every frame while active, and exits after a geometric run with mean
// meanBurstLength. The entering frame is the first of the run.
func (s *Shaper) dropped() bool {
	if s.pct(s.cfg.LossPct) {
		return true
	}
	if s.cfg.BurstLossPct > 0 {
		const pExit = 1.0 / meanBurstLength
		if !s.burstLoss && s.rng.Float64()*100 < s.cfg.BurstLossPct {
			s.burstLoss = true
		}
		if s.burstLoss {
			s.burstLoss = s.rng.Float64() >= pExit
			return true
		}
	}
	return false
}

// delay computes the per-frame latency: the configured base, triangular
// jitter, and the occasional reordering excursion.
func (s *Shaper) delay() time.Duration {
	d := s.cfg.Latency.Duration()
	if j := s.cfg.Jitter.Duration(); j > 0 {
		// Sum of two uniforms gives a triangular distribution on [-j, +j].
		t := (s.rng.Float64() + s.rng.Float64() - 1) * float64(j)
		d += time.Duration(t)
	}
	if s.pct(s.cfg.ReorderPct) {
		s.cnt.ReorderEvents.Add(1)
		// Extra delay in [latency, latency+2*jitter), enough to overtake
		// frames emitted up to one full delay later.
		extra := s.cfg.Latency.Duration() + time.Duration(s.rng.Float64()*float64(2*s.cfg.Jitter.Duration()))
		if extra <= 0 {
			extra = reorderFloor
		}
		d += extra
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (s *Shaper) pct(p float64) bool {
	return p > 0 && s.rng.Float64()*100 < p
}
