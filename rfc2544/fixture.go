package rfc2544

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vepnet/tgen/framegen"
	"github.com/vepnet/tgen/pacer"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/profile"
	"github.com/vepnet/tgen/registry"
)

// TrialSpec describes one timed (or burst-counted) trial.
type TrialSpec struct {
	RateMbps  float64
	FrameSize int

	// Duration bounds a timed trial. Ignored when BurstLen is set.
	Duration time.Duration

	// BurstLen, when non-zero, sends exactly this many frames back to back.
	BurstLen uint64

	// SampleLatency collects per-frame latency from echoed signatures.
	SampleLatency bool
}

// TrialResult reports one trial's transmit and receive observations.
type TrialResult struct {
	TxFrames uint64
	RxFrames uint64

	LatencySamples uint64
	LatencyMin     time.Duration
	LatencyMean    time.Duration
	LatencyMax     time.Duration
}

func (tr TrialResult) lossRatio() float64 {
	if tr.TxFrames == 0 {
		return 1
	}
	if tr.RxFrames >= tr.TxFrames {
		return 0
	}
	return float64(tr.TxFrames-tr.RxFrames) / float64(tr.TxFrames)
}

// Fixture executes trials for one profile. The sweep owns it exclusively and
// closes it when finished.
type Fixture interface {
	Trial(ctx context.Context, spec TrialSpec) (TrialResult, error)
	Close() error
}

// Capture is a signature-filtered receive tap on a port.
type Capture interface {
	// Read blocks until a signed frame arrives or the capture closes.
	Read() (sig framegen.Signature, at time.Time, e error)
	Close() error
}

// CaptureOpener opens a Capture on a named port. On hosts without a raw
// capture facility it may be nil, in which case trials count transmit only
// and report every offered frame as lost.
type CaptureOpener func(portName string) (Capture, error)

// settle is how long a trial waits after the last send for in-flight frames.
const settle = 200 * time.Millisecond

// PortFixture drives real trials through a profile's source port transmitter
// and counts echoed frames on the destination port.
type PortFixture struct {
	cfg     profile.Config
	src     *port.Port
	dstName string
	open    CaptureOpener
}

var _ Fixture = (*PortFixture)(nil)

// Trial implements Fixture interface.
func (f *PortFixture) Trial(ctx context.Context, spec TrialSpec) (tr TrialResult, e error) {
	cfg := f.cfg
	cfg.FrameSize = spec.FrameSize
	bld, e := framegen.New(cfg, f.src)
	if e != nil {
		return tr, e
	}

	var tap Capture
	rxDone := make(chan rxStats, 1)
	if f.open != nil {
		if tap, e = f.open(f.dstName); e != nil {
			return tr, e
		}
		go f.receive(tap, framegen.ProfileID(cfg.Name), spec.SampleLatency, rxDone)
	} else {
		rxDone <- rxStats{}
	}

	tr.TxFrames = f.transmit(ctx, bld, spec)

	time.Sleep(settle)
	if tap != nil {
		tap.Close()
	}
	rx := <-rxDone
	tr.RxFrames = rx.frames
	tr.LatencySamples = rx.samples
	tr.LatencyMin, tr.LatencyMean, tr.LatencyMax = rx.min, rx.mean(), rx.max
	return tr, ctx.Err()
}

func (f *PortFixture) transmit(ctx context.Context, bld *framegen.Builder, spec TrialSpec) (sent uint64) {
	tx := f.src.Transmitter()
	var seq uint32

	send := func(due time.Time) bool {
		frame, e := bld.Build(seq, due)
		if e != nil {
			return false
		}
		if e := tx.Send(frame, due); e == nil {
			sent++
		}
		seq++
		return true
	}

	if spec.BurstLen > 0 {
		now := time.Now()
		for i := uint64(0); i < spec.BurstLen && ctx.Err() == nil; i++ {
			if !send(now) {
				break
			}
		}
		return sent
	}

	pc := pacer.New(spec.RateMbps, spec.FrameSize, time.Now())
	deadline := time.Now().Add(spec.Duration)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		due, ok := pc.Tick(time.Now())
		if !ok {
			return sent
		}
		if d := time.Until(due); d > 0 {
			time.Sleep(d)
		}
		if !send(due) {
			break
		}
	}
	return sent
}

type rxStats struct {
	frames  uint64
	samples uint64
	sum     time.Duration
	min     time.Duration
	max     time.Duration
}

func (rx rxStats) mean() time.Duration {
	if rx.samples == 0 {
		return 0
	}
	return rx.sum / time.Duration(rx.samples)
}

func (f *PortFixture) receive(tap Capture, id uint32, sampleLatency bool, done chan<- rxStats) {
	var rx rxStats
	for {
		sig, at, e := tap.Read()
		if e != nil {
			done <- rx
			return
		}
		if sig.ProfileID != id {
			continue
		}
		rx.frames++
		if !sampleLatency {
			continue
		}
		// Both clocks are the process monotonic microsecond counter; the
		// subtraction survives the modulo-2^32 wrap.
		l := time.Duration(framegen.MonotonicMicros(at)-sig.EmitMicros) * time.Microsecond
		rx.samples++
		rx.sum += l
		if rx.min == 0 || l < rx.min {
			rx.min = l
		}
		if l > rx.max {
			rx.max = l
		}
	}
}

// Close implements Fixture interface.
func (f *PortFixture) Close() error {
	return nil
}

// RegistryFactory resolves profiles from the registry into port fixtures.
type RegistryFactory struct {
	Registry *registry.Registry
	Open     CaptureOpener
}

var _ FixtureFactory = RegistryFactory{}

// New implements FixtureFactory interface.
func (rf RegistryFactory) New(profileName string) (Fixture, int, error) {
	r := rf.Registry.Get(profileName)
	if r == nil {
		return nil, 0, fmt.Errorf("%w: %s", registry.ErrNotFound, profileName)
	}
	cfg := r.Config()
	src := port.Get(cfg.SrcPort)
	if src == nil {
		return nil, 0, errors.New("source port does not exist")
	}
	if dst := port.Get(cfg.DstPort); dst == nil {
		return nil, 0, errors.New("destination port does not exist")
	}
	return &PortFixture{cfg: cfg, src: src, dstName: cfg.DstPort, open: rf.Open}, src.Config().SpeedMbps, nil
}
