// Package rfc2544 runs benchmark sweeps against a traffic profile.
package rfc2544

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/core/nnduration"
	"go.uber.org/zap"
)

var logger = logging.New("rfc2544")

// Test selects one benchmark within a sweep.
type Test string

// Benchmark tests.
const (
	TestThroughput Test = "throughput"
	TestLatency    Test = "latency"
	TestFrameLoss  Test = "frame-loss"
	TestBackToBack Test = "back-to-back"
)

// StandardFrameSizes are the frame sizes of the RFC 2544 methodology.
var StandardFrameSizes = []int{64, 128, 256, 512, 1024, 1280, 1518}

// Defaults.
const (
	DefaultTrialDuration   = 60 * time.Second
	DefaultLatencyDuration = 120 * time.Second
	DefaultLossThreshold   = 1e-5
	DefaultLowMbps         = 1

	// searchResolution ends the throughput binary search when the window
	// shrinks below this fraction of the upper bound.
	searchResolution = 0.01

	maxSearchSteps = 20
	maxBurstLength = 1 << 20
)

// Error conditions.
var (
	ErrRunning   = errors.New("a sweep is already running for this profile")
	ErrNoResults = errors.New("no sweep results for this profile")
)

// Config describes one sweep request.
type Config struct {
	Profile string `json:"profile"`
	Tests   []Test `json:"tests,omitempty"` // default: all four

	TrialDuration   nnduration.Milliseconds `json:"trialDuration,omitempty"`
	LatencyDuration nnduration.Milliseconds `json:"latencyDuration,omitempty"`
	LossThreshold   float64                 `json:"lossThreshold,omitempty"`
	LowMbps         float64                 `json:"lowMbps,omitempty"`
	HighMbps        float64                 `json:"highMbps,omitempty"` // default: nominal port speed
	FrameSizes      []int                   `json:"frameSizes,omitempty"`
}

func (cfg *Config) applyDefaults() {
	if len(cfg.Tests) == 0 {
		cfg.Tests = []Test{TestThroughput, TestLatency, TestFrameLoss, TestBackToBack}
	}
	if cfg.TrialDuration == 0 {
		cfg.TrialDuration = nnduration.Milliseconds(DefaultTrialDuration / time.Millisecond)
	}
	if cfg.LatencyDuration == 0 {
		cfg.LatencyDuration = nnduration.Milliseconds(DefaultLatencyDuration / time.Millisecond)
	}
	if cfg.LossThreshold == 0 {
		cfg.LossThreshold = DefaultLossThreshold
	}
	if cfg.LowMbps == 0 {
		cfg.LowMbps = DefaultLowMbps
	}
	if len(cfg.FrameSizes) == 0 {
		cfg.FrameSizes = StandardFrameSizes
	}
}

func (cfg Config) has(t Test) bool {
	for _, x := range cfg.Tests {
		if x == t {
			return true
		}
	}
	return false
}

// ThroughputResult is the binary search outcome for one frame size.
type ThroughputResult struct {
	FrameSize int     `json:"frameSize"`
	PassMbps  float64 `json:"passMbps"`
	Loss      float64 `json:"loss"`
	Failed    bool    `json:"failed,omitempty"`
}

// LatencyResult summarizes echoed-frame latency samples.
type LatencyResult struct {
	RateMbps float64                 `json:"rateMbps"`
	Samples  uint64                  `json:"samples"`
	Min      nnduration.Nanoseconds  `json:"min"`
	Mean     nnduration.Nanoseconds  `json:"mean"`
	Max      nnduration.Nanoseconds  `json:"max"`
}

// LossStep is one point of the frame loss sweep.
type LossStep struct {
	Percent     int     `json:"percent"`
	OfferedMbps float64 `json:"offeredMbps"`
	Loss        float64 `json:"loss"`
}

// BackToBackResult records the longest lossless burst.
type BackToBackResult struct {
	LongestBurst uint64 `json:"longestBurst"`
}

// State is a sweep lifecycle state.
type State string

// Sweep states.
const (
	StateRunning  State = "running"
	StateDone     State = "done"
	StateCanceled State = "canceled"
)

// Results is the accumulated outcome of one sweep. Completed tests appear as
// the sweep progresses; a canceled sweep keeps its partial results.
type Results struct {
	Profile    string             `json:"profile"`
	State      State              `json:"state"`
	Started    time.Time          `json:"started"`
	Finished   time.Time          `json:"finished"`
	Throughput []ThroughputResult `json:"throughput,omitempty"`
	Latency    *LatencyResult     `json:"latency,omitempty"`
	FrameLoss  []LossStep         `json:"frameLoss,omitempty"`
	BackToBack *BackToBackResult  `json:"backToBack,omitempty"`
}

// FixtureFactory binds a sweep to a profile's ports. SpeedMbps is the nominal
// speed of the source port, used as the default search upper bound.
type FixtureFactory interface {
	New(profileName string) (fx Fixture, speedMbps int, e error)
}

// Driver owns benchmark sweeps, at most one per profile. Sweeps run on their
// own transient pacers and never touch profile runner pipelines.
type Driver struct {
	factory FixtureFactory

	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	results Results
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDriver creates a Driver.
func NewDriver(factory FixtureFactory) *Driver {
	return &Driver{factory: factory, runs: map[string]*run{}}
}

// Start launches a sweep. It fails while a sweep for the same profile is
// still running; finished results are replaced.
func (d *Driver) Start(cfg Config) error {
	cfg.applyDefaults()
	fx, speed, e := d.factory.New(cfg.Profile)
	if e != nil {
		return e
	}
	if cfg.HighMbps == 0 {
		cfg.HighMbps = float64(speed)
		if cfg.HighMbps <= 0 {
			cfg.HighMbps = 1000
		}
	}

	d.mu.Lock()
	if r, ok := d.runs[cfg.Profile]; ok {
		select {
		case <-r.done:
		default:
			d.mu.Unlock()
			fx.Close()
			return fmt.Errorf("%w: %s", ErrRunning, cfg.Profile)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		results: Results{Profile: cfg.Profile, State: StateRunning, Started: time.Now().UTC()},
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	d.runs[cfg.Profile] = r
	d.mu.Unlock()

	go d.sweep(ctx, cfg, fx, r)
	return nil
}

// Results returns the newest sweep outcome for a profile.
func (d *Driver) Results(profileName string) (Results, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.runs[profileName]
	if !ok {
		return Results{}, fmt.Errorf("%w: %s", ErrNoResults, profileName)
	}
	return r.results, nil
}

// Cancel aborts a running sweep at the next step boundary.
func (d *Driver) Cancel(profileName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.runs[profileName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoResults, profileName)
	}
	r.cancel()
	return nil
}

// Close cancels all sweeps and waits for them to settle.
func (d *Driver) Close() error {
	d.mu.Lock()
	runs := make([]*run, 0, len(d.runs))
	for _, r := range d.runs {
		r.cancel()
		runs = append(runs, r)
	}
	d.mu.Unlock()
	for _, r := range runs {
		<-r.done
	}
	return nil
}

func (d *Driver) update(r *run, fn func(*Results)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&r.results)
}

func (d *Driver) sweep(ctx context.Context, cfg Config, fx Fixture, r *run) {
	defer close(r.done)
	defer fx.Close()
	logger.Info("sweep started", zap.String("profile", cfg.Profile), zap.Float64("highMbps", cfg.HighMbps))

	var passRate float64
	if cfg.has(TestThroughput) {
		for _, fs := range cfg.FrameSizes {
			if ctx.Err() != nil {
				break
			}
			tr := d.throughput(ctx, cfg, fx, fs)
			d.update(r, func(res *Results) { res.Throughput = append(res.Throughput, tr) })
			if !tr.Failed && tr.PassMbps > passRate {
				passRate = tr.PassMbps
			}
		}
	}
	if passRate == 0 {
		passRate = cfg.HighMbps
	}

	if cfg.has(TestLatency) && ctx.Err() == nil {
		if lr, e := d.latency(ctx, cfg, fx, passRate); e == nil {
			d.update(r, func(res *Results) { res.Latency = lr })
		} else {
			logger.Warn("latency test failed", zap.String("profile", cfg.Profile), zap.Error(e))
		}
	}

	if cfg.has(TestFrameLoss) && ctx.Err() == nil {
		for pct := 100; pct >= 10; pct -= 10 {
			if ctx.Err() != nil {
				break
			}
			step := d.lossStep(ctx, cfg, fx, pct)
			d.update(r, func(res *Results) { res.FrameLoss = append(res.FrameLoss, step) })
		}
	}

	if cfg.has(TestBackToBack) && ctx.Err() == nil {
		btb := d.backToBack(ctx, cfg, fx)
		d.update(r, func(res *Results) { res.BackToBack = btb })
	}

	d.update(r, func(res *Results) {
		res.Finished = time.Now().UTC()
		if ctx.Err() != nil {
			res.State = StateCanceled
		} else {
			res.State = StateDone
		}
	})
	logger.Info("sweep finished", zap.String("profile", cfg.Profile))
}

// throughput binary-searches the highest rate whose trial loss stays below
// the threshold. A failing trial at the lower bound marks the step failed;
// the sweep continues.
func (d *Driver) throughput(ctx context.Context, cfg Config, fx Fixture, frameSize int) ThroughputResult {
	out := ThroughputResult{FrameSize: frameSize, Failed: true}
	lo, hi := cfg.LowMbps, cfg.HighMbps
	for step := 0; step < maxSearchSteps && hi-lo > hi*searchResolution; step++ {
		if ctx.Err() != nil {
			return out
		}
		mid := (lo + hi) / 2
		tr, e := fx.Trial(ctx, TrialSpec{
			RateMbps:  mid,
			FrameSize: frameSize,
			Duration:  cfg.TrialDuration.Duration(),
		})
		if e != nil {
			logger.Warn("trial failed", zap.Int("frameSize", frameSize), zap.Error(e))
			return out
		}
		if loss := tr.lossRatio(); loss <= cfg.LossThreshold {
			out.PassMbps, out.Loss, out.Failed = mid, loss, false
			lo = mid
		} else {
			hi = mid
		}
	}
	return out
}

func (d *Driver) latency(ctx context.Context, cfg Config, fx Fixture, rate float64) (*LatencyResult, error) {
	tr, e := fx.Trial(ctx, TrialSpec{
		RateMbps:      rate,
		FrameSize:     cfg.FrameSizes[0],
		Duration:      cfg.LatencyDuration.Duration(),
		SampleLatency: true,
	})
	if e != nil {
		return nil, e
	}
	if tr.LatencySamples == 0 {
		return nil, errors.New("no echoed frames observed")
	}
	return &LatencyResult{
		RateMbps: rate,
		Samples:  tr.LatencySamples,
		Min:      nnduration.Nanoseconds(tr.LatencyMin),
		Mean:     nnduration.Nanoseconds(tr.LatencyMean),
		Max:      nnduration.Nanoseconds(tr.LatencyMax),
	}, nil
}

func (d *Driver) lossStep(ctx context.Context, cfg Config, fx Fixture, pct int) LossStep {
	offered := cfg.HighMbps * float64(pct) / 100
	step := LossStep{Percent: pct, OfferedMbps: offered, Loss: 1}
	tr, e := fx.Trial(ctx, TrialSpec{
		RateMbps:  offered,
		FrameSize: cfg.FrameSizes[0],
		Duration:  cfg.TrialDuration.Duration(),
	})
	if e == nil {
		step.Loss = tr.lossRatio()
	}
	return step
}

// backToBack doubles the burst length until loss appears, then narrows the
// window between the last lossless and first lossy lengths.
func (d *Driver) backToBack(ctx context.Context, cfg Config, fx Fixture) *BackToBackResult {
	lossless := func(burst uint64) bool {
		tr, e := fx.Trial(ctx, TrialSpec{
			RateMbps:  cfg.HighMbps,
			FrameSize: cfg.FrameSizes[0],
			BurstLen:  burst,
		})
		return e == nil && tr.RxFrames == tr.TxFrames && tr.TxFrames == burst
	}

	var longest uint64
	burst := uint64(2)
	for burst <= maxBurstLength && ctx.Err() == nil {
		if !lossless(burst) {
			break
		}
		longest = burst
		burst *= 2
	}
	lo, hi := longest, burst
	for hi-lo > 1 && lo > 0 && ctx.Err() == nil {
		mid := (lo + hi) / 2
		if lossless(mid) {
			lo, longest = mid, mid
		} else {
			hi = mid
		}
	}
	return &BackToBackResult{LongestBurst: longest}
}
