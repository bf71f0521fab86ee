package rfc2544_test

import (
	"context"
	"testing"
	"time"

	"github.com/vepnet/tgen/core/nnduration"
	"github.com/vepnet/tgen/core/testenv"
	"github.com/vepnet/tgen/rfc2544"
)

var makeAR = testenv.MakeAR

// simFixture emulates a device under test that forwards at most
// capacityMbps and at most maxBurst back-to-back frames without loss.
type simFixture struct {
	capacityMbps float64
	maxBurst     uint64
	latency      time.Duration
	trialDelay   time.Duration
	trials       int
}

func (f *simFixture) Trial(ctx context.Context, spec rfc2544.TrialSpec) (tr rfc2544.TrialResult, e error) {
	f.trials++
	if f.trialDelay > 0 {
		select {
		case <-ctx.Done():
			return tr, ctx.Err()
		case <-time.After(f.trialDelay):
		}
	}

	if spec.BurstLen > 0 {
		tr.TxFrames = spec.BurstLen
		tr.RxFrames = spec.BurstLen
		if spec.BurstLen > f.maxBurst {
			tr.RxFrames = f.maxBurst
		}
		return tr, nil
	}

	tr.TxFrames = 1000000
	tr.RxFrames = tr.TxFrames
	if spec.RateMbps > f.capacityMbps {
		tr.RxFrames = uint64(float64(tr.TxFrames) * f.capacityMbps / spec.RateMbps)
	}
	if spec.SampleLatency {
		tr.LatencySamples = tr.RxFrames
		tr.LatencyMin, tr.LatencyMean, tr.LatencyMax = f.latency, f.latency, f.latency
	}
	return tr, nil
}

func (f *simFixture) Close() error {
	return nil
}

type simFactory struct {
	fx    *simFixture
	speed int
}

func (sf simFactory) New(string) (rfc2544.Fixture, int, error) {
	return sf.fx, sf.speed, nil
}

func wait(t *testing.T, d *rfc2544.Driver, profileName string) rfc2544.Results {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, e := d.Results(profileName)
		if e == nil && res.State != rfc2544.StateRunning {
			return res
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sweep did not finish")
	return rfc2544.Results{}
}

func TestThroughputSearch(t *testing.T) {
	assert, require := makeAR(t)

	fx := &simFixture{capacityMbps: 600}
	d := rfc2544.NewDriver(simFactory{fx: fx, speed: 1000})
	require.NoError(d.Start(rfc2544.Config{
		Profile:       "P1",
		Tests:         []rfc2544.Test{rfc2544.TestThroughput},
		FrameSizes:    []int{512, 1518},
		TrialDuration: nnduration.Milliseconds(1),
	}))

	res := wait(t, d, "P1")
	assert.Equal(rfc2544.StateDone, res.State)
	require.Len(res.Throughput, 2)
	for _, tr := range res.Throughput {
		assert.False(tr.Failed)
		assert.InDelta(600, tr.PassMbps, 600*0.02)
		assert.LessOrEqual(tr.Loss, rfc2544.DefaultLossThreshold)
	}
}

func TestLatencyAndLoss(t *testing.T) {
	assert, require := makeAR(t)

	fx := &simFixture{capacityMbps: 500, latency: 250 * time.Microsecond}
	d := rfc2544.NewDriver(simFactory{fx: fx, speed: 1000})
	require.NoError(d.Start(rfc2544.Config{
		Profile:         "P1",
		Tests:           []rfc2544.Test{rfc2544.TestThroughput, rfc2544.TestLatency, rfc2544.TestFrameLoss},
		FrameSizes:      []int{1518},
		TrialDuration:   nnduration.Milliseconds(1),
		LatencyDuration: nnduration.Milliseconds(1),
	}))

	res := wait(t, d, "P1")
	require.NotNil(res.Latency)
	assert.EqualValues(250*time.Microsecond, res.Latency.Mean)
	assert.NotZero(res.Latency.Samples)

	require.Len(res.FrameLoss, 10)
	assert.Equal(100, res.FrameLoss[0].Percent)
	assert.Equal(10, res.FrameLoss[9].Percent)
	// Offered 1000 Mbps against 500 Mbps capacity loses half.
	assert.InDelta(0.5, res.FrameLoss[0].Loss, 0.01)
	// At or below capacity there is no loss.
	assert.Zero(res.FrameLoss[9].Loss)
}

func TestBackToBack(t *testing.T) {
	assert, require := makeAR(t)

	fx := &simFixture{capacityMbps: 1000, maxBurst: 1000}
	d := rfc2544.NewDriver(simFactory{fx: fx, speed: 1000})
	require.NoError(d.Start(rfc2544.Config{
		Profile:       "P1",
		Tests:         []rfc2544.Test{rfc2544.TestBackToBack},
		FrameSizes:    []int{64},
		TrialDuration: nnduration.Milliseconds(1),
	}))

	res := wait(t, d, "P1")
	require.NotNil(res.BackToBack)
	assert.EqualValues(1000, res.BackToBack.LongestBurst)
}

func TestCancelAndRerun(t *testing.T) {
	assert, require := makeAR(t)

	fx := &simFixture{capacityMbps: 600, trialDelay: 50 * time.Millisecond}
	d := rfc2544.NewDriver(simFactory{fx: fx, speed: 1000})
	cfg := rfc2544.Config{
		Profile:       "P1",
		Tests:         []rfc2544.Test{rfc2544.TestThroughput},
		TrialDuration: nnduration.Milliseconds(1),
	}
	require.NoError(d.Start(cfg))
	assert.ErrorIs(d.Start(cfg), rfc2544.ErrRunning)

	require.NoError(d.Cancel("P1"))
	res := wait(t, d, "P1")
	assert.Equal(rfc2544.StateCanceled, res.State)

	// A finished run may be replaced.
	fx.trialDelay = 0
	require.NoError(d.Start(cfg))
	res = wait(t, d, "P1")
	assert.Equal(rfc2544.StateDone, res.State)

	_, e := d.Results("missing")
	assert.ErrorIs(e, rfc2544.ErrNoResults)
	assert.NoError(d.Close())
}
