package shaper_test

import (
	"testing"
	"time"

	"github.com/vepnet/tgen/core/nnduration"
	"github.com/vepnet/tgen/core/testenv"
	"github.com/vepnet/tgen/profile"
	"github.com/vepnet/tgen/shaper"
)

var makeAR = testenv.MakeAR

func TestPassthrough(t *testing.T) {
	assert, require := makeAR(t)

	var cnt profile.CountersRef
	s := shaper.New(profile.Impairments{}, 1500, 1, &cnt)
	due := time.Now()
	out := s.Apply(due)
	require.Len(out, 1)
	assert.Equal(due, out[0].Due)
	assert.False(out[0].Duplicate)
}

func TestLoss(t *testing.T) {
	assert, _ := makeAR(t)

	var cnt profile.CountersRef
	s := shaper.New(profile.Impairments{LossPct: 100}, 1500, 1, &cnt)
	for i := 0; i < 100; i++ {
		assert.Empty(s.Apply(time.Now()))
	}
	assert.EqualValues(100, cnt.Read().LossDrops)

	cnt.Reset()
	s = shaper.New(profile.Impairments{LossPct: 50}, 1500, 2, &cnt)
	passed := 0
	for i := 0; i < 10000; i++ {
		passed += len(s.Apply(time.Now()))
	}
	assert.InDelta(5000, passed, 500)
	assert.InDelta(5000, float64(cnt.Read().LossDrops), 500)
}

func TestBurstLoss(t *testing.T) {
	assert, _ := makeAR(t)

	var cnt profile.CountersRef
	s := shaper.New(profile.Impairments{BurstLossPct: 20}, 1500, 3, &cnt)
	const n = 100000
	runs := 0
	lastDropped := false
	for i := 0; i < n; i++ {
		dropped := len(s.Apply(time.Now())) == 0
		if dropped && !lastDropped {
			runs++
		}
		lastDropped = dropped
	}
	// Entering the loss state with probability 0.2 per frame and staying for
	// a geometric run with mean 5 frames drops 5/(4+5) of frames long-run.
	drops := float64(cnt.Read().LossDrops)
	assert.InDelta(5.0/9.0*n, drops, 0.03*n)
	assert.InDelta(5, drops/float64(runs), 1)
}

func TestDuplicate(t *testing.T) {
	assert, require := makeAR(t)

	var cnt profile.CountersRef
	s := shaper.New(profile.Impairments{DuplicatePct: 100}, 1500, 1, &cnt)
	due := time.Now()
	out := s.Apply(due)
	require.Len(out, 2)
	assert.Equal(due, out[0].Due)
	assert.True(out[1].Duplicate)
	assert.Equal(shaper.DuplicateOffset, out[1].Due.Sub(out[0].Due))
	assert.EqualValues(1, cnt.Read().DupEmits)
}

func TestLatencyJitter(t *testing.T) {
	assert, require := makeAR(t)

	var cnt profile.CountersRef
	cfg := profile.Impairments{
		Latency: nnduration.Milliseconds(10),
		Jitter:  nnduration.Milliseconds(2),
	}
	s := shaper.New(cfg, 1500, 4, &cnt)
	due := time.Now()
	for i := 0; i < 1000; i++ {
		out := s.Apply(due)
		require.Len(out, 1)
		d := out[0].Due.Sub(due)
		assert.GreaterOrEqual(d, 8*time.Millisecond)
		assert.LessOrEqual(d, 12*time.Millisecond)
	}
}

func TestReorder(t *testing.T) {
	assert, require := makeAR(t)

	var cnt profile.CountersRef
	cfg := profile.Impairments{
		Latency:    nnduration.Milliseconds(10),
		Jitter:     nnduration.Milliseconds(2),
		ReorderPct: 100,
	}
	s := shaper.New(cfg, 1500, 5, &cnt)
	due := time.Now()
	for i := 0; i < 1000; i++ {
		out := s.Apply(due)
		require.Len(out, 1)
		// Base delay is 10ms±2ms; the excursion adds 10ms..14ms on top.
		d := out[0].Due.Sub(due)
		assert.GreaterOrEqual(d, 18*time.Millisecond)
		assert.LessOrEqual(d, 26*time.Millisecond)
	}
	assert.EqualValues(1000, cnt.Read().ReorderEvents)

	// With zero latency and jitter the excursion degenerates to a fixed
	// nudge, still pushing the frame behind its successors.
	cnt.Reset()
	s = shaper.New(profile.Impairments{ReorderPct: 100}, 1500, 5, &cnt)
	out := s.Apply(due)
	require.Len(out, 1)
	assert.Equal(100*time.Microsecond, out[0].Due.Sub(due))
	assert.EqualValues(1, cnt.Read().ReorderEvents)
}

func TestShapingCap(t *testing.T) {
	assert, require := makeAR(t)

	var cnt profile.CountersRef
	// 105-octet frames at 1 Mbps shaping = exactly 1 ms per frame.
	s := shaper.New(profile.Impairments{ShapingMbps: 1}, 105, 6, &cnt)

	due := time.Now()
	var prev time.Time
	for i := 0; i < 50; i++ {
		out := s.Apply(due)
		require.Len(out, 1)
		if i > 0 {
			assert.Equal(time.Millisecond, out[0].Due.Sub(prev))
		}
		prev = out[0].Due
	}

	// Offering far more than the cap accepts eventually overruns the backlog.
	for i := 0; i < 200; i++ {
		s.Apply(due)
	}
	assert.NotZero(cnt.Read().ShaperOverruns)
}

func TestDeterministic(t *testing.T) {
	assert, _ := makeAR(t)

	var c1, c2 profile.CountersRef
	cfg := profile.Impairments{LossPct: 30, DuplicatePct: 10}
	s1 := shaper.New(cfg, 1500, 42, &c1)
	s2 := shaper.New(cfg, 1500, 42, &c2)
	due := time.Now()
	for i := 0; i < 1000; i++ {
		assert.Equal(len(s1.Apply(due)), len(s2.Apply(due)))
	}
}
