// Package pacer schedules frame emission instants for a target bandwidth.
package pacer

import (
	"sync"
	"time"
)

// EthernetOverhead is the per-frame on-wire overhead in octets: preamble,
// start-of-frame delimiter, and minimum inter-frame gap.
const EthernetOverhead = 20

// DefaultBurst bounds how many frames may be released back-to-back after the
// pacer falls behind wall clock.
const DefaultBurst = 64

// Pacer hands out monotonically increasing due instants so that the long-run
// emission rate matches the configured bandwidth. It is a token bucket with
// a bounded burst: when the caller falls behind, at most Burst frames are
// released immediately before pacing resumes.
//
// A Pacer with zero bandwidth is paused; Tick reports ok=false.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	burst    int
	next     time.Time
}

// Interval returns the per-frame interval for a bandwidth and L2 frame size,
// accounting for on-wire overhead. Zero bandwidth yields zero.
func Interval(bandwidthMbps float64, frameSize int) time.Duration {
	if bandwidthMbps <= 0 {
		return 0
	}
	bits := float64(frameSize+EthernetOverhead) * 8
	return time.Duration(bits * 1000 / bandwidthMbps) // bits/Mbps = µs; ×1000 = ns
}

// New creates a Pacer releasing its first frame at start.
func New(bandwidthMbps float64, frameSize int, start time.Time) *Pacer {
	p := &Pacer{burst: DefaultBurst, next: start}
	p.interval = Interval(bandwidthMbps, frameSize)
	return p
}

// Tick reserves the next emission instant. The caller sleeps until due if it
// is in the future. ok is false while the pacer is paused.
func (p *Pacer) Tick(now time.Time) (due time.Time, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interval == 0 {
		return time.Time{}, false
	}

	// Cap accumulated credit so an idle or stalled caller cannot flood.
	if floor := now.Add(-time.Duration(p.burst) * p.interval); p.next.Before(floor) {
		p.next = floor
	}
	due = p.next
	p.next = p.next.Add(p.interval)
	return due, true
}

// SetRate changes the target bandwidth, rebasing the schedule at now.
// Credit accumulated under the previous rate is discarded.
func (p *Pacer) SetRate(bandwidthMbps float64, frameSize int, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = Interval(bandwidthMbps, frameSize)
	if p.next.Before(now) {
		p.next = now
	}
}

// IntervalDuration returns the current per-frame interval, zero when paused.
func (p *Pacer) IntervalDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}
