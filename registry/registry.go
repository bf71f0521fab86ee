// Package registry tracks traffic profiles and their runners.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vepnet/tgen/core/logging"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/profile"
	"github.com/vepnet/tgen/runner"
	"go.uber.org/zap"
)

var logger = logging.New("registry")

// Error conditions.
var (
	ErrNotFound = errors.New("profile does not exist")
	ErrExists   = errors.New("profile name is already in use")
	ErrActive   = errors.New("profile is active; disable it first")
	ErrFrozen   = errors.New("field is frozen while the profile is running; disable it first")
)

// Registry is the authoritative profile table. All mutations funnel through
// one mutex, so concurrent control requests serialize; reads take counter
// snapshots without blocking emission.
type Registry struct {
	mu       sync.Mutex
	profiles map[string]*runner.Runner
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{profiles: map[string]*runner.Runner{}}
}

// Add validates and inserts a profile. A descriptor with Enabled set starts
// emitting immediately. Clamp warnings are returned alongside success.
func (reg *Registry) Add(cfg profile.Config) (warns []string, e error) {
	warns = cfg.ApplyDefaults()
	if e = cfg.Validate(); e != nil {
		return warns, e
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.profiles[cfg.Name]; ok {
		return warns, fmt.Errorf("%w: %s", ErrExists, cfg.Name)
	}

	enable := cfg.Enabled
	cfg.Enabled = false
	r := runner.New(cfg)
	reg.profiles[cfg.Name] = r
	logger.Info("profile added", zap.String("profile", cfg.Name), zap.String("protocol", string(cfg.Protocol)))
	emitter.Emit(evtProfileAdd, cfg.Name)

	if enable {
		if e = r.Enable(); e != nil {
			return warns, e
		}
	}
	return warns, nil
}

// Get retrieves a profile runner by name.
func (reg *Registry) Get(name string) *runner.Runner {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.profiles[name]
}

// List returns all runners sorted by profile name.
func (reg *Registry) List() (list []*runner.Runner) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range reg.profiles {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Config().Name < list[j].Config().Name })
	return list
}

// Configs returns all profile descriptors sorted by name, for persistence.
func (reg *Registry) Configs() (cfgs []profile.Config) {
	for _, r := range reg.List() {
		cfgs = append(cfgs, r.Config())
	}
	return cfgs
}

// Update replaces a profile descriptor. While the profile is running, only
// bandwidth, frame size, and impairments may change; other field changes
// return ErrFrozen. The name itself is immutable.
func (reg *Registry) Update(name string, next profile.Config) (warns []string, e error) {
	next.Name = name
	warns = next.ApplyDefaults()
	if e = next.Validate(); e != nil {
		return warns, e
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.profiles[name]
	if !ok {
		return warns, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if cur := r.State(); cur.IsActive() {
		if !r.Config().CanUpdateLive(next) {
			return warns, ErrFrozen
		}
		return warns, r.UpdateLive(next)
	}
	return warns, r.Update(next)
}

// Delete removes an idle or failed profile.
func (reg *Registry) Delete(name string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.profiles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !r.State().IsRemovable() {
		return fmt.Errorf("%w: %s is %s", ErrActive, name, r.State())
	}
	delete(reg.profiles, name)
	logger.Info("profile deleted", zap.String("profile", name))
	emitter.Emit(evtProfileRemove, name)
	return nil
}

// Enable starts emission for a profile.
func (reg *Registry) Enable(name string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.profiles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r.Enable()
}

// Disable stops emission for a profile.
func (reg *Registry) Disable(name string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.profiles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r.Disable()
}

// DisableAll stops every active profile, collecting errors. Used at shutdown.
func (reg *Registry) DisableAll() {
	for _, r := range reg.List() {
		if r.State().IsActive() {
			if e := r.Disable(); e != nil {
				logger.Warn("disable failed at shutdown", zap.String("profile", r.Config().Name), zap.Error(e))
			}
		}
	}
}

// StartAll enables every profile marked enabled that is not already active.
// Profiles never marked enabled are left alone. Returns the names started.
func (reg *Registry) StartAll() (started []string) {
	for _, r := range reg.List() {
		if !r.Config().Enabled || r.State().IsActive() {
			continue
		}
		name := r.Config().Name
		if e := r.Enable(); e != nil {
			logger.Warn("bulk start failed", zap.String("profile", name), zap.Error(e))
			continue
		}
		started = append(started, name)
	}
	return started
}

// StopAll disables every active profile but keeps its enabled mark, so a
// later StartAll resumes the same set. DisableAll clears the marks.
func (reg *Registry) StopAll() {
	for _, r := range reg.List() {
		if !r.State().IsActive() {
			continue
		}
		if e := r.Disable(); e != nil {
			logger.Warn("bulk stop failed", zap.String("profile", r.Config().Name), zap.Error(e))
			continue
		}
		r.SetEnabled(true)
	}
}

// ProfileStats pairs a profile's lifecycle state with its counters.
type ProfileStats struct {
	State    profile.State    `json:"state"`
	Counters profile.Counters `json:"counters"`
}

// Stats is a registry-wide counter snapshot. All entries share one
// observation timestamp; individual counters are read lock-free, so a
// snapshot is consistent per profile but not across profiles.
type Stats struct {
	Timestamp time.Time                `json:"timestamp"`
	Profiles  map[string]ProfileStats  `json:"profiles"`
	Ports     map[string]port.Counters `json:"ports"`
}

// Snapshot captures counters of every profile and port.
func (reg *Registry) Snapshot() Stats {
	st := Stats{
		Timestamp: time.Now().UTC(),
		Profiles:  map[string]ProfileStats{},
		Ports:     map[string]port.Counters{},
	}
	for _, r := range reg.List() {
		st.Profiles[r.Config().Name] = ProfileStats{State: r.State(), Counters: r.Counters()}
	}
	for _, p := range port.List() {
		st.Ports[p.Name()] = p.Counters()
	}
	return st
}

// ResetStats zeroes counters. An empty name resets every profile and every
// port; a profile name resets that profile only.
func (reg *Registry) ResetStats(name string) error {
	if name == "" {
		for _, r := range reg.List() {
			r.ResetCounters()
		}
		for _, p := range port.List() {
			p.ResetCounters()
		}
		return nil
	}
	r := reg.Get(name)
	if r == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	r.ResetCounters()
	return nil
}
