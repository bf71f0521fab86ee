package profile

// State is a profile runner lifecycle state.
type State string

// Lifecycle states.
const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateUpdating State = "updating"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
)

// IsRemovable determines whether a profile in this state may be deleted without a disable step.
func (st State) IsRemovable() bool {
	return st == StateIdle || st == StateFailed
}

// IsActive determines whether a runner task exists for this state.
func (st State) IsActive() bool {
	switch st {
	case StateStarting, StateRunning, StateUpdating, StateStopping:
		return true
	}
	return false
}
