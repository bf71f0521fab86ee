package registry

import (
	"io"

	"github.com/vepnet/tgen/core/events"
)

var emitter = events.NewEmitter()

const (
	evtProfileAdd    = "ProfileAdd"
	evtProfileRemove = "ProfileRemove"
)

// OnProfileAdd registers a callback when a profile is added.
// Returns an io.Closer that cancels the callback registration.
func OnProfileAdd(cb func(name string)) io.Closer {
	return emitter.On(evtProfileAdd, cb)
}

// OnProfileRemove registers a callback when a profile is deleted.
// Returns an io.Closer that cancels the callback registration.
func OnProfileRemove(cb func(name string)) io.Closer {
	return emitter.On(evtProfileRemove, cb)
}
