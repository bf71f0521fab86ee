package port

import (
	"io"

	"github.com/vepnet/tgen/core/events"
)

var emitter = events.NewEmitter()

const (
	evtPortNew  = "PortNew"
	evtPortUp   = "PortUp"
	evtPortDown = "PortDown"
)

// OnPortNew registers a callback when a port is published.
// Returns an io.Closer that cancels the callback registration.
func OnPortNew(cb func(name string)) io.Closer {
	return emitter.On(evtPortNew, cb)
}

// OnPortUp registers a callback when a port link comes up.
// Returns an io.Closer that cancels the callback registration.
func OnPortUp(cb func(name string)) io.Closer {
	return emitter.On(evtPortUp, cb)
}

// OnPortDown registers a callback when a port link goes down.
// Returns an io.Closer that cancels the callback registration.
func OnPortDown(cb func(name string)) io.Closer {
	return emitter.On(evtPortDown, cb)
}
