package client

import "github.com/cfgd/cfgd-go/pkg/storage"

// Event is one change delivered to a subscription.
type Event struct {
	// Engine is the engine the subscription belongs to.
	Engine *Engine

	// ClientID is the id returned by Subscribe.
	ClientID uint64

	// Location is the subscribed directory.
	Location string

	// Entry is the changed key. A nil Entry.Value means the key was unset.
	Entry storage.Entry

	// UserData is the value passed to Subscribe.
	UserData any
}

// Handler receives change events. Notify runs on the runtime's dispatch
// goroutine, one event at a time, in delivery order. It may call back
// into the Engine.
type Handler interface {
	Notify(ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev Event)

// Notify calls fn.
func (fn HandlerFunc) Notify(ev Event) { fn(ev) }
