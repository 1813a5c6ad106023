package plugins

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names a registry state transition.
type EventType string

// Registry events.
const (
	EventRegistered    EventType = "registered"
	EventUnregistered  EventType = "unregistered"
	EventActiveChanged EventType = "active_changed"
	EventEnabled       EventType = "enabled"
	EventDisabled      EventType = "disabled"
)

// Event is published to subscribers after a registry transition.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	PluginID string    `json:"pluginId"`
	// PreviousID is the formerly active plugin for EventActiveChanged.
	PreviousID string    `json:"previousId,omitempty"`
	At         time.Time `json:"at"`
}

func newEvent(t EventType, pluginID, previousID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		PluginID:   pluginID,
		PreviousID: previousID,
		At:         time.Now().UTC(),
	}
}

// observers is a set of event callbacks.
type observers struct {
	mu   sync.RWMutex
	next uint64
	fns  map[uint64]func(Event)
}

func (o *observers) add(fn func(Event)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[uint64]func(Event))
	}
	id := o.next
	o.next++
	o.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.fns, id)
			o.mu.Unlock()
		})
	}
}

// publish calls every observer synchronously in subscription order.
func (o *observers) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	o.mu.RLock()
	ids := make([]uint64, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	fns := make([]func(Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.RUnlock()

	for _, e := range events {
		for _, fn := range fns {
			fn(e)
		}
	}
}
