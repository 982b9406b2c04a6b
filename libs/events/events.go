// Package events delivers sequencer notifications to in-process listeners
// such as the CLI progress printer and websocket subscribers.
package events

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrListenerExists is returned when a listener registers twice for the same
// event.
var ErrListenerExists = errors.New("listener already registered for event")

// EventData is the payload of a fired event.
type EventData interface{}

// EventCallback receives fired events. A returned error is ignored by the
// switch; it does not unsubscribe the listener.
type EventCallback func(data EventData) error

// Fireable is implemented by anything events can be fired on.
type Fireable interface {
	FireEvent(event string, data EventData)
}

// EventSwitch is a synchronous pub-sub hub. Callbacks run on the goroutine
// that fires the event, in listener registration order, so they must not
// block.
type EventSwitch interface {
	Fireable
	AddListenerForEvent(listenerID, event string, cb EventCallback) error
	RemoveListener(listenerID string)
}

type subscription struct {
	seq uint64
	cb  EventCallback
}

type eventSwitch struct {
	mtx  sync.RWMutex
	next uint64
	subs map[string]map[string]subscription // event -> listenerID -> subscription
}

func NewEventSwitch() EventSwitch {
	return &eventSwitch{subs: make(map[string]map[string]subscription)}
}

func (evsw *eventSwitch) AddListenerForEvent(listenerID, event string, cb EventCallback) error {
	evsw.mtx.Lock()
	defer evsw.mtx.Unlock()

	listeners, ok := evsw.subs[event]
	if !ok {
		listeners = make(map[string]subscription)
		evsw.subs[event] = listeners
	}
	if _, dup := listeners[listenerID]; dup {
		return fmt.Errorf("%w: %s on %s", ErrListenerExists, listenerID, event)
	}
	evsw.next++
	listeners[listenerID] = subscription{seq: evsw.next, cb: cb}
	return nil
}

// RemoveListener drops listenerID from every event.
func (evsw *eventSwitch) RemoveListener(listenerID string) {
	evsw.mtx.Lock()
	defer evsw.mtx.Unlock()

	for event, listeners := range evsw.subs {
		delete(listeners, listenerID)
		if len(listeners) == 0 {
			delete(evsw.subs, event)
		}
	}
}

func (evsw *eventSwitch) FireEvent(event string, data EventData) {
	evsw.mtx.RLock()
	subs := make([]subscription, 0, len(evsw.subs[event]))
	for _, s := range evsw.subs[event] {
		subs = append(subs, s)
	}
	evsw.mtx.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })
	for _, s := range subs {
		_ = s.cb(data)
	}
}
