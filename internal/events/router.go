package events

import (
	"log/slog"
	"sync"
)

// Event is a named message delivered to listeners of that name.
type Event struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
	// RestrictToProfile limits delivery to listeners of one profile. Empty
	// means every listener of the event.
	RestrictToProfile string `json:"-"`
}

// Listener receives events. Deliver must not block.
type Listener interface {
	ID() string
	ProfileID() string
	Deliver(evt *Event)
}

// ListenerInfo describes a listener subscription change.
type ListenerInfo struct {
	EventName  string
	ListenerID string
	ProfileID  string
}

// Observer is told when listeners subscribe to or unsubscribe from an event
// it registered for.
type Observer interface {
	OnListenerAdded(info ListenerInfo)
	OnListenerRemoved(info ListenerInfo)
}

// Router fans events out to subscribed listeners.
type Router struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[string]map[string]Listener
	observers map[string][]Observer
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:    logger,
		listeners: make(map[string]map[string]Listener),
		observers: make(map[string][]Observer),
	}
}

// AddListener subscribes l to eventName.
func (r *Router) AddListener(eventName string, l Listener) {
	r.mu.Lock()
	byID, ok := r.listeners[eventName]
	if !ok {
		byID = make(map[string]Listener)
		r.listeners[eventName] = byID
	}
	byID[l.ID()] = l
	observers := append([]Observer(nil), r.observers[eventName]...)
	r.mu.Unlock()

	info := ListenerInfo{EventName: eventName, ListenerID: l.ID(), ProfileID: l.ProfileID()}
	for _, obs := range observers {
		obs.OnListenerAdded(info)
	}
	r.logger.Debug("event listener added", "event", eventName, "listener_id", l.ID(), "profile_id", l.ProfileID())
}

// RemoveListener unsubscribes l from eventName. It reports whether l was
// subscribed.
func (r *Router) RemoveListener(eventName string, l Listener) bool {
	r.mu.Lock()
	byID := r.listeners[eventName]
	if _, ok := byID[l.ID()]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(byID, l.ID())
	if len(byID) == 0 {
		delete(r.listeners, eventName)
	}
	observers := append([]Observer(nil), r.observers[eventName]...)
	r.mu.Unlock()

	info := ListenerInfo{EventName: eventName, ListenerID: l.ID(), ProfileID: l.ProfileID()}
	for _, obs := range observers {
		obs.OnListenerRemoved(info)
	}
	r.logger.Debug("event listener removed", "event", eventName, "listener_id", l.ID())
	return true
}

// ListenerCount returns the number of listeners subscribed to eventName.
func (r *Router) ListenerCount(eventName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[eventName])
}

// RegisterObserver asks for listener changes on eventName.
func (r *Router) RegisterObserver(obs Observer, eventName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[eventName] = append(r.observers[eventName], obs)
}

// UnregisterObserver removes obs from every event it registered for.
func (r *Router) UnregisterObserver(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, list := range r.observers {
		kept := list[:0]
		for _, o := range list {
			if o != obs {
				kept = append(kept, o)
			}
		}
		if len(kept) == 0 {
			delete(r.observers, name)
			continue
		}
		r.observers[name] = kept
	}
}

// ObserverCount returns the number of observers registered for eventName.
func (r *Router) ObserverCount(eventName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers[eventName])
}

// BroadcastEvent hands evt to every matching listener. Listeners own
// delivery; a slow listener drops, it never stalls the caller.
func (r *Router) BroadcastEvent(evt *Event) {
	if evt == nil {
		return
	}
	r.mu.RLock()
	targets := make([]Listener, 0, len(r.listeners[evt.Name]))
	for _, l := range r.listeners[evt.Name] {
		if evt.RestrictToProfile != "" && l.ProfileID() != evt.RestrictToProfile {
			continue
		}
		targets = append(targets, l)
	}
	r.mu.RUnlock()

	for _, l := range targets {
		l.Deliver(evt)
	}
}
