package syncer

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// EventType names an orchestrator event.
type EventType string

const (
	EventInitialized      EventType = "initialized"
	EventStateChange      EventType = "state-change"
	EventUpdateAvailable  EventType = "update-available"
	EventDownloadProgress EventType = "download-progress"
	EventHashMismatch     EventType = "hash-mismatch"
	EventInstalled        EventType = "installed"
	EventError            EventType = "error"
)

// Event is delivered to listeners. Seq increases by one per event
// emitted by an orchestrator.
type Event struct {
	Type   EventType
	Seq    int64
	Status Status
	Err    error
}

// Listener receives events synchronously on the emitting goroutine.
type Listener func(Event)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

type listenerSet struct {
	mu     sync.Mutex
	nextID ListenerID
	fns    map[ListenerID]Listener
	logger *slog.Logger
}

func newListenerSet(logger *slog.Logger) *listenerSet {
	return &listenerSet{fns: make(map[ListenerID]Listener), logger: logger}
}

func (l *listenerSet) add(fn Listener) ListenerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.fns[l.nextID] = fn
	return l.nextID
}

func (l *listenerSet) remove(id ListenerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.fns[id]
	delete(l.fns, id)
	return ok
}

// snapshot returns the listeners in registration order.
func (l *listenerSet) snapshot() []Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]ListenerID, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = l.fns[id]
	}
	return out
}

// dispatch calls every listener with its own copy of the status.
func (l *listenerSet) dispatch(ev Event) {
	for _, fn := range l.snapshot() {
		own := ev
		own.Status = ev.Status.clone()
		l.call(fn, own)
	}
}

func (l *listenerSet) call(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event listener panicked",
				"event", ev.Type,
				"seq", ev.Seq,
				"panic", fmt.Sprint(r))
		}
	}()
	fn(ev)
}
