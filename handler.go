package socketio

import (
	"fmt"
	"sync"
)

// Lifecycle event names. They cannot be registered with On.
const (
	EventConnect          = "connect"
	EventConnectTimeout   = "connectTimeout"
	EventConnectError     = "connectError"
	EventDisconnect       = "disconnect"
	EventReconnectAttempt = "reconnectAttempt"
	EventReconnecting     = "reconnecting"
	EventReconnect        = "reconnect"
	EventReconnectFailed  = "reconnectFailed"
	EventReconnectError   = "reconnectError"
)

var reservedEvents = map[string]struct{}{
	EventConnect:          {},
	EventConnectTimeout:   {},
	EventConnectError:     {},
	EventDisconnect:       {},
	EventReconnectAttempt: {},
	EventReconnecting:     {},
	EventReconnect:        {},
	EventReconnectFailed:  {},
	EventReconnectError:   {},
}

// IsReserved reports whether name is one of the lifecycle events.
func IsReserved(name string) bool {
	_, ok := reservedEvents[name]
	return ok
}

// EventHandler receives the argument payload of an event verbatim, a JSON
// fragment such as `"hello"` or `{"a":1}`. It is empty for events without
// arguments.
type EventHandler func(args string)

// Lifecycle describes a connection state change. Attempt is set for the
// reconnect family, Err for failures and session loss.
type Lifecycle struct {
	Event   string
	Attempt int
	Err     error
}

type LifecycleHandler func(ev Lifecycle)

// handlers is the event table of one socket.
type handlers struct {
	mu        sync.RWMutex
	events    map[string]EventHandler
	lifecycle map[string]LifecycleHandler
}

func newHandlers() *handlers {
	return &handlers{
		events:    make(map[string]EventHandler),
		lifecycle: make(map[string]LifecycleHandler),
	}
}

func (h *handlers) on(name string, fn EventHandler) error {
	if IsReserved(name) {
		return fmt.Errorf("%w: %q", ErrReservedEvent, name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.events[name] = fn
	return nil
}

func (h *handlers) onLifecycle(name string, fn LifecycleHandler) error {
	if !IsReserved(name) {
		return fmt.Errorf("%w: %q", ErrNotLifecycle, name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lifecycle[name] = fn
	return nil
}

// off removes the handler for name and reports whether one was registered.
func (h *handlers) off(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if IsReserved(name) {
		_, ok := h.lifecycle[name]
		delete(h.lifecycle, name)
		return ok
	}

	_, ok := h.events[name]
	delete(h.events, name)
	return ok
}

func (h *handlers) event(name string) (EventHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	fn, ok := h.events[name]
	return fn, ok
}

// fire invokes the lifecycle handler for ev.Event, if any.
func (h *handlers) fire(ev Lifecycle) error {
	h.mu.RLock()
	fn := h.lifecycle[ev.Event]
	h.mu.RUnlock()

	if fn == nil {
		return nil
	}
	return safeCall(func() { fn(ev) })
}

func safeCall(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var ok bool
			err, ok = r.(error)
			if !ok {
				err = fmt.Errorf("event call error: %s", r)
			}
		}
	}()

	f()

	return
}
