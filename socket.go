package socketio

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/thisismz/go-socket.io-client/engineio/session"
	"github.com/thisismz/go-socket.io-client/parser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Socket is the handle of one namespace connection. All sockets on the same
// base endpoint share a single session.
type Socket struct {
	id        string
	manager   *Manager
	ep        *endpoint
	namespace string

	handlers *handlers
	acks     *ackRegistry

	mu      sync.RWMutex
	session *session.Session

	joined atomic.Bool
	closed atomic.Bool

	relayCancel context.CancelFunc

	log logr.Logger
}

func newSocket(m *Manager, ep *endpoint) *Socket {
	id := uuid.NewString()

	return &Socket{
		id:        id,
		manager:   m,
		ep:        ep,
		namespace: ep.namespace,
		handlers:  newHandlers(),
		acks:      newAckRegistry(),
		log: m.log.WithName("socket").WithValues(
			"endpoint", ep.Base(), "namespace", ep.namespace, "socket", id),
	}
}

func (s *Socket) ID() string {
	return s.id
}

func (s *Socket) Namespace() string {
	return s.namespace
}

// Endpoint returns the base endpoint the socket's session is keyed by.
func (s *Socket) Endpoint() string {
	return s.ep.Base()
}

// On registers fn for an application event. Lifecycle names are rejected
// with ErrReservedEvent and leave the table unchanged.
func (s *Socket) On(event string, fn EventHandler) error {
	if err := s.handlers.on(event, fn); err != nil {
		s.log.Error(err, "cannot register handler")
		return err
	}
	return nil
}

// OnLifecycle registers fn for one of the lifecycle events.
func (s *Socket) OnLifecycle(event string, fn LifecycleHandler) error {
	if err := s.handlers.onLifecycle(event, fn); err != nil {
		s.log.Error(err, "cannot register lifecycle handler")
		return err
	}
	return nil
}

// Off removes the handler for event, application or lifecycle.
func (s *Socket) Off(event string) bool {
	if !s.handlers.off(event) {
		s.log.Info("no handler to remove", "warning", event)
		return false
	}
	return true
}

// Emit sends event with data as a JSON string argument. Empty data sends the
// event without arguments. ack may be nil.
func (s *Socket) Emit(event string, data string, ack AckFunc) error {
	if data == "" {
		return s.emit(event, "", ack)
	}

	quoted, err := json.MarshalToString(data)
	if err != nil {
		return err
	}
	return s.emit(event, quoted, ack)
}

// EmitJSON sends event with raw, an already encoded JSON fragment.
func (s *Socket) EmitJSON(event string, raw string, ack AckFunc) error {
	return s.emit(event, raw, ack)
}

// EmitObject sends event with v marshalled to JSON.
func (s *Socket) EmitObject(event string, v interface{}, ack AckFunc) error {
	raw, err := json.MarshalToString(v)
	if err != nil {
		return err
	}
	return s.emit(event, raw, ack)
}

func (s *Socket) emit(event string, args string, ack AckFunc) error {
	if IsReserved(event) {
		err := ErrReservedEvent
		s.log.Error(err, "cannot emit", "event", event)
		return err
	}

	sess := s.currentSession()
	if sess == nil || !sess.IsConnected() {
		s.log.Error(ErrNotConnected, "cannot emit", "event", event)
		return ErrNotConnected
	}

	pkt := parser.NewMessage(parser.Event, s.namespace, parser.JoinEvent(event, args))
	if ack != nil {
		pkt.ID = s.acks.register(ack)
	}

	if err := sess.Send(parser.Encode(pkt)); err != nil {
		if pkt.HasID() {
			s.acks.forget(pkt.ID)
		}
		return &TransportError{Op: "emit", Err: err}
	}
	return nil
}

// IsConnected reports whether the socket is attached to an upgraded, live
// session.
func (s *Socket) IsConnected() bool {
	sess := s.currentSession()
	return sess != nil && sess.Upgraded() && sess.IsConnected()
}

// Joined reports whether the remote acknowledged the namespace.
func (s *Socket) Joined() bool {
	return s.joined.Load()
}

// PendingAcks returns the number of emits still waiting for an answer.
func (s *Socket) PendingAcks() int {
	return s.acks.len()
}

// Close leaves the namespace. The shared session is closed once no socket
// uses it any more.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.manager.closeSocket(s)
}

func (s *Socket) isClosed() bool {
	return s.closed.Load()
}

func (s *Socket) currentSession() *session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.session
}

func (s *Socket) attach(sess *session.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	sess.Subscribe(s.id, s.receive)
}

// detach releases the session if it is sess (any session when sess is nil)
// and returns the released session and the number of sockets still on it.
func (s *Socket) detach(sess *session.Session) (*session.Session, int) {
	s.mu.Lock()
	old := s.session
	if old == nil || (sess != nil && old != sess) {
		s.mu.Unlock()
		return nil, 0
	}
	s.session = nil
	s.mu.Unlock()

	s.joined.Store(false)
	return old, old.Unsubscribe(s.id)
}

func (s *Socket) setRelay(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.relayCancel != nil {
		s.relayCancel()
	}
	s.relayCancel = cancel
}

func (s *Socket) stopRelay() {
	s.setRelay(nil)
}

func (s *Socket) receive(pkt *parser.Packet) {
	_ = s.route(pkt)
}

func (s *Socket) fire(ev Lifecycle) error {
	if ev.Err != nil {
		s.log.Info("lifecycle", "event", ev.Event, "attempt", ev.Attempt, "error", ev.Err.Error())
	} else {
		s.log.V(1).Info("lifecycle", "event", ev.Event, "attempt", ev.Attempt)
	}

	if err := s.handlers.fire(ev); err != nil {
		return s.onError(err)
	}
	return nil
}
