package socketio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thisismz/go-socket.io-client/internal/observe"
)

// connectRequest asks the supervisor for one handshake attempt.
type connectRequest struct {
	socket    *Socket
	reconnect bool
	attempts  int
	notBefore time.Time
}

// enqueue adds req unless its socket already has a request queued or in
// flight. current is the attempt req follows up on, if any.
func (m *Manager) enqueue(req *connectRequest, current *connectRequest) bool {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	if m.inFlight != nil && m.inFlight != current && m.inFlight.socket == req.socket {
		return false
	}
	for _, queued := range m.queue {
		if queued.socket == req.socket {
			return false
		}
	}

	m.queue = append(m.queue, req)
	return true
}

func (m *Manager) dequeue(s *Socket) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	kept := m.queue[:0]
	for _, req := range m.queue {
		if req.socket != s {
			kept = append(kept, req)
		}
	}
	m.queue = kept
}

// tick starts the ready request with the earliest notBefore, unless an
// attempt is already in flight. It reports whether an attempt started.
func (m *Manager) tick() bool {
	m.queueMu.Lock()
	if m.inFlight != nil || m.closed.Load() {
		m.queueMu.Unlock()
		return false
	}

	now := m.opts.Clock.Now()
	next := -1
	for i, req := range m.queue {
		if req.notBefore.After(now) {
			continue
		}
		if next < 0 || req.notBefore.Before(m.queue[next].notBefore) {
			next = i
		}
	}
	if next < 0 {
		m.queueMu.Unlock()
		return false
	}

	req := m.queue[next]
	m.queue = append(m.queue[:next], m.queue[next+1:]...)

	ctx, cancel := context.WithTimeout(m.ctx, m.opts.Timeout)
	m.inFlight = req
	m.queueMu.Unlock()

	if req.reconnect {
		_ = req.socket.fire(Lifecycle{Event: EventReconnecting, Attempt: req.attempts})
	}

	go func() {
		err := newHandshake(m, req.socket, req.attempts).run(ctx)
		cancel()
		m.finish(req, err)
	}()

	return true
}

// finish reports the outcome of req. The in-flight marker is cleared only
// once the callbacks have run and any retry is queued.
func (m *Manager) finish(req *connectRequest, err error) {
	defer func() {
		m.queueMu.Lock()
		m.inFlight = nil
		m.queueMu.Unlock()
	}()

	s := req.socket

	if err == nil {
		observe.IncHandshake("success")
		if s.isClosed() {
			_ = m.closeSocket(s)
			return
		}
		if req.reconnect {
			_ = s.fire(Lifecycle{Event: EventReconnect, Attempt: req.attempts})
		} else {
			_ = s.fire(Lifecycle{Event: EventConnect})
		}
		return
	}

	if s.isClosed() || m.closed.Load() {
		observe.IncHandshake("cancelled")
		s.log.V(1).Info("attempt abandoned", "error", err.Error())
		return
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		observe.IncHandshake("timeout")
		_ = s.fire(Lifecycle{
			Event:   EventConnectTimeout,
			Attempt: req.attempts,
			Err:     fmt.Errorf("%w after %s", ErrTimeout, m.opts.Timeout),
		})
	case req.reconnect:
		observe.IncHandshake("error")
		_ = s.fire(Lifecycle{Event: EventReconnectError, Attempt: req.attempts, Err: err})
	default:
		observe.IncHandshake("error")
		_ = s.fire(Lifecycle{Event: EventConnectError, Err: err})
	}

	m.retry(s, req.attempts+1, req)
}

// retry queues attempt number next after the reconnection delay, or gives
// up when reconnection is disabled or the attempt budget is spent.
func (m *Manager) retry(s *Socket, next int, current *connectRequest) {
	if !m.opts.Reconnection || next > m.opts.ReconnectionAttempts {
		_ = s.fire(Lifecycle{Event: EventReconnectFailed, Attempt: next - 1})
		return
	}

	req := &connectRequest{
		socket:    s,
		reconnect: true,
		attempts:  next,
		notBefore: m.opts.Clock.Now().Add(m.opts.ReconnectionDelay),
	}
	if !m.enqueue(req, current) {
		return
	}

	observe.IncReconnectAttempt()
	_ = s.fire(Lifecycle{Event: EventReconnectAttempt, Attempt: next})
}

// Pending returns the number of queued connect requests.
func (m *Manager) Pending() int {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	return len(m.queue)
}

// InFlight reports whether a handshake attempt is running.
func (m *Manager) InFlight() bool {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	return m.inFlight != nil
}

func (m *Manager) queued(s *Socket) (*connectRequest, bool) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	for _, req := range m.queue {
		if req.socket == s {
			copied := *req
			return &copied, true
		}
	}
	return nil, false
}
