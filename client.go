package socketio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/thisismz/go-socket.io-client/engineio/session"
	"github.com/thisismz/go-socket.io-client/engineio/transport"
	"github.com/thisismz/go-socket.io-client/internal/clock"
	"github.com/thisismz/go-socket.io-client/logger"
	"github.com/thisismz/go-socket.io-client/parser"
)

// Manager is a go-socket.io client. It owns the sessions shared by its
// sockets and serializes their connect attempts.
type Manager struct {
	opts     *Options
	registry *session.Registry
	sockets  *socketSet
	relay    atomic.Pointer[redisRelay]

	queueMu  sync.Mutex
	queue    []*connectRequest
	inFlight *connectRequest

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	stateObserver func(s *Socket, state HandshakeState)

	log logr.Logger
}

// NewManager returns a manager configured by opts, DefaultOptions when nil,
// then by options. opts itself is left untouched.
func NewManager(opts *Options, options ...Option) *Manager {
	if opts == nil {
		opts = DefaultOptions()
	} else {
		copied := *opts
		opts = &copied
	}
	for _, o := range options {
		o(opts)
	}
	normalizeOptions(opts)

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		opts:     opts,
		registry: session.NewRegistry(),
		sockets:  newSocketSet(),
		ctx:      ctx,
		cancel:   cancel,
		log:      opts.Logger,
	}

	if opts.Redis != nil {
		if _, err := m.Adapter(opts.Redis); err != nil {
			m.log.Error(err, "redis relay disabled")
		}
	}

	return m
}

func normalizeOptions(opts *Options) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ReconnectionAttempts < 0 {
		opts.ReconnectionAttempts = 0
	}
	if opts.ReconnectionDelay < 0 {
		opts.ReconnectionDelay = 0
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.EIO == "" {
		opts.EIO = DefaultEIO
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logger.GetLogger("socketio")
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Dialer == nil {
		opts.Dialer = transport.WebSocketDialer
	}
	if opts.Poller == nil {
		opts.Poller = transport.NewHTTPPoller(opts.Timeout)
	}
}

// Adapter relays inbound events through redis and forwards emit requests
// published by other processes.
func (m *Manager) Adapter(opts *RedisAdapterConfig) (bool, error) {
	relay, err := newRedisRelay(GetRedisOptions(opts), m.log.WithName("relay"))
	if err != nil {
		return false, err
	}

	if old := m.relay.Swap(relay); old != nil {
		old.close()
	}
	m.sockets.forEach(relay.attach)

	return true, nil
}

// Connect queues a connection to url, e.g. http://host:3000/chat?token=x.
// The returned socket connects once Serve picks the request up.
func (m *Manager) Connect(url string) (*Socket, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	ep, err := parseEndpoint(url, m.opts.Path, m.opts.EIO)
	if err != nil {
		return nil, err
	}

	s := newSocket(m, ep)
	m.sockets.add(s)
	if relay := m.relay.Load(); relay != nil {
		relay.attach(s)
	}

	m.enqueue(&connectRequest{
		socket:    s,
		notBefore: m.opts.Clock.Now(),
	}, nil)

	return s, nil
}

// Reconnect queues a new attempt for s. It is a no-op while s already has
// one queued or in flight.
func (m *Manager) Reconnect(s *Socket) bool {
	if m.closed.Load() || s.isClosed() {
		return false
	}

	return m.enqueue(&connectRequest{
		socket:    s,
		reconnect: true,
		attempts:  1,
		notBefore: m.opts.Clock.Now(),
	}, nil)
}

// Serve drives the connect queue until ctx is done or the manager is closed.
func (m *Manager) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ctx.Done():
			return ErrManagerClosed
		case <-ticker.C:
			m.tick()
		}
	}
}

// Close cancels the attempt in flight and closes every socket and session.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.cancel()

	m.queueMu.Lock()
	m.queue = nil
	m.queueMu.Unlock()

	m.sockets.forEach(func(s *Socket) {
		s.closed.Store(true)
		m.release(s)
		if sess, _ := s.detach(nil); sess != nil {
			_ = s.fire(Lifecycle{Event: EventDisconnect})
		}
	})

	m.registry.Range(func(_ string, sess *session.Session) {
		_ = sess.Close()
	})

	if relay := m.relay.Swap(nil); relay != nil {
		relay.close()
	}

	return nil
}

// Sessions returns the number of live shared sessions.
func (m *Manager) Sessions() int {
	return m.registry.Len()
}

func (m *Manager) closeSocket(s *Socket) error {
	m.release(s)
	m.dequeue(s)

	sess, remaining := s.detach(nil)
	if sess == nil {
		return nil
	}

	if sess.IsConnected() {
		leave := parser.NewMessage(parser.Disconnect, s.namespace, "")
		if err := sess.Send(parser.Encode(leave)); err != nil {
			s.log.Error(err, "failed to leave namespace")
		}
	}
	_ = s.fire(Lifecycle{Event: EventDisconnect})

	if remaining == 0 {
		return sess.Close()
	}
	return nil
}

func (m *Manager) release(s *Socket) {
	m.sockets.remove(s)
	s.stopRelay()
	s.acks.clear()
}

// adoptSession publishes a freshly upgraded session for reuse by other
// namespaces on the same endpoint. A session that already ended is taken
// back out, since its close callback ran before it was published.
func (m *Manager) adoptSession(sess *session.Session) {
	m.registry.Set(sess.Endpoint(), sess)
	if !sess.IsConnected() {
		m.registry.Delete(sess.Endpoint(), sess)
	}
}

// onSessionClose detaches every socket from a lost session and queues them
// for reconnection.
func (m *Manager) onSessionClose(sess *session.Session, err error) {
	m.registry.Delete(sess.Endpoint(), sess)
	if err == nil || m.closed.Load() {
		return
	}

	for _, s := range m.sockets.on(sess.Endpoint()) {
		if old, _ := s.detach(sess); old == nil {
			continue
		}
		_ = s.fire(Lifecycle{Event: EventDisconnect, Err: err})
		if !s.isClosed() {
			m.retry(s, 1, nil)
		}
	}
}
