package session

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/thisismz/go-socket.io-client/engineio/packet"
	"github.com/thisismz/go-socket.io-client/engineio/transport"
	"github.com/thisismz/go-socket.io-client/internal/observe"
	"github.com/thisismz/go-socket.io-client/logger"
	"github.com/thisismz/go-socket.io-client/parser"
)

const (
	DefaultPingInterval = 10 * time.Second
	inboundQueueSize    = 128
)

// ErrRemoteClosed is reported when the remote sends an engine CLOSE frame.
var ErrRemoteClosed = errors.New("session: closed by remote")

// Subscriber receives every inbound MESSAGE packet in arrival order.
type Subscriber func(pkt *parser.Packet)

// Params describe a session as negotiated during the bootstrap.
type Params struct {
	SID          string
	PingInterval time.Duration
}

// Session is one upgraded connection to a base endpoint, shared by every
// namespace connected through it.
type Session struct {
	endpoint string
	conn     transport.Conn
	params   Params

	probed    chan struct{}
	probeOnce sync.Once
	upgraded  atomic.Bool

	subsMu sync.RWMutex
	subs   map[string]Subscriber

	inbound chan *parser.Packet

	serveOnce     sync.Once
	keepAliveOnce sync.Once

	ctx      context.Context
	cancel   context.CancelFunc
	quitChan chan struct{}
	quitOnce sync.Once

	errMu sync.Mutex
	err   error

	onClose func(s *Session, err error)
	log     logr.Logger
}

// New wraps a connected transport. Serve must be called to start reading.
func New(endpoint string, conn transport.Conn, params Params) *Session {
	if params.PingInterval <= 0 {
		params.PingInterval = DefaultPingInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		endpoint: endpoint,
		conn:     conn,
		params:   params,
		probed:   make(chan struct{}),
		subs:     make(map[string]Subscriber),
		inbound:  make(chan *parser.Packet, inboundQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		quitChan: make(chan struct{}),
		log:      logger.GetLogger("engineio.session").WithValues("endpoint", endpoint),
	}
}

func (s *Session) Endpoint() string {
	return s.endpoint
}

func (s *Session) ID() string {
	return s.params.SID
}

// OnClose registers fn to run once when the session ends. err is nil for a
// local Close and the transport error otherwise. Register before Serve so a
// drop during the upgrade is not missed.
func (s *Session) OnClose(fn func(s *Session, err error)) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.onClose = fn
}

// Serve starts the receive and dispatch loops. Further calls are no-ops.
func (s *Session) Serve() {
	s.serveOnce.Do(func() {
		observe.AddActiveSessions(1)
		go s.dispatch()
		go s.receive()
	})
}

// Probed is closed once the remote answers the probe.
func (s *Session) Probed() <-chan struct{} {
	return s.probed
}

func (s *Session) MarkUpgraded() {
	s.upgraded.Store(true)
}

func (s *Session) Upgraded() bool {
	return s.upgraded.Load()
}

func (s *Session) Done() <-chan struct{} {
	return s.quitChan
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) IsConnected() bool {
	select {
	case <-s.quitChan:
		return false
	default:
		return s.conn.IsConnected()
	}
}

func (s *Session) Send(frame string) error {
	select {
	case <-s.quitChan:
		return transport.ErrClosed
	default:
	}

	if err := s.conn.Send(frame); err != nil {
		return err
	}
	observe.IncFrameOut()
	return nil
}

// Subscribe attaches fn under id, replacing any subscriber with the same id.
func (s *Session) Subscribe(id string, fn Subscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.subs[id] = fn
}

// Unsubscribe detaches id and returns how many subscribers remain.
func (s *Session) Unsubscribe(id string) int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	delete(s.subs, id)
	return len(s.subs)
}

func (s *Session) Subscribers() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	return len(s.subs)
}

// StartKeepAlive starts sending pings every PingInterval while the
// transport reports connected. Further calls are no-ops.
func (s *Session) StartKeepAlive() {
	s.keepAliveOnce.Do(func() {
		go s.keepAlive()
	})
}

func (s *Session) Close() error {
	s.closeWithError(nil)
	return nil
}

func (s *Session) closeWithError(err error) {
	s.quitOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		onClose := s.onClose
		s.errMu.Unlock()

		s.cancel()
		close(s.quitChan)
		_ = s.conn.Close()

		if err != nil {
			s.log.Error(err, "session closed")
		} else {
			s.log.V(1).Info("session closed")
		}

		s.serveOnce.Do(func() {})
		if onClose != nil {
			onClose(s, err)
		}
	})
}

func (s *Session) keepAlive() {
	ticker := time.NewTicker(s.params.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quitChan:
			return
		case <-ticker.C:
		}

		if !s.conn.IsConnected() {
			return
		}

		if err := s.Send(packet.Ping); err != nil {
			s.log.Error(err, "failed to send ping")
			return
		}
		s.log.V(1).Info("ping")
	}
}

func (s *Session) receive() {
	for {
		frame, err := s.conn.Receive(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			s.closeWithError(err)
			return
		}
		observe.IncFrameIn()

		switch frame {
		case packet.ProbeAnswer:
			s.probeOnce.Do(func() { close(s.probed) })
			s.log.V(1).Info("probed")
			continue
		case packet.Pong:
			s.log.V(1).Info("pong")
			continue
		case packet.Ping:
			if err := s.Send(packet.Pong); err != nil {
				s.log.Error(err, "failed to answer ping")
			}
			continue
		}

		pkt, err := parser.Decode(frame)
		if err != nil {
			s.log.Info("dropping frame", "warning", err.Error())
			continue
		}

		switch pkt.EngineType {
		case packet.CLOSE:
			s.closeWithError(ErrRemoteClosed)
			return
		case packet.MESSAGE:
		default:
			continue
		}

		select {
		case s.inbound <- pkt:
		case <-s.quitChan:
			return
		}
	}
}

func (s *Session) dispatch() {
	defer observe.AddActiveSessions(-1)

	for {
		select {
		case <-s.quitChan:
			return
		case pkt := <-s.inbound:
			for _, fn := range s.snapshot() {
				fn(pkt)
			}
		}
	}
}

// snapshot returns the subscribers ordered by id so fan-out is deterministic.
func (s *Session) snapshot() []Subscriber {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	ids := make([]string, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}
