package socketio

import (
	"context"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thisismz/go-socket.io-client/engineio/packet"
	"github.com/thisismz/go-socket.io-client/engineio/session"
	"github.com/thisismz/go-socket.io-client/parser"
)

const tracerName = "github.com/thisismz/go-socket.io-client"

// HandshakeState is the position of one connect attempt.
type HandshakeState int

const (
	StateIdle HandshakeState = iota
	StatePollingBootstrap
	StateWebSocketUpgrade
	StateProbing
	StateUpgraded
	StateNamespaceJoin
	StateConnected
	StateCancelled
	StateFailed
)

func (s HandshakeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePollingBootstrap:
		return "polling_bootstrap"
	case StateWebSocketUpgrade:
		return "websocket_upgrade"
	case StateProbing:
		return "probing"
	case StateUpgraded:
		return "upgraded"
	case StateNamespaceJoin:
		return "namespace_join"
	case StateConnected:
		return "connected"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// handshake drives a single connect attempt for one socket.
type handshake struct {
	m       *Manager
	socket  *Socket
	attempt int
	state   HandshakeState
	log     logr.Logger
}

func newHandshake(m *Manager, s *Socket, attempt int) *handshake {
	return &handshake{
		m:       m,
		socket:  s,
		attempt: attempt,
		log:     s.log.WithName("handshake").WithValues("attempt", attempt),
	}
}

func (h *handshake) setState(state HandshakeState) {
	h.state = state
	h.log.V(1).Info("state", "state", state.String())
	if fn := h.m.stateObserver; fn != nil {
		fn(h.socket, state)
	}
}

// run walks the attempt to Connected. It returns ctx.Err() when ctx ends
// first, and closes any channel it opened itself.
func (h *handshake) run(ctx context.Context) (err error) {
	ep := h.socket.ep

	ctx, span := otel.Tracer(tracerName).Start(ctx, "socketio.handshake",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("socketio.endpoint", ep.Base()),
			attribute.String("socketio.namespace", ep.namespace),
			attribute.Int("socketio.attempt", h.attempt),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if h.socket.isClosed() {
		return h.fail(ErrCancelled)
	}

	sess, ok := h.m.registry.Get(ep.Base())
	if ok && sess.Upgraded() && sess.IsConnected() {
		h.log.V(1).Info("reusing session", "sid", sess.ID())
		span.SetAttributes(attribute.Bool("socketio.session_reused", true))
	} else {
		sess, err = h.open(ctx)
		if err != nil {
			return err
		}
	}

	h.setState(StateNamespaceJoin)
	if ep.namespace != parser.DefaultNamespace {
		join := parser.NewMessage(parser.Connect, ep.namespace, "")
		if err := sess.Send(parser.Encode(join)); err != nil {
			return h.fail(&TransportError{Op: "join", Err: err})
		}
	}

	h.socket.attach(sess)
	if !sess.IsConnected() {
		// a session that ended before attach never saw this socket in its
		// close callback
		h.socket.detach(sess)
		return h.fail(&TransportError{Op: "attach", Err: sessionErr(sess)})
	}
	sess.StartKeepAlive()
	h.setState(StateConnected)
	return nil
}

func (h *handshake) open(ctx context.Context) (*session.Session, error) {
	ep := h.socket.ep
	opts := h.m.opts

	h.setState(StatePollingBootstrap)
	body, err := opts.Poller.Poll(ctx, ep.pollingURL(EncodeTimestamp(opts.Clock.Now())))
	if err != nil {
		if ctx.Err() != nil {
			return nil, h.cancel(ctx)
		}
		return nil, h.fail(&TransportError{Op: "bootstrap", Err: err})
	}
	params := h.parseOpen(body)

	h.setState(StateWebSocketUpgrade)
	conn := opts.Dialer()
	if err := conn.Connect(ctx, ep.websocketURL(params.SID)); err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil, h.cancel(ctx)
		}
		return nil, h.fail(&TransportError{Op: "upgrade", Err: err})
	}

	sess := session.New(ep.Base(), conn, params)
	sess.OnClose(h.m.onSessionClose)
	sess.Serve()

	h.setState(StateProbing)
	if err := sess.Send(packet.Probe); err != nil {
		_ = sess.Close()
		return nil, h.fail(&TransportError{Op: "probe", Err: err})
	}

	select {
	case <-sess.Probed():
	case <-sess.Done():
		return nil, h.fail(&TransportError{Op: "probe", Err: sessionErr(sess)})
	case <-ctx.Done():
		_ = sess.Close()
		return nil, h.cancel(ctx)
	}

	h.setState(StateUpgraded)
	if err := sess.Send(parser.Encode(parser.NewPacket(packet.UPGRADE))); err != nil {
		_ = sess.Close()
		return nil, h.fail(&TransportError{Op: "upgrade", Err: err})
	}
	sess.MarkUpgraded()
	h.m.adoptSession(sess)

	return sess, nil
}

// sessionErr is the error that ended sess, ErrRemoteClosed when it was
// closed without one.
func sessionErr(sess *session.Session) error {
	if err := sess.Err(); err != nil {
		return err
	}
	return session.ErrRemoteClosed
}

// parseOpen extracts the session parameters from the bootstrap response,
// whose JSON object starts at the first '{'. A missing sid is tolerated.
func (h *handshake) parseOpen(body string) session.Params {
	params := session.Params{PingInterval: h.m.opts.PingInterval}

	start := strings.IndexByte(body, '{')
	if start < 0 {
		h.log.Info("bootstrap response carries no session", "warning", body)
		return params
	}
	data := []byte(body[start:])

	sid, err := jsonparser.GetString(data, "sid")
	if err != nil {
		h.log.Info("bootstrap response carries no sid", "warning", err.Error())
	}
	params.SID = sid

	interval, _ := jsonparser.GetInt(data, "pingInterval")
	timeout, _ := jsonparser.GetInt(data, "pingTimeout")
	h.log.V(1).Info("bootstrap", "sid", sid, "pingInterval", interval, "pingTimeout", timeout)

	return params
}

func (h *handshake) fail(err error) error {
	h.setState(StateFailed)
	return err
}

func (h *handshake) cancel(ctx context.Context) error {
	h.setState(StateCancelled)
	return ctx.Err()
}
