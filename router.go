package socketio

import (
	"github.com/thisismz/go-socket.io-client/internal/observe"
	"github.com/thisismz/go-socket.io-client/parser"
)

// route dispatches one inbound packet of the shared session to this socket.
// Packets for other namespaces are ignored. The returned error is either a
// *ProtocolViolation or a failure of a user callback; neither is fatal.
func (s *Socket) route(pkt *parser.Packet) error {
	if !pkt.IsMessage() || pkt.Namespace != s.namespace {
		return nil
	}

	switch pkt.Type {
	case parser.Ack:
		return s.ackPacketHandler(pkt)
	case parser.Event:
		return s.eventPacketHandler(pkt)
	case parser.Connect:
		s.joined.Store(true)
		s.log.V(1).Info("namespace joined")
		return nil
	case parser.Disconnect:
		s.joined.Store(false)
		s.log.Info("namespace disconnected by remote")
		return s.fire(Lifecycle{Event: EventDisconnect})
	case parser.Error:
		return s.violation(ErrorPacket, pkt.Body)
	case parser.BinaryEvent, parser.BinaryAck:
		return s.violation(BinaryPacket, pkt.Type.String())
	}

	s.log.V(1).Info("dropping packet", "packet", pkt.String())
	return nil
}

func (s *Socket) ackPacketHandler(pkt *parser.Packet) error {
	if !pkt.HasID() {
		return s.violation(AckWithoutID, pkt.Body)
	}

	found, err := s.acks.resolve(pkt.ID, pkt.Body)
	if !found {
		return s.violation(UnknownAckID, pkt.Body)
	}
	if err != nil {
		return s.onError(err)
	}
	return nil
}

func (s *Socket) eventPacketHandler(pkt *parser.Packet) error {
	if !pkt.HasBody() {
		return s.violation(EventWithoutBody, "")
	}

	event, args, err := parser.SplitEvent(pkt.Body)
	if err != nil {
		return s.violation(MalformedEvent, pkt.Body)
	}

	if relay := s.manager.relay.Load(); relay != nil {
		relay.forward(s.namespace, event, args)
	}

	fn, ok := s.handlers.event(event)
	if !ok {
		return s.violation(UnhandledEvent, event)
	}

	if err := safeCall(func() { fn(args) }); err != nil {
		return s.onError(err)
	}
	return nil
}

func (s *Socket) violation(kind ViolationKind, detail string) error {
	v := &ProtocolViolation{
		Kind:      kind,
		Namespace: s.namespace,
		Detail:    detail,
	}
	observe.IncProtocolViolation(string(kind))
	s.log.Info("dropping packet", "warning", v.Error())
	return v
}

func (s *Socket) onError(err error) error {
	msg := newErrorMessage(s.namespace, err)
	s.log.Error(msg, "handler failed")
	return msg
}
