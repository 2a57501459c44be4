package parser

import (
	"fmt"

	"github.com/thisismz/go-socket.io-client/engineio/packet"
)

// DefaultNamespace is the namespace every socket joins when none is given.
const DefaultNamespace = "/"

// NoID marks a packet that neither expects nor carries an acknowledgment.
const NoID = -1

// Type of socket.io packet, carried only inside engine MESSAGE frames.
type Type int

const (
	Unknown Type = iota - 1
	Connect
	Disconnect
	Event
	Ack
	Error
	BinaryEvent
	BinaryAck
	Control
)

func (t Type) String() string {
	switch t {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case Event:
		return "event"
	case Ack:
		return "ack"
	case Error:
		return "error"
	case BinaryEvent:
		return "binary_event"
	case BinaryAck:
		return "binary_ack"
	case Control:
		return "control"
	}
	return "unknown"
}

func parseType(b byte) Type {
	if b < '0' || b > '7' {
		return Unknown
	}
	return Type(b - '0')
}

// Packet is one decoded frame.
type Packet struct {
	EngineType packet.Type
	Type       Type
	Namespace  string
	ID         int
	Body       string
}

// NewPacket returns an engine-level packet with no socket part.
func NewPacket(engineType packet.Type) *Packet {
	return &Packet{
		EngineType: engineType,
		Type:       Unknown,
		Namespace:  DefaultNamespace,
		ID:         NoID,
	}
}

// NewMessage returns a MESSAGE packet of the given socket type.
func NewMessage(typ Type, namespace string, body string) *Packet {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Packet{
		EngineType: packet.MESSAGE,
		Type:       typ,
		Namespace:  namespace,
		ID:         NoID,
		Body:       body,
	}
}

func (p *Packet) IsMessage() bool {
	return p.EngineType == packet.MESSAGE
}

func (p *Packet) IsBinary() bool {
	return p.Type == BinaryEvent || p.Type == BinaryAck
}

func (p *Packet) HasNamespace() bool {
	return p.Namespace != "" && p.Namespace != DefaultNamespace
}

func (p *Packet) HasID() bool {
	return p.ID > NoID
}

func (p *Packet) HasBody() bool {
	return p.Body != ""
}

func (p *Packet) String() string {
	return fmt.Sprintf("packet(%s|%s|id=%d|nsp=%s|body=%q)", p.EngineType, p.Type, p.ID, p.Namespace, p.Body)
}
