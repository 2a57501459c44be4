package socketio

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout       = errors.New("socketio: connect timeout")
	ErrReservedEvent = errors.New("socketio: reserved event name")
	ErrNotLifecycle  = errors.New("socketio: not a lifecycle event")
	ErrNotConnected  = errors.New("socketio: not connected")
	ErrCancelled     = errors.New("socketio: connect cancelled")
	ErrManagerClosed = errors.New("socketio: manager closed")
	ErrSocketClosed  = errors.New("socketio: socket closed")
	ErrInvalidURL    = errors.New("socketio: invalid url")
)

// TransportError wraps a failure of the underlying channel or of the
// bootstrap request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("socketio: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type ViolationKind string

const (
	AckWithoutID     ViolationKind = "ack_without_id"
	UnknownAckID     ViolationKind = "unknown_ack_id"
	EventWithoutBody ViolationKind = "event_without_body"
	MalformedEvent   ViolationKind = "malformed_event"
	UnhandledEvent   ViolationKind = "unhandled_event"
	ErrorPacket      ViolationKind = "error_packet"
	BinaryPacket     ViolationKind = "binary_packet"
)

// ProtocolViolation is reported for inbound packets that are dropped. It
// never tears down the connection.
type ProtocolViolation struct {
	Kind      ViolationKind
	Namespace string
	Detail    string
}

func (v *ProtocolViolation) Error() string {
	if v.Detail == "" {
		return fmt.Sprintf("socketio: %s on %s", v.Kind, v.Namespace)
	}
	return fmt.Sprintf("socketio: %s on %s: %s", v.Kind, v.Namespace, v.Detail)
}

type errorMessage struct {
	namespace string
	err       error
}

func newErrorMessage(namespace string, err error) *errorMessage {
	return &errorMessage{
		namespace: namespace,
		err:       err,
	}
}

func (e *errorMessage) Error() string {
	return fmt.Sprintf("namespace %s: %v", e.namespace, e.err)
}

func (e *errorMessage) Unwrap() error {
	return e.err
}
