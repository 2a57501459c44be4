// Package transport defines the duplex channel and bootstrap request used by
// the handshake, with a gorilla/websocket channel and an HTTP poller.
package transport

import (
	"context"
	"errors"
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrClosed       = errors.New("transport: closed")
)

// Conn is a text-frame duplex channel.
//
// Connect blocks until the channel is open, the context is done, or dialing
// fails. Receive blocks until a frame arrives, the context is done, or the
// channel closes; after an unexpected close it returns LastError.
type Conn interface {
	Connect(ctx context.Context, uri string) error
	Send(frame string) error
	Receive(ctx context.Context) (string, error)
	IsConnected() bool
	LastError() error
	Close() error
}

// Dialer creates an unconnected Conn for each upgrade attempt.
type Dialer func() Conn

// Poller performs the one-shot polling bootstrap request and returns its body.
type Poller interface {
	Poll(ctx context.Context, url string) (string, error)
}
