package transport

import (
	"context"
	"io"
	"sync"

	"github.com/thisismz/go-socket.io-client/engineio/packet"
)

// FakeConn is an in-memory Conn for driving handshakes without a network.
type FakeConn struct {
	// NeverConnect keeps Connect blocked until its context is done.
	NeverConnect bool
	// ConnectErr, when set, is returned by Connect.
	ConnectErr error
	// AnswerProbe makes the fake reply 3probe to 2probe.
	AnswerProbe bool

	mu        sync.Mutex
	uri       string
	sent      []string
	connected bool
	lastErr   error

	frames    chan string
	done      chan struct{}
	closeOnce sync.Once
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		AnswerProbe: true,
		frames:      make(chan string, frameBufferSize),
		done:        make(chan struct{}),
	}
}

func (c *FakeConn) Connect(ctx context.Context, uri string) error {
	c.mu.Lock()
	c.uri = uri
	c.mu.Unlock()

	if c.ConnectErr != nil {
		c.mu.Lock()
		c.lastErr = c.ConnectErr
		c.mu.Unlock()
		return c.ConnectErr
	}

	if c.NeverConnect {
		<-ctx.Done()
		return ctx.Err()
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *FakeConn) Send(frame string) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.sent = append(c.sent, frame)
	c.mu.Unlock()

	if c.AnswerProbe && frame == packet.Probe {
		c.Push(packet.ProbeAnswer)
	}
	return nil
}

func (c *FakeConn) Receive(ctx context.Context) (string, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.done:
		if err := c.LastError(); err != nil {
			return "", err
		}
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *FakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *FakeConn) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *FakeConn) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Push queues an inbound frame.
func (c *FakeConn) Push(frame string) {
	select {
	case c.frames <- frame:
	case <-c.done:
	}
}

// Fail simulates the remote dropping the channel with err.
func (c *FakeConn) Fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	_ = c.Close()
}

// URI returns the address passed to Connect.
func (c *FakeConn) URI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uri
}

// Sent returns a copy of every frame sent so far.
func (c *FakeConn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// Closed reports whether Close or Fail has been called.
func (c *FakeConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// FakePoller answers bootstrap requests with a canned body.
type FakePoller struct {
	Body  string
	Err   error
	Block bool

	mu   sync.Mutex
	urls []string
}

func (p *FakePoller) Poll(ctx context.Context, url string) (string, error) {
	p.mu.Lock()
	p.urls = append(p.urls, url)
	p.mu.Unlock()

	if p.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.Body, p.Err
}

// URLs returns every polled URL in order.
func (p *FakePoller) URLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.urls))
	copy(out, p.urls)
	return out
}
