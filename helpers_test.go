package socketio

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/require"

	"github.com/thisismz/go-socket.io-client/engineio/transport"
	"github.com/thisismz/go-socket.io-client/internal/clock"
)

const (
	waitFor = 2 * time.Second
	pollGap = 5 * time.Millisecond
)

var epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

const openBody = `96:0{"sid":"abc","upgrades":["websocket"],"pingInterval":25000,"pingTimeout":5000}2:40`

// fakeNet hands out FakeConns and remembers them in dial order.
type fakeNet struct {
	mu        sync.Mutex
	conns     []*transport.FakeConn
	configure func(c *transport.FakeConn)
}

func (n *fakeNet) dial() transport.Conn {
	c := transport.NewFakeConn()
	if n.configure != nil {
		n.configure(c)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.conns = append(n.conns, c)
	return c
}

func (n *fakeNet) conn(i int) *transport.FakeConn {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conns[i]
}

func (n *fakeNet) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns)
}

// logLines captures everything written through the returned logger.
type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) logger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.lines = append(l.lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})
}

func (l *logLines) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, line := range l.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

type testEnv struct {
	m      *Manager
	net    *fakeNet
	poller *transport.FakePoller
	clock  *clock.Mock
	logs   *logLines
}

func newTestEnv(t *testing.T, options ...Option) *testEnv {
	t.Helper()

	env := &testEnv{
		net:    &fakeNet{},
		poller: &transport.FakePoller{Body: openBody},
		clock:  clock.NewMock(epoch),
		logs:   &logLines{},
	}

	base := []Option{
		WithDialer(env.net.dial),
		WithPoller(env.poller),
		WithClock(env.clock),
		WithLogger(env.logs.logger()),
	}
	env.m = NewManager(nil, append(base, options...)...)
	t.Cleanup(func() { _ = env.m.Close() })

	return env
}

// settle waits until the attempt in flight has reported back.
func (env *testEnv) settle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return !env.m.InFlight() }, waitFor, pollGap)
}

// connect queues url and drives the supervisor until the attempt is done.
func (env *testEnv) connect(t *testing.T, url string) (*Socket, *lifecycleLog) {
	t.Helper()

	s, err := env.m.Connect(url)
	require.NoError(t, err)
	events := watch(t, s)

	require.True(t, env.m.tick())
	env.settle(t)
	return s, events
}

type lifecycleLog struct {
	mu     sync.Mutex
	events []Lifecycle
}

func watch(t *testing.T, s *Socket) *lifecycleLog {
	t.Helper()

	l := &lifecycleLog{}
	for name := range reservedEvents {
		require.NoError(t, s.OnLifecycle(name, l.record))
	}
	return l
}

func (l *lifecycleLog) record(ev Lifecycle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *lifecycleLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Event)
	}
	return out
}

func (l *lifecycleLog) last(name string) (Lifecycle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Event == name {
			return l.events[i], true
		}
	}
	return Lifecycle{}, false
}

// gatePoller blocks every Poll until release is closed.
type gatePoller struct {
	release chan struct{}
	body    string

	mu   sync.Mutex
	urls []string
}

func newGatePoller(body string) *gatePoller {
	return &gatePoller{release: make(chan struct{}), body: body}
}

func (p *gatePoller) Poll(ctx context.Context, url string) (string, error) {
	p.mu.Lock()
	p.urls = append(p.urls, url)
	p.mu.Unlock()

	select {
	case <-p.release:
		return p.body, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *gatePoller) polled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.urls)
}
