package socketio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerConnectInvalidURL(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.m.Connect("ftp://localhost")
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Equal(t, 0, env.m.Pending())
}

func TestManagerServe(t *testing.T) {
	env := newTestEnv(t, WithTickInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.m.Serve(ctx) }()

	s, err := env.m.Connect("http://localhost:3000/chat")
	require.NoError(t, err)

	require.Eventually(t, s.IsConnected, waitFor, pollGap)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Serve did not return")
	}
}

func TestManagerSharesSessionPerEndpoint(t *testing.T) {
	env := newTestEnv(t)

	chat, chatEvents := env.connect(t, "http://localhost:3000/chat")
	news, newsEvents := env.connect(t, "http://localhost:3000/news")
	other, _ := env.connect(t, "http://other:3000/")

	assert.Equal(t, []string{EventConnect}, chatEvents.names())
	assert.Equal(t, []string{EventConnect}, newsEvents.names())
	assert.Same(t, chat.currentSession(), news.currentSession())
	assert.NotSame(t, chat.currentSession(), other.currentSession())
	assert.Equal(t, 2, env.m.Sessions())
	assert.Equal(t, 2, env.net.count())
}

func TestManagerSessionLossReconnects(t *testing.T) {
	env := newTestEnv(t, WithReconnectionDelay(time.Second))

	chat, chatEvents := env.connect(t, "http://localhost:3000/chat")
	news, newsEvents := env.connect(t, "http://localhost:3000/news")
	require.True(t, chat.IsConnected())
	require.True(t, news.IsConnected())

	reset := errors.New("connection reset")
	env.net.conn(0).Fail(reset)

	require.Eventually(t, func() bool {
		return len(chatEvents.names()) == 3 && len(newsEvents.names()) == 3
	}, waitFor, pollGap)
	assert.Equal(t, 2, env.m.Pending())
	assert.Equal(t, 0, env.m.Sessions())
	assert.False(t, chat.IsConnected())
	assert.False(t, news.IsConnected())

	for _, events := range []*lifecycleLog{chatEvents, newsEvents} {
		assert.Equal(t, []string{EventConnect, EventDisconnect, EventReconnectAttempt}, events.names())
		ev, _ := events.last(EventDisconnect)
		assert.ErrorIs(t, ev.Err, reset)
	}

	env.clock.Advance(time.Second)
	require.True(t, env.m.tick())
	env.settle(t)
	require.True(t, env.m.tick())
	env.settle(t)

	assert.True(t, chat.IsConnected())
	assert.True(t, news.IsConnected())
	assert.Equal(t, 2, env.net.count())
	assert.Same(t, chat.currentSession(), news.currentSession())

	ev, ok := chatEvents.last(EventReconnect)
	require.True(t, ok)
	assert.Equal(t, 1, ev.Attempt)
}

func TestSocketCloseReleasesSession(t *testing.T) {
	env := newTestEnv(t)

	chat, chatEvents := env.connect(t, "http://localhost:3000/chat")
	news, _ := env.connect(t, "http://localhost:3000/news")
	conn := env.net.conn(0)

	require.NoError(t, chat.Close())
	assert.Contains(t, conn.Sent(), "41/chat")
	assert.Equal(t, []string{EventConnect, EventDisconnect}, chatEvents.names())
	assert.False(t, chat.IsConnected())
	assert.True(t, news.IsConnected())
	assert.False(t, conn.Closed())

	require.NoError(t, news.Close())
	assert.Contains(t, conn.Sent(), "41/news")
	assert.True(t, conn.Closed())
	assert.Equal(t, 0, env.m.Sessions())

	require.NoError(t, news.Close())
	assert.ErrorIs(t, news.Emit("x", "", nil), ErrNotConnected)
}

func TestSocketCloseDropsQueuedRequest(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.m.Connect("http://localhost:3000")
	require.NoError(t, err)
	require.Equal(t, 1, env.m.Pending())

	require.NoError(t, s.Close())
	assert.Equal(t, 0, env.m.Pending())
	assert.False(t, env.m.tick())
}

func TestManagerClose(t *testing.T) {
	env := newTestEnv(t)

	s, events := env.connect(t, "http://localhost:3000/chat")
	conn := env.net.conn(0)

	require.NoError(t, env.m.Close())
	require.NoError(t, env.m.Close())

	assert.True(t, conn.Closed())
	assert.False(t, s.IsConnected())
	assert.Equal(t, []string{EventConnect, EventDisconnect}, events.names())
	assert.Equal(t, 0, env.m.Sessions())

	_, err := env.m.Connect("http://localhost:3000")
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.ErrorIs(t, env.m.Serve(context.Background()), ErrManagerClosed)
	assert.False(t, env.m.Reconnect(s))
}

func TestManagerCloseCancelsAttempt(t *testing.T) {
	gate := newGatePoller(openBody)
	env := newTestEnv(t, WithPoller(gate))

	s, err := env.m.Connect("http://localhost:3000")
	require.NoError(t, err)
	events := watch(t, s)

	require.True(t, env.m.tick())
	require.Eventually(t, func() bool { return gate.polled() == 1 }, waitFor, pollGap)

	require.NoError(t, env.m.Close())
	env.settle(t)

	assert.Empty(t, events.names())
	assert.Equal(t, 0, env.net.count())
}

// failBeforeAttach drops the first dialed conn the first time target reaches
// the namespace join, and waits until the manager has let go of the session.
func failBeforeAttach(t *testing.T, env *testEnv, target **Socket, err error) {
	t.Helper()

	var once sync.Once
	env.m.stateObserver = func(s *Socket, state HandshakeState) {
		if s != *target || state != StateNamespaceJoin {
			return
		}
		once.Do(func() {
			env.net.conn(0).Fail(err)
			assert.Eventually(t, func() bool { return env.m.Sessions() == 0 }, waitFor, pollGap)
		})
	}
}

func TestReusedSessionLostBeforeAttachIsRetried(t *testing.T) {
	env := newTestEnv(t, WithReconnectionDelay(time.Second))

	chat, chatEvents := env.connect(t, "http://localhost:3000/chat")
	require.True(t, chat.IsConnected())

	reset := errors.New("connection reset")
	var root *Socket
	failBeforeAttach(t, env, &root, reset)

	root, err := env.m.Connect("http://localhost:3000/")
	require.NoError(t, err)
	rootEvents := watch(t, root)

	require.True(t, env.m.tick())
	env.settle(t)

	assert.Equal(t, []string{EventConnectError, EventReconnectAttempt}, rootEvents.names())
	ev, _ := rootEvents.last(EventConnectError)
	var terr *TransportError
	require.ErrorAs(t, ev.Err, &terr)
	assert.Equal(t, "attach", terr.Op)
	assert.ErrorIs(t, ev.Err, reset)

	require.Eventually(t, func() bool { return len(chatEvents.names()) == 3 }, waitFor, pollGap)
	assert.False(t, root.IsConnected())
	assert.Nil(t, root.currentSession())
	assert.Equal(t, 2, env.m.Pending())
	assert.Equal(t, 0, env.m.Sessions())

	env.clock.Advance(time.Second)
	require.True(t, env.m.tick())
	env.settle(t)
	require.True(t, env.m.tick())
	env.settle(t)

	assert.True(t, chat.IsConnected())
	assert.True(t, root.IsConnected())
	assert.Same(t, chat.currentSession(), root.currentSession())
	_, ok := rootEvents.last(EventReconnect)
	assert.True(t, ok)
}

func TestFreshSessionLostBeforeAttachIsRetried(t *testing.T) {
	env := newTestEnv(t, WithReconnectionDelay(time.Second))

	reset := errors.New("connection reset")
	var s *Socket
	failBeforeAttach(t, env, &s, reset)

	s, err := env.m.Connect("http://localhost:3000/")
	require.NoError(t, err)
	events := watch(t, s)

	require.True(t, env.m.tick())
	env.settle(t)

	assert.Equal(t, []string{EventConnectError, EventReconnectAttempt}, events.names())
	assert.False(t, s.IsConnected())
	assert.Equal(t, 1, env.m.Pending())
	assert.Equal(t, 0, env.m.Sessions())

	env.clock.Advance(time.Second)
	require.True(t, env.m.tick())
	env.settle(t)

	assert.True(t, s.IsConnected())
	assert.Equal(t, 1, env.m.Sessions())
	assert.Equal(t, 2, env.net.count())
}

func TestNewManagerLeavesCallerOptionsAlone(t *testing.T) {
	opts := DefaultOptions()
	opts.Timeout = 0
	logs := &logLines{}

	first := NewManager(opts, WithPath("/first/"), WithLogger(logs.logger()))
	second := NewManager(opts)
	t.Cleanup(func() {
		_ = first.Close()
		_ = second.Close()
	})

	assert.Equal(t, time.Duration(0), opts.Timeout)
	assert.Equal(t, "/socket.io/", opts.Path)
	assert.Equal(t, "/first/", first.opts.Path)
	assert.Equal(t, "/socket.io/", second.opts.Path)
	assert.Equal(t, DefaultTimeout, second.opts.Timeout)
	assert.NotSame(t, first.opts, second.opts)
}
