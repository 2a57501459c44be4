package socketio

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRelay connects to the redis server named by SIO_TEST_REDIS_ADDR and
// skips when none is configured or reachable. Each relay gets its own prefix.
func testRelay(t *testing.T) (*redisRelay, *redis.Client) {
	t.Helper()

	addr := os.Getenv("SIO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SIO_TEST_REDIS_ADDR not set")
	}

	r, err := newRedisRelay(GetRedisOptions(&RedisAdapterConfig{
		Addr:   addr,
		Prefix: "siotest-" + uuid.NewString(),
	}), logr.Discard())
	if err != nil {
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
	t.Cleanup(r.close)

	peer := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = peer.Close() })
	return r, peer
}

// subscribers returns how many clients listen on channel, -1 on error.
func subscribers(c *redis.Client, channel string) int64 {
	counts, err := c.PubSubNumSub(context.Background(), channel).Result()
	if err != nil {
		return -1
	}
	return counts[channel]
}

func TestRelayChannels(t *testing.T) {
	assert.Equal(t, "socket.io#/chat#message", eventChannel("socket.io", "/chat", "message"))
	assert.Equal(t, "socket.io-emit#/", emitChannel("socket.io", "/"))
}

func TestRelayMessageCodec(t *testing.T) {
	data, err := encodeRelayMessage(&relayMessage{
		UID:       "u1",
		Namespace: "/chat",
		Event:     "message",
		Args:      `"hello","world"`,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"uid":"u1","nsp":"/chat","event":"message","args":"\"hello\",\"world\""}`, string(data))

	msg, err := decodeRelayMessage(data)
	require.NoError(t, err)
	assert.Equal(t, `"hello","world"`, msg.Args)

	_, err = decodeRelayMessage([]byte(`{"uid":"u1"}`))
	assert.ErrorIs(t, err, errInvalidRelayMessage)
	_, err = decodeRelayMessage([]byte(`not json`))
	assert.ErrorIs(t, err, errInvalidRelayMessage)
}

func TestRelayOnMessage(t *testing.T) {
	s, conn := liveSocket(t, "http://localhost:3000/chat")
	r := &redisRelay{prefix: "socket.io", uid: "self"}

	echo := []byte(`{"uid":"self","nsp":"/chat","event":"say","args":"1"}`)
	require.NoError(t, r.onMessage(s, echo))

	elsewhere := []byte(`{"uid":"peer","nsp":"/news","event":"say","args":"1"}`)
	require.NoError(t, r.onMessage(s, elsewhere))
	assert.Empty(t, conn.Sent())

	forwarded := []byte(`{"uid":"peer","nsp":"/chat","event":"say","args":"{\"a\":1}"}`)
	require.NoError(t, r.onMessage(s, forwarded))
	assert.Equal(t, []string{`42/chat,["say",{"a":1}]`}, conn.Sent())

	reserved := []byte(`{"uid":"peer","event":"connect"}`)
	assert.ErrorIs(t, r.onMessage(s, reserved), ErrReservedEvent)
}

func TestRelayPublishReachesEventChannel(t *testing.T) {
	r, peer := testRelay(t)
	ctx := context.Background()

	sub := peer.Subscribe(ctx, eventChannel(r.prefix, "/chat", "message"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	r.publish("/chat", "message", `"hello"`)

	select {
	case msg := <-sub.Channel():
		got, err := decodeRelayMessage([]byte(msg.Payload))
		require.NoError(t, err)
		assert.Equal(t, r.uid, got.UID)
		assert.Equal(t, "/chat", got.Namespace)
		assert.Equal(t, "message", got.Event)
		assert.Equal(t, `"hello"`, got.Args)
	case <-time.After(waitFor):
		t.Fatal("no message on the event channel")
	}
}

func TestRelayAttachEmitsPublishedRequests(t *testing.T) {
	r, peer := testRelay(t)
	s, conn := liveSocket(t, "http://localhost:3000/chat")
	channel := emitChannel(r.prefix, "/chat")

	r.attach(s)
	require.Eventually(t, func() bool { return subscribers(peer, channel) == 1 }, waitFor, pollGap)

	data, err := encodeRelayMessage(&relayMessage{UID: "peer", Namespace: "/chat", Event: "say", Args: `"hi"`})
	require.NoError(t, err)
	require.NoError(t, peer.Publish(context.Background(), channel, data).Err())

	require.Eventually(t, func() bool { return len(conn.Sent()) == 1 }, waitFor, pollGap)
	assert.Equal(t, []string{`42/chat,["say","hi"]`}, conn.Sent())

	s.stopRelay()
	require.Eventually(t, func() bool { return subscribers(peer, channel) == 0 }, waitFor, pollGap)
}
