package socketio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const relayPublishTimeout = 5 * time.Second

var errInvalidRelayMessage = errors.New("invalid relay message")

// relayMessage is the envelope exchanged over redis. Args is the raw
// argument payload of the event.
type relayMessage struct {
	UID       string `json:"uid"`
	Namespace string `json:"nsp"`
	Event     string `json:"event"`
	Args      string `json:"args,omitempty"`
}

func eventChannel(prefix string, nsp string, event string) string {
	return fmt.Sprintf("%s#%s#%s", prefix, nsp, event)
}

func emitChannel(prefix string, nsp string) string {
	return fmt.Sprintf("%s-emit#%s", prefix, nsp)
}

func encodeRelayMessage(msg *relayMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func decodeRelayMessage(data []byte) (*relayMessage, error) {
	var msg relayMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRelayMessage, err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("%w: missing event", errInvalidRelayMessage)
	}
	return &msg, nil
}

// redisRelay publishes inbound events to redis and emits the requests other
// processes publish on the emit channel of a namespace.
type redisRelay struct {
	client *redis.Client
	prefix string
	uid    string

	ctx    context.Context
	cancel context.CancelFunc

	log logr.Logger
}

func newRedisRelay(opts *RedisAdapterConfig, log logr.Logger) (*redisRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Network:  opts.Network,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := client.Ping(ctx).Err(); err != nil {
		cancel()
		_ = client.Close()
		return nil, err
	}

	return &redisRelay{
		client: client,
		prefix: opts.Prefix,
		uid:    uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}, nil
}

// forward publishes an inbound event without blocking the dispatch loop.
func (r *redisRelay) forward(nsp string, event string, args string) {
	go r.publish(nsp, event, args)
}

func (r *redisRelay) publish(nsp string, event string, args string) {
	data, err := encodeRelayMessage(&relayMessage{
		UID:       r.uid,
		Namespace: nsp,
		Event:     event,
		Args:      args,
	})
	if err != nil {
		r.log.Error(err, "failed to encode relay message")
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, relayPublishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, eventChannel(r.prefix, nsp, event), data).Err(); err != nil {
		r.log.Error(err, "failed to publish event", "event", event)
	}
}

// attach subscribes s to the emit channel of its namespace until s is
// closed or the relay shuts down.
func (r *redisRelay) attach(s *Socket) {
	ctx, cancel := context.WithCancel(r.ctx)
	s.setRelay(cancel)

	sub := r.client.Subscribe(ctx, emitChannel(r.prefix, s.namespace))
	go r.serve(ctx, sub, s)
}

func (r *redisRelay) serve(ctx context.Context, sub *redis.PubSub, s *Socket) {
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := r.onMessage(s, []byte(msg.Payload)); err != nil {
				r.log.Error(err, "dropping relay message", "channel", msg.Channel)
			}
		}
	}
}

func (r *redisRelay) onMessage(s *Socket, payload []byte) error {
	msg, err := decodeRelayMessage(payload)
	if err != nil {
		return err
	}

	if msg.UID == r.uid {
		return nil
	}
	if msg.Namespace != "" && msg.Namespace != s.namespace {
		return nil
	}

	return s.EmitJSON(msg.Event, msg.Args, nil)
}

func (r *redisRelay) close() {
	r.cancel()
	if err := r.client.Close(); err != nil {
		r.log.Error(err, "failed to close redis client")
	}
}
