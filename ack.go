package socketio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thisismz/go-socket.io-client/internal/observe"
)

// AckFunc receives the body of the ACK packet answering an emit.
type AckFunc func(body string)

// ackRegistry correlates outgoing packet ids with their callbacks. Entries
// for which the remote never answers are kept until the socket is closed.
type ackRegistry struct {
	nextID  atomic.Int64
	pending sync.Map
	size    atomic.Int64
}

func newAckRegistry() *ackRegistry {
	return &ackRegistry{}
}

// register stores fn and returns the id to carry on the outgoing packet.
// Ids start at 0 and strictly increase.
func (r *ackRegistry) register(fn AckFunc) int {
	id := int(r.nextID.Add(1) - 1)
	r.pending.Store(id, fn)
	r.size.Add(1)
	observe.AddPendingAcks(1)
	return id
}

// resolve invokes and removes the callback for id. It reports false when id
// is unknown, leaving the table unchanged.
func (r *ackRegistry) resolve(id int, body string) (bool, error) {
	raw, ok := r.pending.LoadAndDelete(id)
	if !ok {
		return false, nil
	}
	r.size.Add(-1)
	observe.AddPendingAcks(-1)

	fn, ok := raw.(AckFunc)
	if !ok {
		return true, fmt.Errorf("incorrect data stored for ack %d", id)
	}

	return true, safeCall(func() { fn(body) })
}

// forget drops id without invoking it.
func (r *ackRegistry) forget(id int) {
	if _, ok := r.pending.LoadAndDelete(id); ok {
		r.size.Add(-1)
		observe.AddPendingAcks(-1)
	}
}

func (r *ackRegistry) clear() {
	r.pending.Range(func(key, _ any) bool {
		if id, ok := key.(int); ok {
			r.forget(id)
		}
		return true
	})
}

func (r *ackRegistry) len() int {
	return int(r.size.Load())
}
