package socketio

import "sync"

// socketSet indexes the live sockets by base endpoint.
type socketSet struct {
	mu   sync.RWMutex
	data map[string]map[string]*Socket
}

func newSocketSet() *socketSet {
	return &socketSet{data: make(map[string]map[string]*Socket)}
}

func (ss *socketSet) add(s *Socket) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	base := s.Endpoint()
	sockets, ok := ss.data[base]
	if !ok {
		sockets = make(map[string]*Socket)
		ss.data[base] = sockets
	}
	sockets[s.ID()] = s
}

func (ss *socketSet) remove(s *Socket) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	base := s.Endpoint()
	sockets, ok := ss.data[base]
	if !ok {
		return
	}

	delete(sockets, s.ID())
	if len(sockets) == 0 {
		delete(ss.data, base)
	}
}

// on returns a snapshot of the sockets of one endpoint.
func (ss *socketSet) on(base string) map[string]*Socket {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return copyMap(ss.data[base])
}

// forEach is use for iterate for read purpose only
func (ss *socketSet) forEach(fn func(s *Socket)) {
	for _, base := range ss.endpoints() {
		for _, s := range ss.on(base) {
			fn(s)
		}
	}
}

func (ss *socketSet) endpoints() []string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return getKeysOfMap(ss.data)
}

func (ss *socketSet) len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	n := 0
	for _, sockets := range ss.data {
		n += len(sockets)
	}
	return n
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	res := make(map[K]V, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}

func getKeysOfMap[K comparable, V any](m map[K]V) []K {
	res := make([]K, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	return res
}
