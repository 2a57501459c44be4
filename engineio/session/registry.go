package session

import "sync"

// Registry maps a base endpoint to the session serving it.
type Registry struct {
	sessions sync.Map
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Get(endpoint string) (*Session, bool) {
	raw, ok := r.sessions.Load(endpoint)
	if !ok {
		return nil, false
	}
	s, ok := raw.(*Session)
	return s, ok
}

func (r *Registry) Set(endpoint string, s *Session) {
	r.sessions.Store(endpoint, s)
}

// Delete removes endpoint only while it still maps to s.
func (r *Registry) Delete(endpoint string, s *Session) bool {
	return r.sessions.CompareAndDelete(endpoint, s)
}

func (r *Registry) Range(fn func(endpoint string, s *Session)) {
	r.sessions.Range(func(rawKey, rawVal any) bool {
		key, ok := rawKey.(string)
		if !ok {
			return true
		}
		val, ok := rawVal.(*Session)
		if !ok {
			return true
		}
		fn(key, val)
		return true
	})
}

func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
