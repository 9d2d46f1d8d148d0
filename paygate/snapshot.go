package paygate

import "sync/atomic"

// Source yields the configuration to apply to the next request
type Source interface {
	Load() *Middleware
}

// Snapshot holds the current configuration and lets it be replaced while
// requests are in flight. Requests that already loaded a configuration keep
// using it.
type Snapshot struct {
	current atomic.Pointer[Middleware]
}

// NewSnapshot starts from m
func NewSnapshot(m *Middleware) *Snapshot {
	s := &Snapshot{}
	s.current.Store(m)
	return s
}

// Load returns the current configuration
func (s *Snapshot) Load() *Middleware {
	return s.current.Load()
}

// Store replaces the configuration
func (s *Snapshot) Store(m *Middleware) {
	s.current.Store(m)
}

// Update replaces the configuration with fn applied to the current one,
// retrying if another update wins the race.
func (s *Snapshot) Update(fn func(*Middleware) *Middleware) *Middleware {
	for {
		old := s.current.Load()
		next := fn(old)
		if s.current.CompareAndSwap(old, next) {
			return next
		}
	}
}
