package service

import (
	"sync"

	"superpos/backend/internal/cart"
)

// session owns one operator's cart. The engine has no lock of its own, so
// every access goes through mu.
type session struct {
	mu     sync.Mutex
	engine *cart.Engine
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

func (r *sessionRegistry) get(key string, create func() *cart.Engine) *session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[key]; ok {
		return existing
	}
	s := &session{engine: create()}
	r.sessions[key] = s
	return s
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
