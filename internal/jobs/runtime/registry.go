package runtime

import (
	"fmt"
	"sync"

	"github.com/yungbote/itvault-backend/internal/domain/search"
)

type Handler interface {
	Kind() search.JobKind
	Run(jc *Context) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[search.JobKind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[search.JobKind]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	k := h.Kind()
	if k == "" {
		return fmt.Errorf("handler Kind() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("handler already registered for kind=%s", k)
	}
	r.handlers[k] = h
	return nil
}

func (r *Registry) Get(kind search.JobKind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

func (r *Registry) Kinds() []search.JobKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]search.JobKind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	return out
}
