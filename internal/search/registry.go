package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps provider names ("google", "tavily") to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]SearchClient
	order    []string
	fallback string
}

func NewRegistry(fallback string) *Registry {
	return &Registry{
		clients:  make(map[string]SearchClient),
		fallback: strings.ToLower(fallback),
	}
}

func (r *Registry) Register(name string, client SearchClient) {
	name = strings.ToLower(name)
	r.mu.Lock()
	if _, ok := r.clients[name]; !ok {
		r.order = append(r.order, name)
	}
	r.clients[name] = client
	r.mu.Unlock()
}

// Get возвращает клиента по имени. Пустое имя = fallback, а если он не
// зарегистрирован, то первый зарегистрированный провайдер.
func (r *Registry) Get(name string) (SearchClient, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, true
		}
		if len(r.order) == 0 {
			return nil, false
		}
		name = r.order[0]
	}
	c, ok := r.clients[name]
	return c, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Search routes the request to the named provider.
func (r *Registry) Search(ctx context.Context, provider string, req SearchRequest) (*SearchResponse, error) {
	c, ok := r.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return c.Search(ctx, req)
}
