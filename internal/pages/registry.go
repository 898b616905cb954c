package pages

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds pages in registration order.
type Registry struct {
	mu     sync.RWMutex
	pages  []Page
	bySlug map[string]Page
}

func NewRegistry() *Registry {
	return &Registry{bySlug: make(map[string]Page)}
}

func (r *Registry) Register(p Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bySlug[p.Slug()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePage, p.Slug())
	}
	r.pages = append(r.pages, p)
	r.bySlug[p.Slug()] = p
	return nil
}

func (r *Registry) MustRegister(pages ...Page) {
	for _, p := range pages {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Pages() []Page {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Page, len(r.pages))
	copy(out, r.pages)
	return out
}

// Lookup finds a page by slug or, case-insensitively, by title.
func (r *Registry) Lookup(name string) (Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.bySlug[name]; ok {
		return p, nil
	}
	for _, p := range r.pages {
		if strings.EqualFold(p.Title(), strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPageNotFound, name)
}
