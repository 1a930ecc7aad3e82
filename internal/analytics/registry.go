package analytics

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Registry hands out one Service per user, creating and initializing it on
// first use.
type Registry struct {
	mu       sync.Mutex
	source   HistorySource
	opts     []Option
	services map[string]*Service
}

// NewRegistry creates a registry whose services read from source
func NewRegistry(source HistorySource, opts ...Option) *Registry {
	return &Registry{
		source:   source,
		opts:     opts,
		services: make(map[string]*Service),
	}
}

// For returns the initialized service for userID
func (r *Registry) For(ctx context.Context, userID string) (*Service, error) {
	r.mu.Lock()
	svc, ok := r.services[userID]
	if !ok {
		svc = NewService(r.source, r.opts...)
		r.services[userID] = svc
	}
	r.mu.Unlock()

	if err := svc.Initialize(ctx, userID); err != nil {
		return nil, err
	}
	return svc, nil
}

// Invalidate makes the next For call for userID reload its history
func (r *Registry) Invalidate(userID string) {
	r.mu.Lock()
	svc, ok := r.services[userID]
	r.mu.Unlock()
	if ok {
		svc.Invalidate()
	}
}

// Users returns the users with a service, sorted
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.services))
}
