package assist

import (
	"context"
	"fmt"
	"sync"
)

// Registry manages assist backends and supports fallback completion.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	primary  string
	fallback string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend to the registry. The first registered backend
// becomes the primary by default.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
	if r.primary == "" {
		r.primary = name
	}
}

// SetPrimary sets the primary backend by name.
func (r *Registry) SetPrimary(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = name
}

// SetFallback sets the fallback backend by name.
func (r *Registry) SetFallback(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = name
}

// Get returns a backend by name, or false if not found.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Primary returns the primary backend, or nil if none configured.
func (r *Registry) Primary() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[r.primary]
}

// Fallback returns the fallback backend, or nil if none configured.
func (r *Registry) Fallback() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fallback == "" {
		return nil
	}
	return r.backends[r.fallback]
}

// Backends returns the names of all registered backends.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// CompleteWithFallback tries the primary backend once, then the fallback
// once. Each backend makes exactly one attempt.
func (r *Registry) CompleteWithFallback(ctx context.Context, req Request) (*Response, error) {
	primary := r.Primary()
	if primary == nil {
		return nil, fmt.Errorf("assist: no primary backend configured")
	}

	resp, err := primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	fallback := r.Fallback()
	if fallback == nil {
		return nil, fmt.Errorf("assist: primary backend %q failed: %w", r.primary, err)
	}

	resp, fbErr := fallback.Complete(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("assist: primary %q failed (%v), fallback %q also failed: %w", r.primary, err, r.fallback, fbErr)
	}
	return resp, nil
}

// AnalyzeImageWithFallback mirrors CompleteWithFallback for screenshots.
func (r *Registry) AnalyzeImageWithFallback(ctx context.Context, req ImageRequest) (*Response, error) {
	primary := r.Primary()
	if primary == nil {
		return nil, fmt.Errorf("assist: no primary backend configured")
	}

	resp, err := primary.AnalyzeImage(ctx, req)
	if err == nil {
		return resp, nil
	}

	fallback := r.Fallback()
	if fallback == nil {
		return nil, fmt.Errorf("assist: primary backend %q failed: %w", r.primary, err)
	}

	resp, fbErr := fallback.AnalyzeImage(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("assist: primary %q failed (%v), fallback %q also failed: %w", r.primary, err, r.fallback, fbErr)
	}
	return resp, nil
}
