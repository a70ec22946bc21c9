package audit

import (
	"context"
	"fmt"
	"sync"
)

// ConfigStore loads audit policies from durable storage.
type ConfigStore interface {
	ListConfigs(ctx context.Context) ([]Config, error)
}

// Registry caches per-resource audit policies process-wide. Policies are
// administrative and rarely change, so reads carry no TTL; Reload applies
// administrative updates without a restart. An absent resource means
// "do not audit" and is a no-op for callers, never an error.
type Registry struct {
	store ConfigStore

	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry constructs a registry. Call Reload before first use.
func NewRegistry(store ConfigStore) *Registry {
	return &Registry{store: store, configs: make(map[string]Config)}
}

// Reload replaces the cached policy set from the store.
func (r *Registry) Reload(ctx context.Context) error {
	configs, err := r.store.ListConfigs(ctx)
	if err != nil {
		return fmt.Errorf("audit: reload configs: %w", err)
	}
	next := make(map[string]Config, len(configs))
	for _, cfg := range configs {
		next[cfg.Resource] = cfg
	}
	r.mu.Lock()
	r.configs = next
	r.mu.Unlock()
	return nil
}

// Get returns the policy for a resource, ok=false when the resource is not
// audited.
func (r *Registry) Get(resource string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[resource]
	return cfg, ok
}

// All returns a snapshot of every configured policy.
func (r *Registry) All() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	return out
}
