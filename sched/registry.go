package sched

import (
	"context"
	"sync"

	"github.com/apiwire/apiwire/observe"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Logger is handed to every created Scheduler. Default: no-op.
	Logger observe.Logger

	// Observer is handed to every created Scheduler. Optional.
	Observer Observer
}

// Registry maps string keys to lazily-created Scheduler instances.
//
// A Registry is an explicit, caller-owned object: the embedding
// application decides whether to share one instance. Schedulers live for
// the lifetime of their registry entry; distinct keys never share state.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Scheduler

	log observe.Logger
	obs Observer
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return &Registry{
		queues: make(map[string]*Scheduler),
		log:    cfg.Logger,
		obs:    cfg.Observer,
	}
}

// GetOrCreateQueue returns the Scheduler for key, creating it with the
// given limit if absent (limit <= 0 means the default of 1). If the
// scheduler already exists and limit is larger than its current limit,
// the limit is raised; limits are never lowered by re-registration.
func (r *Registry) GetOrCreateQueue(key string, limit int) *Scheduler {
	if limit <= 0 {
		limit = 1
	}

	r.mu.Lock()
	s, ok := r.queues[key]
	if !ok {
		s = New(Config{
			Key:      key,
			Limit:    limit,
			Logger:   r.log,
			Observer: r.obs,
		})
		r.queues[key] = s
		r.mu.Unlock()
		return s
	}
	r.mu.Unlock()

	if limit > s.ConcurrencyLimit() {
		s.SetConcurrencyLimit(limit)
	}
	return s
}

// GetQueue returns the Scheduler for key, creating it with the default
// limit of 1 (fully serialized) if absent.
func (r *Registry) GetQueue(key string) *Scheduler {
	return r.GetOrCreateQueue(key, 1)
}

// TryGet returns the Scheduler for key without creating one.
func (r *Registry) TryGet(key string) (*Scheduler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.queues[key]
	return s, ok
}

// Add submits fn to the scheduler for key, creating it with limit 1 if
// absent. It is sugar for GetQueue(key).Add(ctx, fn, priority).
func (r *Registry) Add(ctx context.Context, key string, fn Func, priority int) {
	r.GetQueue(key).Add(ctx, fn, priority)
}
