package store

import (
	"log/slog"
	"sync"
	"time"
)

// Factory builds the store of a client seen for the first time.
type Factory func(clientID string) *Store

type registryEntry struct {
	store    *Store
	lastSeen time.Time
}

// Registry owns one Store per client session. A store lives until the client has been idle
// for longer than the TTL; the next request from that client starts a fresh run that only
// restores the persisted identity.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	factory Factory
	ttl     time.Duration
	logger  *slog.Logger
	onEvict func(clientID string)
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewRegistry creates a registry and starts its janitor.
func NewRegistry(factory Factory, ttl time.Duration, logger *slog.Logger) *Registry {
	r := &Registry{
		entries: make(map[string]*registryEntry),
		factory: factory,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go r.janitor()
	return r
}

// OnEvict registers a hook run after a client's store is dropped.
func (r *Registry) OnEvict(fn func(clientID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = fn
}

// Get returns the client's store, creating and restoring it on first use.
func (r *Registry) Get(clientID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[clientID]; ok {
		e.lastSeen = r.now()
		return e.store
	}

	st := r.factory(clientID)
	if err := st.Restore(); err != nil {
		r.logger.Warn("Stored identity discarded", "error", err)
	}
	r.entries[clientID] = &registryEntry{store: st, lastSeen: r.now()}
	r.logger.Info("Session store created", "sessions", len(r.entries))
	return st
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts every store idle since before now minus the TTL and returns how many went.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	var evicted []string
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			e.store.Close()
			delete(r.entries, id)
			evicted = append(evicted, id)
		}
	}
	hook := r.onEvict
	r.mu.Unlock()

	for _, id := range evicted {
		if hook != nil {
			hook(id)
		}
	}
	if len(evicted) > 0 {
		r.logger.Info("Evicted idle session stores", "count", len(evicted))
	}
	return len(evicted)
}

func (r *Registry) janitor() {
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep(r.now())
		case <-r.stop:
			return
		}
	}
}

// Close stops the janitor and releases every store.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.stop)
		r.mu.Lock()
		defer r.mu.Unlock()
		for id, e := range r.entries {
			e.store.Close()
			delete(r.entries, id)
		}
	})
}
