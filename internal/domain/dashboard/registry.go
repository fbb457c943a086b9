package dashboard

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrSessionNotFound is returned for unknown or expired dashboard ids.
var ErrSessionNotFound = errors.New("dashboard session not found")

// Factory builds a fresh engine for a new session.
type Factory func() (*Engine, error)

// SessionObserver is told how many sessions are live after every change.
type SessionObserver interface {
	SessionsActive(n int)
}

// Registry holds open dashboards keyed by session id. Sessions expire after
// ttl without access and the least recently used one is evicted when the
// registry is full; eviction closes the engine.
type Registry struct {
	cache    *expirable.LRU[uuid.UUID, *Engine]
	factory  Factory
	observer SessionObserver
	onChange func(id uuid.UUID, e *Engine)
	onClose  func(id uuid.UUID)
	// live mirrors the cache size. The eviction callback runs under the
	// cache lock, so it cannot ask the cache for its length.
	live atomic.Int64
}

func NewRegistry(size int, ttl time.Duration, factory Factory, observer SessionObserver) *Registry {
	r := &Registry{factory: factory, observer: observer}
	r.cache = expirable.NewLRU[uuid.UUID, *Engine](size, func(id uuid.UUID, e *Engine) {
		e.Close()
		r.observe(r.live.Add(-1))
		if r.onClose != nil {
			r.onClose(id)
		}
	}, ttl)
	return r
}

func (r *Registry) observe(n int64) {
	if r.observer != nil {
		r.observer.SessionsActive(int(n))
	}
}

// OnChange registers fn to run whenever a feed result changes a session
// opened afterwards. Call it before serving.
func (r *Registry) OnChange(fn func(id uuid.UUID, e *Engine)) {
	r.onChange = fn
}

// OnClose registers fn to run when a session is removed, expires or is
// evicted. fn must not call back into the registry.
func (r *Registry) OnClose(fn func(id uuid.UUID)) {
	r.onClose = fn
}

// Open creates a session and selects ref on it.
func (r *Registry) Open(ref SubjectRef) (uuid.UUID, *Engine, error) {
	e, err := r.factory()
	if err != nil {
		return uuid.Nil, nil, err
	}
	id := uuid.New()
	if fn := r.onChange; fn != nil {
		e.Watch(func() { fn(id, e) })
	}
	if err := e.SetSubject(ref); err != nil {
		e.Close()
		return uuid.Nil, nil, err
	}
	r.observe(r.live.Add(1))
	r.cache.Add(id, e)
	return id, e, nil
}

// Get returns the session's engine and renews its expiry.
func (r *Registry) Get(id uuid.UUID) (*Engine, error) {
	e, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	r.cache.Add(id, e)
	return e, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id uuid.UUID) error {
	if !r.cache.Remove(id) {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Registry) Len() int { return r.cache.Len() }

// Close closes every open session.
func (r *Registry) Close() {
	r.cache.Purge()
}
