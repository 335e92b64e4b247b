package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/R4255/news-portal/internal/metrics"
)

// Func is a fallible computation keyed by its argument.
type Func[A, V any] func(ctx context.Context, arg A) (V, error)

// Memo wraps a Func with a TTL cache. Successful results are stored for the
// TTL; errors are returned to the caller and never stored, so the next call
// retries. Concurrent misses for the same key share one call.
type Memo[A, V any] struct {
	name  string
	keyFn func(A) string
	fn    Func[A, V]
	store *TTL[V]
	group singleflight.Group
}

// WithTTL returns fn memoized under keyFn for ttl. name labels the cache in
// metrics.
func WithTTL[A, V any](name string, keyFn func(A) string, ttl time.Duration, fn Func[A, V]) *Memo[A, V] {
	return &Memo[A, V]{
		name:  name,
		keyFn: keyFn,
		fn:    fn,
		store: NewTTL[V](ttl),
	}
}

// Get returns the cached value for arg or computes and stores it.
func (m *Memo[A, V]) Get(ctx context.Context, arg A) (V, error) {
	key := m.keyFn(arg)
	if v, ok := m.store.Get(key); ok {
		metrics.CacheLookups.WithLabelValues(m.name, "hit").Inc()
		return v, nil
	}

	// The shared call must outlive a caller that goes away; the wrapped fn
	// applies its own timeout.
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		// Re-check: a flight that finished just before ours may have stored it.
		if v, ok := m.store.Get(key); ok {
			return v, nil
		}
		v, err := m.fn(shared, arg)
		if err != nil {
			return v, err
		}
		m.store.Set(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		result := "miss"
		if res.Shared {
			result = "shared"
		}
		metrics.CacheLookups.WithLabelValues(m.name, result).Inc()
		v, _ := res.Val.(V)
		return v, res.Err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Forget drops the cached value for arg.
func (m *Memo[A, V]) Forget(arg A) {
	m.store.Delete(m.keyFn(arg))
}

// SetMaxEntries caps the number of cached entries. Zero means unbounded.
func (m *Memo[A, V]) SetMaxEntries(n int) {
	m.store.SetMaxEntries(n)
}

// Len returns the number of cached entries.
func (m *Memo[A, V]) Len() int {
	return m.store.Len()
}

// SetClock replaces the time source of the underlying cache. Intended for tests.
func (m *Memo[A, V]) SetClock(now func() time.Time) {
	m.store.SetClock(now)
}
