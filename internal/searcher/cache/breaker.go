package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/resilience"
)

// breakerStore stops calling a failing Redis until the breaker lets a probe
// through, so searches do not wait on a dead cache. A missing key counts as
// success.
type breakerStore struct {
	store   Store
	breaker *resilience.CircuitBreaker
}

func WithBreaker(store Store, breaker *resilience.CircuitBreaker) Store {
	return &breakerStore{store: store, breaker: breaker}
}

func (b *breakerStore) Get(ctx context.Context, key string) (string, error) {
	var (
		value  string
		getErr error
	)
	err := b.breaker.Execute(func() error {
		value, getErr = b.store.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			return nil
		}
		return getErr
	})
	if err != nil {
		return "", err
	}
	return value, getErr
}

func (b *breakerStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return b.breaker.Execute(func() error {
		return b.store.Set(ctx, key, value, ttl)
	})
}

func (b *breakerStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	err := b.breaker.Execute(func() error {
		var err error
		deleted, err = b.store.FlushByPattern(ctx, pattern)
		return err
	})
	return deleted, err
}
