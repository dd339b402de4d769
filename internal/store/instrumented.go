package store

import (
	"context"
	"strd/internal/providers"
)

// InstrumentedStore counts backend failures. A missing key is not a failure.
type InstrumentedStore struct {
	inner   SharedStore
	metrics providers.MetricsProviderInterface
}

func NewInstrumentedStore(inner SharedStore, metrics providers.MetricsProviderInterface) SharedStore {
	return &InstrumentedStore{inner: inner, metrics: metrics}
}

func (s *InstrumentedStore) observe(op string, err error) {
	if err != nil && !IsNotFound(err) {
		s.metrics.IncStoreErrors(op)
	}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.inner.Get(ctx, key)
	s.observe("get", err)
	return val, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	err := s.inner.Set(ctx, key, value)
	s.observe("set", err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) (bool, error) {
	ok, err := s.inner.Delete(ctx, key)
	s.observe("delete", err)
	return ok, err
}

func (s *InstrumentedStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.List(ctx, prefix)
	s.observe("list", err)
	return keys, err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
