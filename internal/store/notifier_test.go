package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalNotifier_FansOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := NewLocalNotifier()

	a, err := n.Subscribe(ctx)
	require.NoError(t, err)
	b, err := n.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, n.Notify(ctx))

	for _, ch := range []<-chan struct{}{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("notification not delivered")
		}
	}
}

func TestLocalNotifier_Coalesces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := NewLocalNotifier()
	ch, err := n.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, n.Notify(ctx))
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("expected a single merged notification")
	default:
	}
}

func TestLocalNotifier_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := NewLocalNotifier()
	ch, err := n.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.NoError(t, n.Notify(context.Background()))
}

func TestNoopNotifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := NoopNotifier{}
	ch, err := n.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, n.Notify(ctx))

	select {
	case <-ch:
		t.Fatal("noop notifier must not ring")
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestDoorbell_RingAfterClose(t *testing.T) {
	bell := newDoorbell()
	bell.ring()
	bell.close()
	bell.close()
	assert.NotPanics(t, bell.ring)
}

type failingStore struct{ *MemoryStore }

func (f *failingStore) Get(_ context.Context, key string) ([]byte, error) {
	return nil, unavailable("get", key, errors.New("boom"))
}

func TestInstrumentedStore_CountsFailuresOnly(t *testing.T) {
	ctx := context.Background()
	metrics := newCountingMetrics()

	ok := NewInstrumentedStore(NewMemoryStore(), metrics)
	_, err := ok.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.Zero(t, metrics.storeErrors["get"])

	bad := NewInstrumentedStore(&failingStore{MemoryStore: NewMemoryStore()}, metrics)
	_, err = bad.Get(ctx, "k")
	assert.Error(t, err)
	assert.Equal(t, 1, metrics.storeErrors["get"])
}
