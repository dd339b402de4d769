package store

import (
	"context"
	"sync"
)

// Notifier is the low-latency doorbell between processes. A notification
// carries no payload; receivers re-read the store. Notifications raised
// while one is already pending are merged, so receivers must drain
// everything available on each wakeup.
type Notifier interface {
	Notify(ctx context.Context) error
	Subscribe(ctx context.Context) (<-chan struct{}, error)
	Close() error
}

// signal performs a non-blocking send on a channel with capacity one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// doorbell is a capacity-one channel that may be rung from callbacks
// running on foreign goroutines after it was closed.
type doorbell struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

func newDoorbell() *doorbell {
	return &doorbell{ch: make(chan struct{}, 1)}
}

func (d *doorbell) ring() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		signal(d.ch)
	}
}

func (d *doorbell) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
}

// NoopNotifier never rings. Receivers then rely on the periodic refresh.
type NoopNotifier struct{}

func (NoopNotifier) Notify(_ context.Context) error { return nil }

func (NoopNotifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (NoopNotifier) Close() error { return nil }

// LocalNotifier fans out within one process.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan struct{}]struct{})}
}

func (l *LocalNotifier) Notify(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		signal(ch)
	}
	return nil
}

func (l *LocalNotifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (l *LocalNotifier) Close() error { return nil }
