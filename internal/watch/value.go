// Package watch provides observable values with asynchronous, conflating
// delivery to subscribers.
package watch

import (
	"sync"

	"github.com/google/uuid"
)

// Value holds the latest T and pushes every change to its subscribers.
//
// Each subscriber runs on its own goroutine and sees values in the order they
// were set. A subscriber that falls behind skips intermediate values and
// receives only the newest one.
type Value[T any] struct {
	mu     sync.Mutex
	cur    T
	subs   map[uuid.UUID]*subscriber[T]
	closed bool
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[uuid.UUID]*subscriber[T]),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set replaces the current value and notifies subscribers. It is a no-op after
// Close.
func (v *Value[T]) Set(x T) {
	v.Update(func(T) T { return x })
}

// Update applies fn to the current value atomically and publishes the result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return v.cur
	}
	v.cur = fn(v.cur)
	for _, s := range v.subs {
		s.offer(v.cur)
	}
	return v.cur
}

// Subscribe registers fn, delivers the current value to it and then every
// later value, until the returned cancel function is called or the Value is
// closed. Cancel is idempotent.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return func() {}
	}

	id := uuid.New()
	s := newSubscriber(fn)
	v.subs[id] = s
	s.offer(v.cur)
	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
			s.stop()
		})
	}
}

// Subscribers reports the number of active subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Close stops all subscribers. Values set afterwards are dropped.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for id, s := range v.subs {
		s.stop()
		delete(v.subs, id)
	}
}

type subscriber[T any] struct {
	fn      func(T)
	mu      sync.Mutex
	pending T
	has     bool
	notify  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func newSubscriber[T any](fn func(T)) *subscriber[T] {
	return &subscriber[T]{
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// offer stores x as the pending value, replacing any value not yet delivered.
func (s *subscriber[T]) offer(x T) {
	s.mu.Lock()
	s.pending = x
	s.has = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.pending, s.has
	var zero T
	s.pending, s.has = zero, false
	return x, ok
}

func (s *subscriber[T]) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}
		// stop wins over a pending delivery
		select {
		case <-s.done:
			return
		default:
		}
		if x, ok := s.take(); ok {
			s.fn(x)
		}
	}
}

func (s *subscriber[T]) stop() {
	s.stopped.Do(func() { close(s.done) })
}
