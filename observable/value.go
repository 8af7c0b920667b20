// Package observable provides a value holder that its owner writes and any
// number of subscribers read and watch.
package observable

import (
	"context"
	"sync"
)

// Value holds the latest published T. Subscribers get *Value and can only
// read it; the setter returned by New stays with the owner.
type Value[T any] struct {
	mu       sync.RWMutex
	current  T
	version  uint64
	nextID   uint64
	handlers map[uint64]func(T)
	order    []uint64
	clone    func(T) T

	// publishMu keeps handlers seeing publishes in order.
	publishMu sync.Mutex
}

// New returns a holder starting at initial and the function that publishes
// a new value into it.
func New[T any](initial T) (*Value[T], func(T)) {
	return NewWithCopy(initial, func(value T) T { return value })
}

// NewWithCopy is New for values that share memory, such as slices. copyFn
// runs on publish and on every hand-out, so readers can never change what
// the holder or other readers see.
func NewWithCopy[T any](initial T, copyFn func(T) T) (*Value[T], func(T)) {
	v := &Value[T]{
		current:  copyFn(initial),
		handlers: make(map[uint64]func(T)),
		clone:    copyFn,
	}
	return v, v.set
}

// Get returns the latest published value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.clone(v.current)
}

// Version returns how many times a value has been published.
func (v *Value[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Subscribe registers fn to be called synchronously, in registration order,
// after every later publish. It is not called with the current value and
// must not publish to the same Value. The returned function removes the
// subscription.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.handlers[id] = fn
	v.order = append(v.order, id)
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.handlers, id)
			for i, other := range v.order {
				if other == id {
					v.order = append(v.order[:i:i], v.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Watch returns a channel that first yields the current value and then every
// later one. Slow readers only ever see the latest value: stale ones are
// dropped. The channel is closed when ctx is done.
func (v *Value[T]) Watch(ctx context.Context) <-chan T {
	out := make(chan T, 1)
	notify := make(chan struct{}, 1)

	cancel := v.Subscribe(func(T) {
		select {
		case notify <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(out)
		defer cancel()

		var seen uint64
		first := true
		for {
			v.mu.RLock()
			current, version := v.current, v.version
			v.mu.RUnlock()

			if first || version != seen {
				first = false
				seen = version
				// Replace an undelivered stale value; only this goroutine sends.
				select {
				case <-out:
				default:
				}
				out <- v.clone(current)
			}

			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (v *Value[T]) set(value T) {
	v.publishMu.Lock()
	defer v.publishMu.Unlock()

	value = v.clone(value)

	v.mu.Lock()
	v.current = value
	v.version++
	handlers := make([]func(T), 0, len(v.order))
	for _, id := range v.order {
		handlers = append(handlers, v.handlers[id])
	}
	v.mu.Unlock()

	// Each handler gets its own copy.
	for _, fn := range handlers {
		fn(v.clone(value))
	}
}
