// Package eventbus delivers pipeline events to presentation subscribers.
package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Bus publishes Events synchronously, in publish order, to every subscriber.
type Bus struct {
	bus evbus.Bus

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
	order  []int
}

func New() *Bus {
	b := &Bus{
		bus:  evbus.New(),
		subs: make(map[int]func(Event)),
	}
	// one dispatcher on the topic; EventBus cannot tell closures apart on
	// unsubscribe
	_ = b.bus.Subscribe(TopicScan, b.dispatch)
	return b
}

// Publish returns after every subscriber handled e.
func (b *Bus) Publish(e Event) {
	b.bus.Publish(TopicScan, e)
}

// Subscribe registers fn and returns its unsubscribe func.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// HasSubscribers reports whether anyone listens.
func (b *Bus) HasSubscribers() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) > 0
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
