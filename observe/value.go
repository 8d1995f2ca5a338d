package observe

import "sync"

// Value holds the most recent T and fans it out to subscribers.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	set     bool
	subs    map[int]chan T
	nextID  int
}

// NewValue creates a Value with an initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial, set: true, subs: make(map[int]chan T)}
}

// Set stores v and offers it to every subscriber without blocking.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = v
	o.set = true
	if o.subs == nil {
		return
	}
	for _, ch := range o.subs {
		offer(ch, v)
	}
}

// Get returns the latest value.
func (o *Value[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// Subscribe returns a channel that receives the current value immediately
// and every later one, and a cancel function that closes the channel.
func (o *Value[T]) Subscribe() (<-chan T, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]chan T)
	}
	id := o.nextID
	o.nextID++
	ch := make(chan T, 1)
	if o.set {
		ch <- o.current
	}
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (o *Value[T]) Subscribers() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

// offer replaces any unread value in ch with v.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
