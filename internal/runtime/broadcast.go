package runtime

import "sync"

// Broadcaster fans raw terminal data out to any number of subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*chunkQueue]struct{}
	closed bool
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*chunkQueue]struct{})}
}

// Subscribe returns a channel receiving every chunk published from now on and
// a release function. The channel is closed after release or after Close.
// Release is idempotent and must always be called.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	q := newChunkQueue()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		q.close()
		return q.out, func() { q.abandon() }
	}
	b.subs[q] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, q)
			b.mu.Unlock()
			q.abandon()
		})
	}
	return q.out, release
}

// Publish delivers data to every current subscriber.
func (b *Broadcaster) Publish(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for q := range b.subs {
		q.push(data)
	}
}

// Close ends every subscription after its backlog is delivered.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for q := range b.subs {
		q.close()
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
