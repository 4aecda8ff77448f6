package runtime

import "sync"

// chunkQueue is an unbounded FIFO of byte chunks delivered on a channel. The
// producer never blocks on a slow consumer; the consumer sees every chunk in
// order until the queue is closed or abandoned.
type chunkQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pending   [][]byte
	closed    bool
	out       chan []byte
	stop      chan struct{}
	abandoned sync.Once
}

func newChunkQueue() *chunkQueue {
	q := &chunkQueue{
		out:  make(chan []byte),
		stop: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.pump()
	return q
}

// push enqueues a copy of p. It reports false once the queue is closed.
func (q *chunkQueue) push(p []byte) bool {
	if len(p) == 0 {
		return true
	}
	data := make([]byte, len(p))
	copy(data, p)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.pending = append(q.pending, data)
	q.cond.Signal()
	return true
}

// close stops accepting chunks; out is closed after the backlog is delivered.
func (q *chunkQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
}

// abandon drops the backlog and closes out as soon as possible.
func (q *chunkQueue) abandon() {
	q.abandoned.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.pending = nil
		q.cond.Signal()
		q.mu.Unlock()
		close(q.stop)
	})
}

func (q *chunkQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		chunk := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		select {
		case q.out <- chunk:
		case <-q.stop:
			return
		}
	}
}
