package runtime

import "sync"

// RingBuffer keeps the most recent bytes written to it.
type RingBuffer struct {
	mu    sync.RWMutex
	data  []byte
	size  int
	start int
	n     int
}

// NewRingBuffer creates a new ring buffer with the given capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p, overwriting the oldest bytes when full.
func (r *RingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	if n >= r.size {
		copy(r.data, p[n-r.size:])
		r.start = 0
		r.n = r.size
		return n, nil
	}

	end := (r.start + r.n) % r.size
	first := copy(r.data[end:], p)
	copy(r.data, p[first:])

	r.n += n
	if r.n > r.size {
		r.start = (r.start + r.n - r.size) % r.size
		r.n = r.size
	}
	return n, nil
}

// Bytes returns the buffered data, oldest first.
func (r *RingBuffer) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tail(r.n)
}

// Tail returns up to the last n bytes.
func (r *RingBuffer) Tail(n int) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > r.n {
		n = r.n
	}
	return r.tail(n)
}

func (r *RingBuffer) tail(n int) []byte {
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	from := (r.start + r.n - n) % r.size
	first := copy(out, r.data[from:min(from+n, r.size)])
	copy(out[first:], r.data[:n-first])
	return out
}

// Len returns the current number of bytes in the buffer.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

// Reset clears the buffer.
func (r *RingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.n = 0
}
