package kmp

// Ring keeps the most recent bytes written to it, wrapping at its capacity.
type Ring struct {
	buf   []byte
	pos   int
	total int
}

// NewRing allocates a ring of the given capacity. A capacity below one is
// raised to one.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]byte, capacity)}
}

// WriteByte stores b, overwriting the oldest byte once the ring is full.
func (r *Ring) WriteByte(b byte) error {
	r.buf[r.pos] = b
	r.pos = (r.pos + 1) % len(r.buf)
	r.total++
	return nil
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of bytes currently retained.
func (r *Ring) Len() int {
	if r.total < len(r.buf) {
		return r.total
	}
	return len(r.buf)
}

// Total returns the number of bytes ever written.
func (r *Ring) Total() int {
	return r.total
}

// Bytes returns the retained bytes oldest first.
func (r *Ring) Bytes() []byte {
	n := r.Len()
	out := make([]byte, n)
	if r.total <= len(r.buf) {
		copy(out, r.buf[:n])
		return out
	}
	k := copy(out, r.buf[r.pos:])
	copy(out[k:], r.buf[:r.pos])
	return out
}

// Reset empties the ring without releasing its storage.
func (r *Ring) Reset() {
	r.pos = 0
	r.total = 0
}
