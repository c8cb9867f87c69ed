// Package audiobuf holds captured PCM bytes for the lifetime of one recording.
package audiobuf

// Buffer is an append-only byte buffer that grows by doubling.
//
// A Buffer is owned by a single goroutine at a time. The capture goroutine
// appends to it, and readers only touch it after capture has been joined.
type Buffer struct {
	data     []byte
	maxCap   int
	dropped  int
	released bool
}

// New creates a buffer with the given initial capacity. maxCap bounds growth;
// zero means unbounded.
func New(initialCap, maxCap int) *Buffer {
	if initialCap <= 0 {
		initialCap = 1
	}
	if maxCap > 0 && initialCap > maxCap {
		initialCap = maxCap
	}
	return &Buffer{data: make([]byte, 0, initialCap), maxCap: maxCap}
}

// Append copies p onto the end of the buffer. Growth doubles, clamped to the
// configured maximum; a frame that does not fit under it is dropped whole
// and Append reports false.
func (b *Buffer) Append(p []byte) bool {
	if b.released {
		b.dropped += len(p)
		return false
	}
	need := len(b.data) + len(p)
	if need > cap(b.data) {
		newCap := cap(b.data)
		for newCap < need {
			newCap *= 2
		}
		if b.maxCap > 0 && newCap > b.maxCap {
			if need > b.maxCap {
				b.dropped += len(p)
				return false
			}
			// The last step lands on the cap itself.
			newCap = b.maxCap
		}
		grown := make([]byte, len(b.data), newCap)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = append(b.data, p...)
	return true
}

// Len returns the number of bytes held.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the current capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Dropped returns the number of bytes rejected by Append.
func (b *Buffer) Dropped() int { return b.dropped }

// Bytes returns the buffered data. The slice aliases the buffer and is only
// valid until the next Append or Release.
func (b *Buffer) Bytes() []byte { return b.data }

// Release drops the backing storage. It is safe to call more than once.
func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.data = nil
}
