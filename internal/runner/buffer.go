package runner

import (
	"bytes"
	"sync"
)

// tailBuffer is an io.Writer that keeps at most max bytes, discarding the
// oldest data. Write never blocks and never fails, so a chatty child can not
// stall on a full pipe.
type tailBuffer struct {
	mu      sync.Mutex
	max     int
	buf     []byte
	dropped int64
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1
	}
	return &tailBuffer{max: max}
}

// Write appends p, dropping from the front when the limit is exceeded.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.dropped += int64(over)
		b.buf = b.buf[over:]
		if cap(b.buf) > 2*b.max {
			b.buf = append(make([]byte, 0, b.max), b.buf...)
		}
	}
	return len(p), nil
}

// Bytes returns a copy of the retained data. When data was dropped the
// partial first line is removed too.
func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.buf
	if b.dropped > 0 {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
	}
	return append([]byte(nil), data...)
}

// Dropped returns the number of bytes discarded, including a partial first
// line removed by Bytes.
func (b *tailBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dropped == 0 {
		return 0
	}
	partial := bytes.IndexByte(b.buf, '\n') + 1
	return b.dropped + int64(partial)
}
