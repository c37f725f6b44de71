package media

import (
	"sync"
	"time"
)

// Buffer is a reference-counted media payload.
type Buffer struct {
	Data     []byte
	PTS      time.Duration
	DTS      time.Duration
	Duration time.Duration
	EOS      bool

	meta *Meta

	mu       sync.Mutex
	refs     int
	releases []func()
}

// NewBuffer wraps data in a Buffer holding one reference.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{Data: data, meta: NewMeta(), refs: 1}
}

// NewEOSBuffer returns an empty buffer marking end of stream.
func NewEOSBuffer() *Buffer {
	b := NewBuffer(nil)
	b.EOS = true
	return b
}

// Meta returns the buffer's attributes.
func (b *Buffer) Meta() *Meta {
	return b.meta
}

// Size returns len(Data).
func (b *Buffer) Size() int {
	return len(b.Data)
}

// AddReleaseFunc registers fn to run when the last reference drops.
func (b *Buffer) AddReleaseFunc(fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs == 0 {
		return ErrReleased
	}
	b.releases = append(b.releases, fn)
	return nil
}

// Retain adds a reference and returns b for chaining.
func (b *Buffer) Retain() *Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs > 0 {
		b.refs++
	}
	return b
}

// RefCount returns the number of live references.
func (b *Buffer) RefCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs
}

// Release drops one reference. Dropping the last one runs every release
// closure in registration order.
func (b *Buffer) Release() error {
	b.mu.Lock()
	if b.refs == 0 {
		b.mu.Unlock()
		return ErrReleased
	}
	b.refs--
	if b.refs > 0 {
		b.mu.Unlock()
		return nil
	}
	fns := b.releases
	b.releases = nil
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}
