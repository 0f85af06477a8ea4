package packet

import "fmt"

// A Buffer is a mutable byte range within a (possibly larger) backing array.
// The logical content is data[offset : offset+length]; the bytes outside that
// window belong to nobody and must not be read. Transforms edit the content in
// place, and Grow/Shrink move the front boundary of the window so that bytes
// trailing the content (e.g. an authentication tag written by a later stage)
// stay where they are.
//
// Grow and Shrink relocate the content within the backing array. Any raw index
// into the backing array computed before such a call is stale afterwards and
// must be re-derived from the new Offset(). The usual correction, for an index
// i taken when Offset() was oldOff, is i - oldOff + Offset() (plus the grow
// amount, when the front was extended).
type Buffer struct {
	data   []byte
	offset int
	length int
}

// NewBuffer wraps data as a Buffer whose content is the entire slice.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data, length: len(data)}
}

// NewBufferSize returns a Buffer with n zero bytes of content.
func NewBufferSize(n int) *Buffer {
	return NewBuffer(make([]byte, n))
}

// Bytes returns the current content window. The slice aliases the backing
// array and is invalidated by Grow and Shrink.
func (b *Buffer) Bytes() []byte {
	return b.data[b.offset : b.offset+b.length]
}

// Storage returns the whole backing array, for callers that work with
// absolute offsets. Invalidated by Grow (which may reallocate).
func (b *Buffer) Storage() []byte {
	return b.data
}

// Offset returns the index of the first content byte within the backing array.
func (b *Buffer) Offset() int {
	return b.offset
}

// Length returns the number of content bytes.
func (b *Buffer) Length() int {
	return b.length
}

// SetLength changes the content length without moving the front boundary.
// Extending past the backing array is a programming error.
func (b *Buffer) SetLength(n int) {
	if n < 0 || b.offset+n > len(b.data) {
		panic(fmt.Sprintf("packet: SetLength(%d) outside storage [offset %d, storage %d]",
			n, b.offset, len(b.data)))
	}
	b.length = n
}

// Grow extends the content at the front by n bytes, so that the previous
// first content byte is preceded by exactly n addressable bytes. The new
// bytes are unspecified; callers must write them before reading. When the
// backing array has insufficient headroom the content is shifted (or the
// array reallocated), so callers must re-derive any cached raw index from
// the new Offset().
func (b *Buffer) Grow(n int) {
	if n < 0 {
		panic(fmt.Sprintf("packet: Grow(%d) with negative count", n))
	}
	if n == 0 {
		return
	}
	if b.offset >= n {
		b.offset -= n
		b.length += n
		return
	}
	need := b.length + n
	if need > len(b.data) {
		data := make([]byte, need)
		copy(data[n:], b.Bytes())
		b.data = data
	} else {
		// copy is memmove, overlap is fine.
		copy(b.data[n:n+b.length], b.Bytes())
	}
	b.offset = 0
	b.length = need
}

// Shrink permanently removes the first n content bytes by advancing the front
// boundary. Shrinking by more than Length() is a programming error, not a
// malformed-input condition, and panics.
func (b *Buffer) Shrink(n int) {
	if n < 0 || n > b.length {
		panic(fmt.Sprintf("packet: Shrink(%d) exceeds content length %d", n, b.length))
	}
	b.offset += n
	b.length -= n
}
