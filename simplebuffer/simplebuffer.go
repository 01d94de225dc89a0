// Package simplebuffer implements a trivial growable append-only byte
// sink, the Go counterpart of protobuf-c's ProtobufCBufferSimple (header
// section "extra (superfluous) api: trivial buffer"). It exists purely so
// callers of message.PackToSink have a batteries-included destination
// without writing their own Append method over a bytes.Buffer.
package simplebuffer

// Buffer accumulates appended byte slices into one contiguous backing
// array, growing geometrically like the C implementation's doubling
// realloc. The zero value is ready to use.
type Buffer struct {
	data []byte
}

// New returns a Buffer pre-sized to hint bytes of capacity, to avoid
// repeated reallocation when the caller already knows roughly how much
// output to expect (e.g. from a prior GetPackedSize call).
func New(hint int) *Buffer {
	if hint < 0 {
		hint = 0
	}
	return &Buffer{data: make([]byte, 0, hint)}
}

// Append implements message.Sink: it copies data onto the end of the
// buffer's backing array, growing it as needed.
func (b *Buffer) Append(data []byte) {
	b.data = append(b.data, data...)
}

// Bytes returns the accumulated contents. The returned slice aliases the
// Buffer's internal array and is invalidated by the next Append.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes accumulated so far.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Reset empties the buffer, retaining its backing array's capacity for
// reuse — the same "clear, not free" semantics as
// protobuf_c_buffer_simple_clear.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
