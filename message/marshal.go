package message

import (
	"fmt"

	"github.com/wireproto/pbcore/desc"
	"github.com/wireproto/pbcore/wire"
)

// Sink is an append-only byte sink, the Go shape of protobuf-c's
// ProtobufCBuffer: a single append(data) operation. simplebuffer.Buffer
// implements it, and so does any type with an Append([]byte) method, such
// as a thin wrapper over bytes.Buffer.
type Sink interface {
	Append(data []byte)
}

// Pack serializes m into a freshly allocated byte slice of exactly
// GetPackedSize(m) bytes. Fields are written in ascending tag order, a
// deliberate canonicalization spec.md §4.4 calls out so that golden-file
// tests and interop debugging both have a single well-defined byte
// sequence to compare against; unknown fields are appended last in their
// original arrival order.
//
// Pack has no recoverable errors: m is caller-owned and assumed to be a
// valid instance of its own descriptor (spec.md §7) — a violation (e.g. a
// MESSAGE-typed field holding a non-*Message value) is a programmer error
// and panics, same as a bad descriptor magic.
func Pack(m *Message) []byte {
	size := GetPackedSize(m)
	w := wire.NewWriter()
	marshalInto(w, m)
	out := w.Bytes()
	if len(out) != size {
		panic(fmt.Sprintf("pbcore: internal inconsistency: GetPackedSize=%d but Pack wrote %d bytes", size, len(out)))
	}
	return out
}

// PackTo serializes m into buf, which must be exactly GetPackedSize(m)
// bytes (the caller-supplied-buffer form named in spec.md §6). It panics
// if buf is the wrong size, mirroring protobuf-c's documented precondition
// ("buffer is exactly size bytes").
func PackTo(m *Message, buf []byte) int {
	size := GetPackedSize(m)
	if len(buf) != size {
		panic(fmt.Sprintf("pbcore: PackTo: buffer is %d bytes, need exactly %d", len(buf), size))
	}
	w := wire.NewWriter()
	marshalInto(w, m)
	n := copy(buf, w.Bytes())
	return n
}

// PackToSink serializes m and hands the bytes to sink via Append. It
// produces output byte-identical to Pack (spec.md §4.4, §8 property 3).
func PackToSink(m *Message, sink Sink) int {
	w := wire.NewWriter()
	marshalInto(w, m)
	b := w.Bytes()
	sink.Append(b)
	return len(b)
}

func marshalInto(w *wire.Writer, m *Message) {
	for _, fd := range m.md.Fields {
		marshalField(w, m, fd)
	}
	for _, uf := range m.unknown {
		marshalUnknownField(w, uf)
	}
}

func marshalField(w *wire.Writer, m *Message, fd *desc.FieldDescriptor) {
	if fd.Label == desc.Repeated {
		marshalRepeatedField(w, m, fd)
		return
	}
	val, present := m.Get(fd)
	if !present {
		return // OPTIONAL absent, or REQUIRED absent (Check() surfaces that)
	}
	marshalSingleValue(w, fd, val)
}

func marshalSingleValue(w *wire.Writer, fd *desc.FieldDescriptor, val interface{}) {
	if fd.Type == desc.Message {
		child := val.(*Message)
		if child == nil {
			return
		}
		w.EncodeTagAndWireType(fd.Tag, wire.LengthPrefixed)
		body := Pack(child)
		w.EncodeRawBytes(body)
		return
	}
	w.EncodeTagAndWireType(fd.Tag, wireTypeOf(fd))
	encodeScalarValue(w, fd, val)
}

func marshalRepeatedField(w *wire.Writer, m *Message, fd *desc.FieldDescriptor) {
	vals, _ := m.values[fd.Tag].([]interface{})
	if len(vals) == 0 {
		return
	}
	if fd.Packed() {
		body := wire.NewWriter()
		for _, v := range vals {
			encodeScalarValue(body, fd, v)
		}
		w.EncodeTagAndWireType(fd.Tag, wire.LengthPrefixed)
		w.EncodeRawBytes(body.Bytes())
		return
	}
	for _, v := range vals {
		marshalSingleValue(w, fd, v)
	}
}

func marshalUnknownField(w *wire.Writer, uf UnknownField) {
	w.EncodeTagAndWireType(uf.Tag, uf.WireType)
	switch uf.WireType {
	case wire.LengthPrefixed:
		w.EncodeRawBytes(uf.Data)
	default:
		// Varint/Fixed32/Fixed64 unknown values were captured as their
		// exact original bytes (see unmarshal.go); blit them back
		// unchanged rather than re-deriving them, so an overlong (but
		// still valid) varint round-trips byte-for-byte.
		w.AppendRaw(uf.Data)
	}
}

// wireTypeOf translates a FieldDescriptor's declared desc.WireType into
// the wire package's equivalent — the one place the two small parallel
// enumerations (desc deliberately avoids importing wire; see
// desc/descriptor.go) need reconciling. Their numeric values are defined
// in lockstep, so this is a plain conversion, not a lookup table.
func wireTypeOf(fd *desc.FieldDescriptor) wire.WireType {
	return wire.WireType(fd.WireType())
}
