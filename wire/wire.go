// Package wire implements the low-level protobuf binary wire format: varint
// and fixed-width encode/decode, ZigZag transforms, and the tag/wire-type
// framing every field on the wire begins with.
//
// This is a fork-in-spirit of jhump/protoreflect's codec.Buffer, trimmed to
// the primitives an offset-free, descriptor-driven engine needs and with no
// dependency on any particular message representation.
package wire

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// WireType is the 3-bit suffix of a field key that selects the on-wire
// encoding family.
type WireType int8

const (
	Varint WireType = iota
	Fixed64
	LengthPrefixed
	StartGroup // legacy, recognized only to be skipped
	EndGroup   // legacy, recognized only to be skipped
	Fixed32
)

func (wt WireType) String() string {
	switch wt {
	case Varint:
		return "varint"
	case Fixed64:
		return "64-bit"
	case LengthPrefixed:
		return "length-prefixed"
	case StartGroup:
		return "start-group"
	case EndGroup:
		return "end-group"
	case Fixed32:
		return "32-bit"
	default:
		return fmt.Sprintf("wire-type(%d)", int8(wt))
	}
}

// ErrOverflow is returned when a varint is too large to fit in 64 bits, or
// more generally when an encoded length exceeds what it is allowed to.
var ErrOverflow = errors.New("wire: integer overflow")

// ErrTruncated is returned when the input ends before a value can be fully
// decoded.
var ErrTruncated = io.ErrUnexpectedEOF

// ErrBadWireType is returned for wire-type values the format does not
// define (6, 7) or that are unsupported outside unknown-field passthrough.
var ErrBadWireType = errors.New("wire: bad wire type")

// maxVarintBytes is the most bytes a conforming varint may occupy; decoding
// more continuation bytes than this is malformed input by definition (see
// spec.md §4.1).
const maxVarintBytes = 10

// Reader decodes values from a byte slice, tracking a read cursor. It does
// not copy the input; callers that need to retain bytes past the Reader's
// lifetime must copy them explicitly (see Bytes/DecodeRawBytes).
type Reader struct {
	buf   []byte
	index int
}

// NewReader creates a Reader over buf. The Reader does not take ownership
// of buf and never mutates it.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// EOF reports whether there are no more bytes to read.
func (r *Reader) EOF() bool {
	return r.index >= len(r.buf)
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int {
	return len(r.buf) - r.index
}

// Pos returns the current read offset, for callers that need to slice raw
// spans (e.g. unknown-field passthrough, group skipping).
func (r *Reader) Pos() int {
	return r.index
}

// Bytes returns the unread suffix of the underlying buffer. The returned
// slice aliases the Reader's backing array.
func (r *Reader) Bytes() []byte {
	return r.buf[r.index:]
}

// Span returns buf[start:end], aliasing the Reader's backing array. Used
// to capture the exact original bytes of a value (e.g. for unknown-field
// passthrough) rather than re-deriving an encoding from a decoded value.
func (r *Reader) Span(start, end int) []byte {
	return r.buf[start:end]
}

// Skip advances the cursor by n bytes, failing if that would run past the
// end of the input.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return fmt.Errorf("wire: bad skip length %d", n)
	}
	next := r.index + n
	if next < r.index || next > len(r.buf) {
		return ErrTruncated
	}
	r.index = next
	return nil
}

// DecodeVarint reads a base-128 little-endian varint.
func (r *Reader) DecodeVarint() (uint64, error) {
	var x uint64
	i := r.index
	buf := r.buf
	for shift := uint(0); shift < 64; shift += 7 {
		if i >= len(buf) {
			return 0, ErrTruncated
		}
		b := buf[i]
		i++
		if shift == 63 && b > 1 {
			// The 10th byte may only carry the 64th bit.
			return 0, ErrOverflow
		}
		x |= (uint64(b) & 0x7f) << shift
		if b < 0x80 {
			r.index = i
			return x, nil
		}
	}
	// 10 bytes read (70 bits of shift) and still continuing: either an
	// overlong encoding or a value that does not fit in 64 bits.
	if i < len(buf) && i-r.index < maxVarintBytes {
		// shift loop above only covers shift<64 i.e. up to 10 iterations;
		// nothing further to read here, fall through to overflow.
	}
	return 0, ErrOverflow
}

// DecodeTagAndWireType reads a field key and splits it into tag and wire
// type: tag = key>>3, wire_type = key&7.
func (r *Reader) DecodeTagAndWireType() (tag uint32, wt WireType, err error) {
	v, err := r.DecodeVarint()
	if err != nil {
		return 0, 0, err
	}
	wt = WireType(v & 7)
	tagVal := v >> 3
	if tagVal == 0 || tagVal > 0x1fffffff {
		return 0, 0, fmt.Errorf("wire: tag %d out of range", tagVal)
	}
	return uint32(tagVal), wt, nil
}

// DecodeFixed32 reads 4 little-endian bytes.
func (r *Reader) DecodeFixed32() (uint32, error) {
	if err := r.requireAtLeast(4); err != nil {
		return 0, err
	}
	b := r.buf[r.index : r.index+4]
	r.index += 4
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// DecodeFixed64 reads 8 little-endian bytes.
func (r *Reader) DecodeFixed64() (uint64, error) {
	if err := r.requireAtLeast(8); err != nil {
		return 0, err
	}
	b := r.buf[r.index : r.index+8]
	r.index += 8
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56, nil
}

func (r *Reader) requireAtLeast(n int) error {
	if r.Len() < n {
		return ErrTruncated
	}
	return nil
}

// DecodeRawBytes reads a varint length prefix followed by that many raw
// bytes. If alloc is false the returned slice aliases the Reader's backing
// array (fast path for scan-only passes); if true, a fresh copy is made.
func (r *Reader) DecodeRawBytes(alloc bool) ([]byte, error) {
	n, err := r.DecodeVarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, ErrTruncated
	}
	nb := int(n)
	end := r.index + nb
	if !alloc {
		b := r.buf[r.index:end]
		r.index = end
		return b, nil
	}
	b := make([]byte, nb)
	copy(b, r.buf[r.index:end])
	r.index = end
	return b, nil
}

// SkipValue skips the value for the given wire type, as encountered during
// unknown-field passthrough or sizing scans that don't need the payload.
// Groups are skipped by finding their balanced-nesting END_GROUP, per
// spec.md §4.2.
func (r *Reader) SkipValue(wt WireType) error {
	switch wt {
	case Varint:
		_, err := r.DecodeVarint()
		return err
	case Fixed32:
		return r.Skip(4)
	case Fixed64:
		return r.Skip(8)
	case LengthPrefixed:
		_, err := r.DecodeRawBytes(false)
		return err
	case StartGroup:
		return r.skipGroup()
	default:
		return ErrBadWireType
	}
}

// skipGroup consumes a legacy group body by tracking nested start/end tags
// until the balancing END_GROUP is found.
func (r *Reader) skipGroup() error {
	depth := 1
	for depth > 0 {
		_, wt, err := r.DecodeTagAndWireType()
		if err != nil {
			return err
		}
		switch wt {
		case StartGroup:
			depth++
		case EndGroup:
			depth--
		default:
			if err := r.SkipValue(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeZigZag32 undoes the 32-bit ZigZag transform.
func DecodeZigZag32(v uint64) int32 {
	return int32(uint32(v>>1) ^ -uint32(v&1))
}

// DecodeZigZag64 undoes the 64-bit ZigZag transform.
func DecodeZigZag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// EncodeZigZag32 maps a signed 32-bit value to an unsigned one such that
// small magnitude values (positive or negative) encode as short varints.
func EncodeZigZag32(v int32) uint64 {
	return uint64(uint32(v<<1) ^ uint32(v>>31))
}

// EncodeZigZag64 is the 64-bit counterpart of EncodeZigZag32.
func EncodeZigZag64(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// Writer appends encoded values to a growable byte slice.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the bytes written so far. The slice aliases the Writer's
// internal buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reset clears the writer back to empty, discarding its backing array.
func (w *Writer) Reset() {
	w.buf = nil
}

// EncodeVarint appends x in base-128 little-endian form.
func (w *Writer) EncodeVarint(x uint64) {
	for x >= 0x80 {
		w.buf = append(w.buf, byte(x)|0x80)
		x >>= 7
	}
	w.buf = append(w.buf, byte(x))
}

// EncodeTagAndWireType appends the field key for (tag, wt).
func (w *Writer) EncodeTagAndWireType(tag uint32, wt WireType) {
	w.EncodeVarint((uint64(tag) << 3) | uint64(wt))
}

// EncodeFixed32 appends x as 4 little-endian bytes.
func (w *Writer) EncodeFixed32(x uint32) {
	w.buf = append(w.buf, byte(x), byte(x>>8), byte(x>>16), byte(x>>24))
}

// EncodeFixed64 appends x as 8 little-endian bytes.
func (w *Writer) EncodeFixed64(x uint64) {
	w.buf = append(w.buf,
		byte(x), byte(x>>8), byte(x>>16), byte(x>>24),
		byte(x>>32), byte(x>>40), byte(x>>48), byte(x>>56))
}

// EncodeRawBytes appends a varint length prefix followed by b.
func (w *Writer) EncodeRawBytes(b []byte) {
	w.EncodeVarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// AppendRaw appends b verbatim, with no length prefix. Used to blit back
// unknown-field value bytes exactly as they were captured, rather than
// re-deriving an encoding that might differ byte-for-byte from a
// non-canonical (but still valid) original, such as an overlong varint.
func (w *Writer) AppendRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// SizeVarint returns the number of bytes EncodeVarint(x) would write,
// without writing them. Used throughout the sizing engine (spec.md §4.3).
func SizeVarint(x uint64) int {
	n := 1
	for x >= 0x80 {
		n++
		x >>= 7
	}
	return n
}

// SizeTag returns the number of bytes a (tag, wireType) key occupies.
func SizeTag(tag uint32) int {
	return SizeVarint(uint64(tag) << 3)
}

// Float32bits and Float64bits reinterpret floating point values as their
// raw bit patterns for fixed-width encoding, never host-endian. These
// forward to math.Float32bits/Float64bits; kept here so callers of this
// package need not also import math for this one concern.
func Float32bits(f float32) uint32 { return math.Float32bits(f) }
func Float64bits(f float64) uint64 { return math.Float64bits(f) }
func Float32frombits(b uint32) float32 { return math.Float32frombits(b) }
func Float64frombits(b uint64) float64 { return math.Float64frombits(b) }
