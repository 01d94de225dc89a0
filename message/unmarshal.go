package message

import (
	"fmt"

	"github.com/wireproto/pbcore"
	"github.com/wireproto/pbcore/desc"
	"github.com/wireproto/pbcore/wire"
)

// Unpack decodes data according to md into a fresh Message, the mirror
// image of Pack (spec.md §4.5 — "the hardest and largest component" of
// this engine, per its own framing). It is grounded on
// jhump/protoreflect's codec.(*Buffer).DecodeMessage / DecodeFieldValue,
// adapted to this package's tag-keyed Message rather than a generated Go
// struct written through reflection.
//
// On success the returned Message owns every string/bytes/unknown-field
// byte slice it holds, allocated through opts.Allocator (DefaultAllocator
// if opts is nil or its Allocator field is nil); ownership transfers to
// the caller, who must eventually call FreeUnpacked with the same
// Allocator if they want those bytes released deterministically rather
// than left to the garbage collector.
//
// On failure — malformed input or a refused allocation — Unpack returns a
// nil Message and a non-nil error wrapping pbcore.ErrMalformed or
// pbcore.ErrAllocFailed, having first freed every byte it allocated during
// the attempt (spec.md §7's "zero bytes outstanding on error").
func Unpack(md *desc.MessageDescriptor, data []byte, opts *pbcore.UnmarshalOptions) (*Message, error) {
	md.CheckMagic()
	resolved := opts.Resolved()
	ar := newArena(resolved.Allocator)
	m, err := unpackInto(md, data, resolved, ar, 0)
	if err != nil {
		ar.freeAll()
		return nil, err
	}
	return m, nil
}

func unpackInto(md *desc.MessageDescriptor, data []byte, opts *pbcore.UnmarshalOptions, ar *arena, depth int) (*Message, error) {
	if depth > opts.MaxDepth {
		return nil, fmt.Errorf("%w: %s nests deeper than MaxDepth=%d: %w",
			pbcore.ErrMalformed, md.Name, opts.MaxDepth, pbcore.ErrRecursionLimit)
	}
	m := New(md)
	r := wire.NewReader(data)
	for !r.EOF() {
		tag, wt, err := r.DecodeTagAndWireType()
		if err != nil {
			return nil, wrapMalformed(err)
		}
		localWT := desc.WireType(wt)
		if localWT == desc.WireEndGroup {
			return nil, fmt.Errorf("%w: unexpected end-group tag %d in %s", pbcore.ErrMalformed, tag, md.Name)
		}
		if localWT == desc.WireStartGroup {
			// Legacy groups are skipped and never preserved, per spec.md
			// §1's Non-goals: there is no representation for them here.
			if err := r.SkipValue(wt); err != nil {
				return nil, wrapMalformed(err)
			}
			continue
		}

		fd := md.FindFieldByTag(tag)
		if fd == nil || !fd.AcceptsWireType(localWT) {
			if err := captureUnknown(r, m, tag, wt, ar); err != nil {
				return nil, err
			}
			continue
		}
		if err := decodeKnownField(r, m, fd, wt, opts, ar, depth); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// wrapMalformed normalizes a wire-package decode error to wrap
// pbcore.ErrMalformed, so that every failure out of Unpack can be tested
// uniformly with errors.Is(err, pbcore.ErrMalformed) (spec.md §7).
func wrapMalformed(err error) error {
	return fmt.Errorf("%w: %v", pbcore.ErrMalformed, err)
}

// captureUnknown records a field the descriptor didn't recognize (absent
// tag, or an incompatible wire type for a known tag) by copying its exact
// on-wire value bytes into an arena-owned buffer, so that re-packing
// reproduces the original encoding byte-for-byte even for non-canonical
// input such as an overlong varint (spec.md §4.5, §8 scenario 4).
func captureUnknown(r *wire.Reader, m *Message, tag uint32, wt wire.WireType, ar *arena) error {
	start := r.Pos()
	var end int
	switch wt {
	case wire.Varint:
		if _, err := r.DecodeVarint(); err != nil {
			return wrapMalformed(err)
		}
		end = r.Pos()
	case wire.Fixed32:
		if _, err := r.DecodeFixed32(); err != nil {
			return wrapMalformed(err)
		}
		end = r.Pos()
	case wire.Fixed64:
		if _, err := r.DecodeFixed64(); err != nil {
			return wrapMalformed(err)
		}
		end = r.Pos()
	case wire.LengthPrefixed:
		// Only the content bytes are retained; the length prefix is
		// re-derived from len(Data) at repack time, which is always
		// correct since content never changes size between decode and
		// re-encode (see UnknownField.Data's doc comment).
		content, err := r.DecodeRawBytes(false)
		if err != nil {
			return wrapMalformed(err)
		}
		buf, err := ar.alloc(len(content))
		if err != nil {
			return err
		}
		copy(buf, content)
		m.AddUnknownField(UnknownField{Tag: tag, WireType: wt, Data: buf})
		return nil
	default:
		return wrapMalformed(wire.ErrBadWireType)
	}
	raw := r.Span(start, end)
	buf, err := ar.alloc(len(raw))
	if err != nil {
		return err
	}
	copy(buf, raw)
	m.AddUnknownField(UnknownField{Tag: tag, WireType: wt, Data: buf})
	return nil
}

func decodeKnownField(r *wire.Reader, m *Message, fd *desc.FieldDescriptor, wt wire.WireType, opts *pbcore.UnmarshalOptions, ar *arena, depth int) error {
	if fd.Label != desc.Repeated {
		val, err := decodeSingleValue(r, fd, wt, opts, ar, depth)
		if err != nil {
			return err
		}
		mergeSingleField(m, fd, val)
		return nil
	}

	if wt == wire.LengthPrefixed && fd.Type.IsScalar() {
		// Packed form: a length-prefixed blob of back-to-back elements.
		// Accepted for any repeated scalar field regardless of whether it
		// declares FlagPacked, for backward compatibility with encoders
		// written before packed encoding existed (spec.md §4.4's note on
		// accepting either wire form on decode).
		content, err := r.DecodeRawBytes(false)
		if err != nil {
			return wrapMalformed(err)
		}
		sub := wire.NewReader(content)
		elemWT := wireTypeOf(fd)
		for !sub.EOF() {
			val, err := decodeSingleValue(sub, fd, elemWT, opts, ar, depth)
			if err != nil {
				return err
			}
			m.AppendRepeated(fd, val)
		}
		return nil
	}

	val, err := decodeSingleValue(r, fd, wt, opts, ar, depth)
	if err != nil {
		return err
	}
	m.AppendRepeated(fd, val)
	return nil
}

// mergeSingleField installs val as fd's value on m: last-wins for
// scalar/enum/string/bytes fields, recursive Merge for a MESSAGE field
// that already has a value from an earlier occurrence in this same input
// (spec.md §9's resolved Open Question).
func mergeSingleField(m *Message, fd *desc.FieldDescriptor, val interface{}) {
	if fd.Type != desc.Message {
		m.Set(fd, val)
		return
	}
	newChild := val.(*Message)
	if existing, ok := m.values[fd.Tag].(*Message); ok && m.presence[fd.Tag] && existing != nil {
		Merge(existing, newChild)
		return
	}
	m.Set(fd, newChild)
}

// decodeSingleValue decodes one element of fd's declared type, reading
// exactly one value from r starting at its already-consumed key. wt is
// the actual wire type this element was encountered with (the field's own
// key for an unpacked occurrence, or the field's declared elemental wire
// type for an element inside a packed blob).
func decodeSingleValue(r *wire.Reader, fd *desc.FieldDescriptor, wt wire.WireType, opts *pbcore.UnmarshalOptions, ar *arena, depth int) (interface{}, error) {
	switch fd.Type {
	case desc.Message:
		content, err := r.DecodeRawBytes(false)
		if err != nil {
			return nil, wrapMalformed(err)
		}
		child, err := unpackInto(fd.MessageType, content, opts, ar, depth+1)
		if err != nil {
			return nil, err
		}
		return child, nil
	case desc.String:
		raw, err := r.DecodeRawBytes(false)
		if err != nil {
			return nil, wrapMalformed(err)
		}
		if len(raw) == 0 {
			// An empty string has no backing array for FreeUnpacked to
			// hand back, so nothing is allocated for it.
			return "", nil
		}
		buf, err := ar.alloc(len(raw))
		if err != nil {
			return nil, err
		}
		copy(buf, raw)
		return bytesToStringNoCopy(buf), nil
	case desc.Bytes:
		raw, err := r.DecodeRawBytes(false)
		if err != nil {
			return nil, wrapMalformed(err)
		}
		buf, err := ar.alloc(len(raw))
		if err != nil {
			return nil, err
		}
		copy(buf, raw)
		return buf, nil
	default:
		switch wt {
		case wire.Varint:
			v, err := r.DecodeVarint()
			if err != nil {
				return nil, wrapMalformed(err)
			}
			val, err := decodeVarintValue(fd, v)
			if err != nil {
				return nil, err
			}
			if fd.Type == desc.Enum && opts.StrictEnum && fd.EnumType != nil {
				if fd.EnumType.FindValueByNumber(val.(int32)) == nil {
					return nil, fmt.Errorf("%w: value %d not declared for enum %s", pbcore.ErrMalformed, val.(int32), fd.EnumType.Name)
				}
			}
			return val, nil
		case wire.Fixed32:
			v, err := r.DecodeFixed32()
			if err != nil {
				return nil, wrapMalformed(err)
			}
			return decodeFixed32Value(fd, v)
		case wire.Fixed64:
			v, err := r.DecodeFixed64()
			if err != nil {
				return nil, wrapMalformed(err)
			}
			return decodeFixed64Value(fd, v)
		default:
			return nil, wrapMalformed(wire.ErrBadWireType)
		}
	}
}
