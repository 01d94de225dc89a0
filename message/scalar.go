package message

import (
	"fmt"

	"github.com/wireproto/pbcore/desc"
	"github.com/wireproto/pbcore/wire"
)

// This file holds the per-scalar-type encode/decode/size logic shared by
// size.go, marshal.go, and unmarshal.go — the table-driven dispatch at the
// center of spec.md §4, grounded on jhump/protoreflect's
// codec.(*Buffer).encodeFieldValue / DecodeSimpleField.

// scalarSize returns the wire size, in bytes, of a single element's
// *value* (not counting its key) for scalar/string/bytes types. MESSAGE is
// handled by the caller, since it requires a recursive size computation
// rather than a local one.
func scalarSize(fd *desc.FieldDescriptor, val interface{}) int {
	switch fd.Type {
	case desc.Bool:
		return 1
	case desc.Int32, desc.Enum:
		return wire.SizeVarint(uint64(val.(int32)))
	case desc.Sint32:
		return wire.SizeVarint(wire.EncodeZigZag32(val.(int32)))
	case desc.Uint32:
		return wire.SizeVarint(uint64(val.(uint32)))
	case desc.Int64:
		return wire.SizeVarint(uint64(val.(int64)))
	case desc.Sint64:
		return wire.SizeVarint(wire.EncodeZigZag64(val.(int64)))
	case desc.Uint64:
		return wire.SizeVarint(val.(uint64))
	case desc.Sfixed32, desc.Fixed32, desc.Float:
		return 4
	case desc.Sfixed64, desc.Fixed64, desc.Double:
		return 8
	case desc.String:
		s := val.(string)
		return wire.SizeVarint(uint64(len(s))) + len(s)
	case desc.Bytes:
		b := val.([]byte)
		return wire.SizeVarint(uint64(len(b))) + len(b)
	default:
		panic(fmt.Sprintf("scalarSize: unexpected type %v", fd.Type))
	}
}

// encodeScalarValue appends val's encoded payload (not including a key)
// to w. MESSAGE values are handled by the caller (marshal.go), which
// needs the recursive size to emit the length prefix first.
func encodeScalarValue(w *wire.Writer, fd *desc.FieldDescriptor, val interface{}) {
	switch fd.Type {
	case desc.Bool:
		if val.(bool) {
			w.EncodeVarint(1)
		} else {
			w.EncodeVarint(0)
		}
	case desc.Int32, desc.Enum:
		w.EncodeVarint(uint64(val.(int32)))
	case desc.Sint32:
		w.EncodeVarint(wire.EncodeZigZag32(val.(int32)))
	case desc.Uint32:
		w.EncodeVarint(uint64(val.(uint32)))
	case desc.Int64:
		w.EncodeVarint(uint64(val.(int64)))
	case desc.Sint64:
		w.EncodeVarint(wire.EncodeZigZag64(val.(int64)))
	case desc.Uint64:
		w.EncodeVarint(val.(uint64))
	case desc.Sfixed32, desc.Fixed32:
		w.EncodeFixed32(uint32(toUint64Scalar(fd, val)))
	case desc.Float:
		w.EncodeFixed32(wire.Float32bits(val.(float32)))
	case desc.Sfixed64, desc.Fixed64:
		w.EncodeFixed64(toUint64Scalar(fd, val))
	case desc.Double:
		w.EncodeFixed64(wire.Float64bits(val.(float64)))
	case desc.String:
		w.EncodeRawBytes([]byte(val.(string)))
	case desc.Bytes:
		w.EncodeRawBytes(val.([]byte))
	default:
		panic(fmt.Sprintf("encodeScalarValue: unexpected type %v", fd.Type))
	}
}

func toUint64Scalar(fd *desc.FieldDescriptor, val interface{}) uint64 {
	switch fd.Type {
	case desc.Sfixed32:
		return uint64(uint32(val.(int32)))
	case desc.Fixed32:
		return uint64(val.(uint32))
	case desc.Sfixed64:
		return uint64(val.(int64))
	case desc.Fixed64:
		return val.(uint64)
	default:
		panic("toUint64Scalar: not a fixed-width integer type")
	}
}

// decodeVarintValue converts a raw decoded varint into fd's declared Go
// value. Only valid for fd.WireType() == desc.WireVarint types.
func decodeVarintValue(fd *desc.FieldDescriptor, v uint64) (interface{}, error) {
	switch fd.Type {
	case desc.Bool:
		return v != 0, nil
	case desc.Int32:
		return int32(v), nil
	case desc.Enum:
		return int32(int64(v)), nil
	case desc.Sint32:
		return wire.DecodeZigZag32(v), nil
	case desc.Uint32:
		if v > 0xffffffff {
			return nil, fmt.Errorf("%w: uint32 field %s overflow", errMalformedLocal, fd.Name)
		}
		return uint32(v), nil
	case desc.Int64:
		return int64(v), nil
	case desc.Sint64:
		return wire.DecodeZigZag64(v), nil
	case desc.Uint64:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: field %s is not varint-typed", errMalformedLocal, fd.Name)
	}
}

// decodeFixed32Value converts a raw decoded 32-bit value into fd's
// declared Go value.
func decodeFixed32Value(fd *desc.FieldDescriptor, v uint32) (interface{}, error) {
	switch fd.Type {
	case desc.Sfixed32:
		return int32(v), nil
	case desc.Fixed32:
		return v, nil
	case desc.Float:
		return wire.Float32frombits(v), nil
	default:
		return nil, fmt.Errorf("%w: field %s is not 32-bit fixed-typed", errMalformedLocal, fd.Name)
	}
}

// decodeFixed64Value converts a raw decoded 64-bit value into fd's
// declared Go value.
func decodeFixed64Value(fd *desc.FieldDescriptor, v uint64) (interface{}, error) {
	switch fd.Type {
	case desc.Sfixed64:
		return int64(v), nil
	case desc.Fixed64:
		return v, nil
	case desc.Double:
		return wire.Float64frombits(v), nil
	default:
		return nil, fmt.Errorf("%w: field %s is not 64-bit fixed-typed", errMalformedLocal, fd.Name)
	}
}
