package message

import (
	"github.com/wireproto/pbcore"
	"github.com/wireproto/pbcore/desc"
)

// FreeUnpacked releases every byte allocation a successful Unpack call
// made while building m — string and bytes field values, unknown-field
// raw spans, and the same for every submessage reachable from m — back to
// allocator, which must be the same Allocator (or an equivalent one, by
// value) that produced m via Unpack. It is a no-op on a nil m.
//
// FreeUnpacked must never be called on a message built by New and filled
// in by hand: those field values were never allocated through an
// Allocator, and freeing them would hand the allocator bytes it never
// gave out (the same precondition protobuf-c's free_unpacked documents).
//
// Default field values are skipped even when the descriptor supplies one:
// a default is never "owned" by any message instance (spec.md §4.6), so
// an absent field — still visible through Get as its default — is never
// freed.
func FreeUnpacked(m *Message, allocator pbcore.Allocator) {
	if m == nil {
		return
	}
	if allocator == nil {
		allocator = pbcore.DefaultAllocator
	}
	freeUnpackedInto(m, allocator)
}

func freeUnpackedInto(m *Message, allocator pbcore.Allocator) {
	for _, fd := range m.md.Fields {
		if fd.Label == Repeated {
			vals, _ := m.values[fd.Tag].([]interface{})
			for _, v := range vals {
				freeFieldValue(v, fd, allocator)
			}
			continue
		}
		if !m.presence[fd.Tag] {
			continue
		}
		freeFieldValue(m.values[fd.Tag], fd, allocator)
	}
	for _, uf := range m.unknown {
		allocator.Free(uf.Data)
	}
}

func freeFieldValue(v interface{}, fd *desc.FieldDescriptor, allocator pbcore.Allocator) {
	switch fd.Type {
	case desc.String:
		s, _ := v.(string)
		allocator.Free(stringToBytesNoCopy(s))
	case desc.Bytes:
		b, _ := v.([]byte)
		allocator.Free(b)
	case desc.Message:
		child, _ := v.(*Message)
		if child != nil {
			freeUnpackedInto(child, allocator)
		}
	}
}
