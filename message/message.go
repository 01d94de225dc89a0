// Package message implements message instances and the lifecycle,
// sizing, pack, and unpack engines that operate on them (spec.md §3,
// §4.3-§4.6). It is the largest component of pbcore and the one grounded
// most directly on jhump/protoreflect's dynamic.Message and codec.Buffer:
// like dynamic.Message, a Message here is a self-describing record keyed
// by field tag rather than a generated Go struct with compiler-fixed
// field offsets — the descriptor tells the engine everything it needs,
// and "offset" in spec.md's sense becomes "map key" (see DESIGN.md's
// discussion of Design Note "Offset-based records").
package message

import (
	"fmt"

	"github.com/wireproto/pbcore/desc"
	"github.com/wireproto/pbcore/wire"
)

// UnknownField is a field the descriptor didn't recognize, retained
// verbatim (tag, wire type, and raw value bytes) so that re-packing
// reproduces the original encoding exactly (spec.md §3, §4.5). Legacy
// group fields are never captured here: they are skipped and discarded
// per spec.md §1's Non-goals.
type UnknownField struct {
	Tag      uint32
	WireType wire.WireType
	// Data holds the exact on-wire bytes of the field's value (not
	// including its key): the raw varint, the 4 or 8 fixed bytes, or the
	// content bytes of a length-prefixed field (length re-derived from
	// len(Data) at repack time, which is always correct since content
	// never changes size between decode and re-encode).
	Data []byte
}

// Message is a mutable instance of a message type. The zero value is not
// usable; construct one with New.
type Message struct {
	md *desc.MessageDescriptor

	// scalar/enum/string/bytes/submessage values, keyed by field tag.
	// REQUIRED/OPTIONAL fields store a single value; REPEATED fields
	// store []interface{}.
	values map[uint32]interface{}
	// presence records which OPTIONAL/REQUIRED fields have been
	// explicitly set, distinguishing "absent" from "set to the zero
	// value" per spec.md §3 ("presence wins over value-equality").
	presence map[uint32]bool

	unknown []UnknownField
}

// New constructs a fresh, empty Message for md, with every field's
// declared default installed (a field with no declared default holds no
// value at all, and Get returns nil for it),
// matching protobuf-c's message_init (spec.md §4.6): scalars/enums get
// their default constant, optionals start absent, repeateds start empty.
// Defaults are never considered "owned" by the message and Clear/Check
// never free them — they simply aren't heap allocations at all here.
func New(md *desc.MessageDescriptor) *Message {
	md.CheckMagic()
	m := &Message{
		md:       md,
		values:   make(map[uint32]interface{}),
		presence: make(map[uint32]bool),
	}
	for _, fd := range md.Fields {
		if fd.Label == Repeated {
			continue // n==0, backing slice nil, per spec.md §3
		}
		if fd.Default != nil {
			m.values[fd.Tag] = fd.Default
		}
	}
	return m
}

// Descriptor implements desc.Record, letting the generic engine recover a
// message's schema from the instance alone.
func (m *Message) Descriptor() *desc.MessageDescriptor { return m.md }

// Get returns the current value of fd, and whether it is present.
// REQUIRED/OPTIONAL scalar, enum, string, bytes fields return their Go
// value directly; MESSAGE fields return *Message (or nil if absent);
// REPEATED fields return []interface{} (nil/empty if absent).
func (m *Message) Get(fd *desc.FieldDescriptor) (interface{}, bool) {
	if fd.Label == Repeated {
		v, ok := m.values[fd.Tag].([]interface{})
		return v, ok && len(v) > 0
	}
	v, ok := m.values[fd.Tag]
	return v, ok && m.presence[fd.Tag]
}

// Has reports whether fd is present (set, for OPTIONAL; non-empty, for
// REPEATED; set, for REQUIRED).
func (m *Message) Has(fd *desc.FieldDescriptor) bool {
	_, ok := m.Get(fd)
	return ok
}

// Set assigns fd's value directly, marking it present. For MESSAGE
// fields val must be *Message (or nil to clear); for REPEATED fields use
// AppendRepeated / SetRepeated instead of Set.
func (m *Message) Set(fd *desc.FieldDescriptor, val interface{}) {
	if fd.Label == Repeated {
		panic(fmt.Sprintf("message: Set called on repeated field %s; use AppendRepeated", fd.Name))
	}
	if fd.Type == desc.Message {
		if child, ok := val.(*Message); val == nil || (ok && child == nil) {
			m.Clear(fd)
			return
		}
	}
	m.values[fd.Tag] = val
	m.presence[fd.Tag] = true
}

// Clear marks fd absent and removes its value. For a non-repeated field
// with a declared default, that default is reinstalled as the in-memory
// value (Get returns it, still reporting the field absent); otherwise no
// value remains.
func (m *Message) Clear(fd *desc.FieldDescriptor) {
	delete(m.presence, fd.Tag)
	if fd.Label == Repeated {
		delete(m.values, fd.Tag)
		return
	}
	if fd.Default != nil {
		m.values[fd.Tag] = fd.Default
	} else {
		delete(m.values, fd.Tag)
	}
}

// RepeatedLen returns the number of elements in fd's repeated value.
func (m *Message) RepeatedLen(fd *desc.FieldDescriptor) int {
	v, _ := m.values[fd.Tag].([]interface{})
	return len(v)
}

// RepeatedItem returns the i'th element of fd's repeated value.
func (m *Message) RepeatedItem(fd *desc.FieldDescriptor, i int) interface{} {
	v := m.values[fd.Tag].([]interface{})
	return v[i]
}

// AppendRepeated appends val to fd's repeated value, allocating the
// backing slice on first use.
func (m *Message) AppendRepeated(fd *desc.FieldDescriptor, val interface{}) {
	if fd.Label != Repeated {
		panic(fmt.Sprintf("message: AppendRepeated called on non-repeated field %s", fd.Name))
	}
	v, _ := m.values[fd.Tag].([]interface{})
	m.values[fd.Tag] = append(v, val)
}

// SetRepeated replaces fd's entire repeated value.
func (m *Message) SetRepeated(fd *desc.FieldDescriptor, vals []interface{}) {
	if fd.Label != Repeated {
		panic(fmt.Sprintf("message: SetRepeated called on non-repeated field %s", fd.Name))
	}
	m.values[fd.Tag] = vals
}

// UnknownFields returns the fields this instance doesn't recognize, in
// arrival order.
func (m *Message) UnknownFields() []UnknownField { return m.unknown }

// AddUnknownField appends uf to this instance's unknown-field list.
func (m *Message) AddUnknownField(uf UnknownField) {
	m.unknown = append(m.unknown, uf)
}

// ClearUnknownFields discards every captured unknown field.
func (m *Message) ClearUnknownFields() { m.unknown = nil }

const Repeated = desc.Repeated // local alias for brevity in this file
