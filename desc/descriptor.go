// Package desc defines the immutable, process-lifetime descriptor model
// that drives pbcore's encode/decode engine: enum, field, message, and
// service descriptors, plus the magic-number precondition checks and
// binary/int-range lookup helpers a generated schema relies on.
//
// Descriptors are read-only static data in this design, same as in the
// protobuf-c runtime this package is modeled on: they are built once (by a
// generator, or by hand in tests, since the generator itself is out of
// scope here) and then shared freely across goroutines and across however
// many message instances reference them.
package desc

import (
	"fmt"
	"sort"
)

// Magic numbers catch accidental use of an uninitialized or wrong-kind
// descriptor. They match the protobuf-c ABI this design is grounded on so
// that the failure mode (reject with a precondition panic, not a
// recoverable error) is unambiguous and unmistakably intentional.
const (
	EnumMagic    uint32 = 0x114315af
	MessageMagic uint32 = 0x28aaeef9
	ServiceMagic uint32 = 0x14159bc3
)

// PreconditionError reports programmer error: a bad descriptor magic, a
// nil descriptor, or a descriptor/record size mismatch. These are never
// recoverable the way malformed wire input is (spec.md §7) — they mean the
// calling code is wired up wrong.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return "pbcore: precondition failed: " + e.Msg }

func failPrecondition(format string, args ...interface{}) {
	panic(&PreconditionError{Msg: fmt.Sprintf(format, args...)})
}

// Label is one of the three field labels a schema field may carry.
type Label int8

const (
	Required Label = iota
	Optional
	Repeated
)

func (l Label) String() string {
	switch l {
	case Required:
		return "required"
	case Optional:
		return "optional"
	case Repeated:
		return "repeated"
	default:
		return "label(?)"
	}
}

// Type is the declared wire-level type of a field.
type Type int8

const (
	Int32 Type = iota
	Sint32
	Sfixed32
	Int64
	Sint64
	Sfixed64
	Uint32
	Fixed32
	Uint64
	Fixed64
	Float
	Double
	Bool
	Enum
	String
	Bytes
	Message
)

func (t Type) String() string {
	names := [...]string{
		"int32", "sint32", "sfixed32", "int64", "sint64", "sfixed64",
		"uint32", "fixed32", "uint64", "fixed64", "float", "double",
		"bool", "enum", "string", "bytes", "message",
	}
	if int(t) < 0 || int(t) >= len(names) {
		return "type(?)"
	}
	return names[t]
}

// IsScalar reports whether t is a fixed-shape numeric/bool/enum type, i.e.
// everything except STRING/BYTES/MESSAGE. Only scalar repeated fields may
// be packed (spec.md §3 FieldDescriptor invariants).
func (t Type) IsScalar() bool {
	return t != String && t != Bytes && t != Message
}

// FieldFlag is a bitmask of optional field attributes.
type FieldFlag uint32

const (
	FlagPacked FieldFlag = 1 << iota
	FlagDeprecated
)

// FieldDescriptor describes one field of a message, the unit the
// encode/decode engine dispatches on.
type FieldDescriptor struct {
	Name  string
	Tag   uint32 // 1 .. 2^29-1
	Label Label
	Type  Type

	// EnumType is non-nil iff Type == Enum.
	EnumType *EnumDescriptor
	// MessageType is non-nil iff Type == Message.
	MessageType *MessageDescriptor

	// Default is the declared default value, or nil if none. Never owned
	// by any message instance (spec.md §4.6).
	Default interface{}

	Flags FieldFlag
}

// Packed reports whether this field should use packed encoding: only true
// for REPEATED scalar fields with FlagPacked set (spec.md §4.4).
func (fd *FieldDescriptor) Packed() bool {
	return fd.Label == Repeated && fd.Type.IsScalar() && fd.Flags&FlagPacked != 0
}

// Deprecated reports whether the field carries the deprecated flag.
func (fd *FieldDescriptor) Deprecated() bool {
	return fd.Flags&FlagDeprecated != 0
}

// WireType returns the wire type this field's declared Type is encoded
// with when not using packed repetition.
func (fd *FieldDescriptor) WireType() WireType {
	switch fd.Type {
	case Int32, Sint32, Int64, Sint64, Uint32, Uint64, Bool, Enum:
		return WireVarint
	case Sfixed32, Fixed32, Float:
		return WireFixed32
	case Sfixed64, Fixed64, Double:
		return WireFixed64
	case String, Bytes, Message:
		return WireLengthPrefixed
	default:
		return WireVarint
	}
}

// WireType mirrors wire.WireType without importing the wire package, so
// that desc has no dependency on the codec that consumes it — only the
// small numeric vocabulary needs to be shared, and the message package
// (which does import both) is responsible for translating between the
// two when it dispatches.
type WireType int8

const (
	WireVarint WireType = iota
	WireFixed64
	WireLengthPrefixed
	WireStartGroup
	WireEndGroup
	WireFixed32
)

// AcceptsWireType reports whether wt is a legal on-wire encoding for this
// field, per the compatibility table in spec.md §4.5. A mismatch is not
// fatal to the overall parse — the caller treats the field as unknown —
// but this is the predicate that decides which path to take.
func (fd *FieldDescriptor) AcceptsWireType(wt WireType) bool {
	declared := fd.WireType()
	if wt == declared {
		return true
	}
	// Packed form: a repeated scalar field may also arrive length-prefixed.
	if fd.Label == Repeated && fd.Type.IsScalar() && wt == WireLengthPrefixed {
		return true
	}
	return false
}

// EnumValueDescriptor is a single named value of an enum.
type EnumValueDescriptor struct {
	Name  string
	Value int32
}

// EnumDescriptor describes an enum type: its values sorted ascending by
// number, an index sorted by name, and an optional IntRange index for
// sparse/clustered value spaces.
type EnumDescriptor struct {
	Magic uint32
	Name  string

	// Values is sorted ascending by Value (spec.md §3 invariant).
	Values []EnumValueDescriptor
	// ValuesByName is a permutation of indices into Values, sorted by name.
	ValuesByName []int
	// ValueRanges is an optional IntRange index over Value; may be nil.
	ValueRanges []IntRange
}

func newEnumDescriptor(name string, values []EnumValueDescriptor) *EnumDescriptor {
	byName := make([]int, len(values))
	for i := range byName {
		byName[i] = i
	}
	sortInts(byName, func(a, b int) bool { return values[a].Name < values[b].Name })
	ed := &EnumDescriptor{
		Magic:        EnumMagic,
		Name:         name,
		Values:       values,
		ValuesByName: byName,
	}
	ed.ValueRanges = buildIntRanges(len(values), func(i int) int { return int(values[i].Value) })
	return ed
}

// NewEnumDescriptor builds an EnumDescriptor from values already sorted
// ascending by Value, as a generator would emit them. It panics (a
// precondition failure, not a recoverable error) if the ordering invariant
// is violated.
func NewEnumDescriptor(name string, values []EnumValueDescriptor) *EnumDescriptor {
	for i := 1; i < len(values); i++ {
		if values[i-1].Value >= values[i].Value {
			failPrecondition("enum %s: values not strictly ascending at index %d", name, i)
		}
	}
	return newEnumDescriptor(name, values)
}

func checkEnumMagic(ed *EnumDescriptor) {
	if ed == nil {
		failPrecondition("nil enum descriptor")
	}
	if ed.Magic != EnumMagic {
		failPrecondition("bad enum descriptor magic: %#x", ed.Magic)
	}
}

// MessageDescriptor describes a message type: its fields sorted by tag
// and the lookup indices used by FindFieldByTag / FindFieldByName. It
// carries no record byte size (protobuf-c's sizeof_message): this Go
// engine allocates reference-typed Message values rather than
// placement-initializing flat structs — see DESIGN.md.
type MessageDescriptor struct {
	Magic uint32
	Name  string

	// Fields is sorted ascending by Tag (spec.md §3 invariant).
	Fields []*FieldDescriptor
	// FieldsByName is a permutation of indices into Fields, sorted by name.
	FieldsByName []int
	// FieldRanges indexes Fields by Tag for O(log n) / near-O(1) lookup.
	FieldRanges []IntRange

	// New constructs a fresh, zero-valued instance of this message type
	// (the Go analogue of protobuf-c's message_init: every message has to
	// come from somewhere, and a bare *MessageDescriptor has no way to
	// produce one without importing the message package — so the message
	// package supplies this closure when it builds the descriptor).
	New func() Record
}

// Record is the minimal capability a message instance exposes back to its
// own descriptor: enough for the generic engine to recover field metadata
// without this package importing the concrete message implementation.
type Record interface {
	Descriptor() *MessageDescriptor
}

// NewMessageDescriptor builds a MessageDescriptor from fields already
// sorted ascending by Tag. newFn constructs a fresh instance and may be
// nil: message.Unpack builds every instance, nested ones included, with
// message.New and does not call it.
func NewMessageDescriptor(name string, fields []*FieldDescriptor, newFn func() Record) *MessageDescriptor {
	for i := 1; i < len(fields); i++ {
		if fields[i-1].Tag >= fields[i].Tag {
			failPrecondition("message %s: fields not strictly ascending by tag at index %d", name, i)
		}
	}
	byName := make([]int, len(fields))
	for i := range byName {
		byName[i] = i
	}
	sortInts(byName, func(a, b int) bool { return fields[a].Name < fields[b].Name })
	md := &MessageDescriptor{
		Magic:        MessageMagic,
		Name:         name,
		Fields:       fields,
		FieldsByName: byName,
		New:          newFn,
	}
	md.FieldRanges = buildIntRanges(len(fields), func(i int) int { return int(fields[i].Tag) })
	return md
}

func checkMessageMagic(md *MessageDescriptor) {
	if md == nil {
		failPrecondition("nil message descriptor")
	}
	if md.Magic != MessageMagic {
		failPrecondition("bad message descriptor magic: %#x", md.Magic)
	}
}

// CheckMagic panics with a PreconditionError if md is nil or carries the
// wrong magic number. The engine calls this at every public entry point
// per spec.md §3: "the engine must reject any descriptor whose magic is
// wrong with a fatal precondition failure."
func (md *MessageDescriptor) CheckMagic() { checkMessageMagic(md) }

// CheckMagic is the enum-descriptor counterpart of MessageDescriptor.CheckMagic.
func (ed *EnumDescriptor) CheckMagic() { checkEnumMagic(ed) }

// MethodDescriptor names one RPC method and its message types. Services
// are addressed by stable index, not by name, at the invoke boundary
// (spec.md §6); the name index below exists only for lookup convenience.
type MethodDescriptor struct {
	Name   string
	Input  *MessageDescriptor
	Output *MessageDescriptor
}

// ServiceDescriptor describes a service: an ordered method list plus a
// name index. The core never calls through this descriptor itself — RPC
// transport is entirely external (spec.md §1 Out of scope) — it exists so
// a generated service vtable initializer has something to point at.
type ServiceDescriptor struct {
	Magic   uint32
	Name    string
	Methods []MethodDescriptor
	// MethodIndicesByName is a permutation of indices into Methods, sorted
	// by method name.
	MethodIndicesByName []int
}

// NewServiceDescriptor builds a ServiceDescriptor, methods in declaration
// order (order from the .proto file, not sorted).
func NewServiceDescriptor(name string, methods []MethodDescriptor) *ServiceDescriptor {
	byName := make([]int, len(methods))
	for i := range byName {
		byName[i] = i
	}
	sortInts(byName, func(a, b int) bool { return methods[a].Name < methods[b].Name })
	return &ServiceDescriptor{
		Magic:               ServiceMagic,
		Name:                name,
		Methods:             methods,
		MethodIndicesByName: byName,
	}
}

// CheckMagic panics if sd is nil or has the wrong magic.
func (sd *ServiceDescriptor) CheckMagic() {
	if sd == nil {
		failPrecondition("nil service descriptor")
	}
	if sd.Magic != ServiceMagic {
		failPrecondition("bad service descriptor magic: %#x", sd.Magic)
	}
}

// sortInts permutes idx (initially 0..n-1) into the order less demands,
// using the same sort package lookup.go already relies on for
// FindFieldByTag/FindFieldByName, rather than a bespoke algorithm. Kept
// local and unexported since it is an implementation detail of index
// building, not a public lookup operation (those live in lookup.go).
func sortInts(idx []int, less func(a, b int) bool) {
	sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })
}
