package message

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireproto/pbcore"
	"github.com/wireproto/pbcore/desc"
	"github.com/wireproto/pbcore/simplebuffer"
)

// Hand-written schema standing in for generator output (spec.md has no
// generator in scope): an Inner message nested inside an Outer one,
// exercising required/optional/repeated-packed/message/enum fields in one
// shot. Built with the classic forward-reference-via-package-var pattern a
// generated init() function would also need, since a MessageDescriptor's
// New closure has to be able to name the very descriptor it belongs to.
var (
	innerMD  *desc.MessageDescriptor
	outerMD  *desc.MessageDescriptor
	myEnumED *desc.EnumDescriptor
)

func init() {
	myEnumED = desc.NewEnumDescriptor("MyEnum", []desc.EnumValueDescriptor{
		{Name: "UNKNOWN", Value: 0},
		{Name: "ACTIVE", Value: 1},
	})

	innerMD = desc.NewMessageDescriptor("Inner", []*desc.FieldDescriptor{
		{Name: "id", Tag: 1, Label: desc.Required, Type: desc.Int32},
		{Name: "note", Tag: 2, Label: desc.Optional, Type: desc.String},
	}, func() desc.Record { return New(innerMD) })

	outerMD = desc.NewMessageDescriptor("Outer", []*desc.FieldDescriptor{
		{Name: "id", Tag: 1, Label: desc.Required, Type: desc.Int32},
		{Name: "name", Tag: 2, Label: desc.Optional, Type: desc.String, Default: "anon"},
		{Name: "tags", Tag: 3, Label: desc.Repeated, Type: desc.Int32, Flags: desc.FlagPacked},
		{Name: "child", Tag: 4, Label: desc.Optional, Type: desc.Message, MessageType: innerMD},
		{Name: "children", Tag: 5, Label: desc.Repeated, Type: desc.Message, MessageType: innerMD},
		{Name: "status", Tag: 6, Label: desc.Optional, Type: desc.Enum, EnumType: myEnumED, Default: int32(0)},
	}, func() desc.Record { return New(outerMD) })
}

func fieldByName(md *desc.MessageDescriptor, name string) *desc.FieldDescriptor {
	fd := md.FindFieldByName(name)
	if fd == nil {
		panic("no such field: " + name)
	}
	return fd
}

func buildSampleOuter(t *testing.T) *Message {
	t.Helper()
	m := New(outerMD)
	m.Set(fieldByName(outerMD, "id"), int32(42))
	m.Set(fieldByName(outerMD, "name"), "hello")
	for _, v := range []int32{1, 2, 150} {
		m.AppendRepeated(fieldByName(outerMD, "tags"), v)
	}
	child := New(innerMD)
	child.Set(fieldByName(innerMD, "id"), int32(7))
	child.Set(fieldByName(innerMD, "note"), "child-note")
	m.Set(fieldByName(outerMD, "child"), child)
	for i := int32(0); i < 2; i++ {
		c := New(innerMD)
		c.Set(fieldByName(innerMD, "id"), i+100)
		m.AppendRepeated(fieldByName(outerMD, "children"), c)
	}
	m.Set(fieldByName(outerMD, "status"), int32(1))
	return m
}

func TestPackUnpackRoundTrip(t *testing.T) {
	m := buildSampleOuter(t)
	require.True(t, m.Check())

	data := Pack(m)
	got, err := Unpack(outerMD, data, nil)
	require.NoError(t, err)

	assertOuterEqual(t, m, got)
}

// spec.md §8: pack(unpack(pack(m))) must equal pack(m) byte-for-byte, the
// idempotence / canonical-form property. TestPackUnpackRoundTrip only checks
// field values survive the trip; this checks the re-encoded bytes match.
func TestPackUnpackRepackIsByteIdentical(t *testing.T) {
	m := buildSampleOuter(t)
	data := Pack(m)

	got, err := Unpack(outerMD, data, nil)
	require.NoError(t, err)

	repacked := Pack(got)
	assert.Equal(t, data, repacked)
}

func assertOuterEqual(t *testing.T, want, got *Message) {
	t.Helper()
	idF, nameF, tagsF, childF, childrenF, statusF :=
		fieldByName(outerMD, "id"), fieldByName(outerMD, "name"), fieldByName(outerMD, "tags"),
		fieldByName(outerMD, "child"), fieldByName(outerMD, "children"), fieldByName(outerMD, "status")

	wv, _ := want.Get(idF)
	gv, _ := got.Get(idF)
	assert.Equal(t, wv, gv)

	wv, _ = want.Get(nameF)
	gv, _ = got.Get(nameF)
	assert.Equal(t, wv, gv)

	assert.Equal(t, want.RepeatedLen(tagsF), got.RepeatedLen(tagsF))
	for i := 0; i < want.RepeatedLen(tagsF); i++ {
		assert.Equal(t, want.RepeatedItem(tagsF, i), got.RepeatedItem(tagsF, i))
	}

	wc, _ := want.Get(childF)
	gc, _ := got.Get(childF)
	wcm, gcm := wc.(*Message), gc.(*Message)
	require.NotNil(t, wcm)
	require.NotNil(t, gcm)
	wid, _ := wcm.Get(fieldByName(innerMD, "id"))
	gid, _ := gcm.Get(fieldByName(innerMD, "id"))
	assert.Equal(t, wid, gid)

	require.Equal(t, want.RepeatedLen(childrenF), got.RepeatedLen(childrenF))
	for i := 0; i < want.RepeatedLen(childrenF); i++ {
		wi := want.RepeatedItem(childrenF, i).(*Message)
		gi := got.RepeatedItem(childrenF, i).(*Message)
		wid, _ := wi.Get(fieldByName(innerMD, "id"))
		gid, _ := gi.Get(fieldByName(innerMD, "id"))
		assert.Equal(t, wid, gid)
	}

	wv, _ = want.Get(statusF)
	gv, _ = got.Get(statusF)
	assert.Equal(t, wv, gv)
}

func TestGetPackedSizeMatchesPackLen(t *testing.T) {
	m := buildSampleOuter(t)
	assert.Equal(t, GetPackedSize(m), len(Pack(m)))
}

type bufSink struct{ buf bytes.Buffer }

func (s *bufSink) Append(data []byte) { s.buf.Write(data) }

func TestPackToSinkMatchesPack(t *testing.T) {
	m := buildSampleOuter(t)
	want := Pack(m)

	var sink bufSink
	n := PackToSink(m, &sink)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, sink.buf.Bytes())
}

func TestPackToSinkWithSimpleBuffer(t *testing.T) {
	m := buildSampleOuter(t)
	want := Pack(m)

	sink := simplebuffer.New(GetPackedSize(m))
	n := PackToSink(m, sink)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, sink.Bytes())
}

func TestPackToRejectsWrongSizeBuffer(t *testing.T) {
	m := buildSampleOuter(t)
	assert.Panics(t, func() {
		PackTo(m, make([]byte, GetPackedSize(m)+1))
	})
}

func TestCheckReportsMissingRequired(t *testing.T) {
	m := New(outerMD) // id is REQUIRED and never set
	assert.False(t, m.Check())
	require.Error(t, m.CheckError())

	m.Set(fieldByName(outerMD, "id"), int32(1))
	assert.True(t, m.Check())

	// A required field nested inside an absent-but-present submessage
	// still has to surface.
	child := New(innerMD) // inner.id is REQUIRED and unset
	m.Set(fieldByName(outerMD, "child"), child)
	assert.False(t, m.Check())
}

func TestUnknownFieldRoundTrip(t *testing.T) {
	// A minimal message with one known field (tag 1) encoded alongside a
	// tag the descriptor doesn't define (tag 99, varint), plus a stray
	// length-prefixed tag (100) — both must come back byte-identical.
	small := desc.NewMessageDescriptor("Small", []*desc.FieldDescriptor{
		{Name: "id", Tag: 1, Label: desc.Optional, Type: desc.Int32},
	}, nil)

	w := newTestWriter()
	w.tag(1, 0)
	w.varint(5)
	w.tag(99, 0)
	w.varint(0xFFFFFFFF) // deliberately multi-byte varint
	w.tag(100, 2)
	w.lengthPrefixed([]byte("xyz"))
	data := w.bytes()

	m, err := Unpack(small, data, nil)
	require.NoError(t, err)

	ufs := m.UnknownFields()
	require.Len(t, ufs, 2)
	assert.Equal(t, uint32(99), ufs[0].Tag)
	assert.Equal(t, uint32(100), ufs[1].Tag)
	assert.Equal(t, []byte("xyz"), ufs[1].Data)

	repacked := Pack(m)
	assert.Equal(t, data, repacked)
}

func TestUnknownFieldsMatchExpectedStructureExactly(t *testing.T) {
	small := desc.NewMessageDescriptor("Small3", []*desc.FieldDescriptor{
		{Name: "id", Tag: 1, Label: desc.Optional, Type: desc.Int32},
	}, nil)
	w := newTestWriter()
	w.tag(1, 0)
	w.varint(1)
	w.tag(7, 0)
	w.varint(42)
	m, err := Unpack(small, w.bytes(), nil)
	require.NoError(t, err)

	want := []UnknownField{{Tag: 7, WireType: m.UnknownFields()[0].WireType, Data: []byte{42}}}
	if diff := cmp.Diff(want, m.UnknownFields()); diff != "" {
		t.Errorf("unknown fields mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSemanticsMatchesConcatenatedUnpack(t *testing.T) {
	// spec.md §8: unpack(b1++b2) must equal the field-wise merge of
	// unpack(b1) and unpack(b2). Exercise it on Outer, which has a
	// non-repeated scalar (last-wins), a repeated field (concatenation),
	// and a non-repeated submessage field (recursive merge).
	m1 := New(outerMD)
	m1.Set(fieldByName(outerMD, "id"), int32(1))
	m1.Set(fieldByName(outerMD, "name"), "first")
	m1.AppendRepeated(fieldByName(outerMD, "tags"), int32(10))
	c1 := New(innerMD)
	c1.Set(fieldByName(innerMD, "id"), int32(1))
	m1.Set(fieldByName(outerMD, "child"), c1)

	m2 := New(outerMD)
	m2.Set(fieldByName(outerMD, "id"), int32(2))
	m2.AppendRepeated(fieldByName(outerMD, "tags"), int32(20))
	c2 := New(innerMD)
	c2.Set(fieldByName(innerMD, "id"), int32(2))
	c2.Set(fieldByName(innerMD, "note"), "second-note")
	m2.Set(fieldByName(outerMD, "child"), c2)

	concatenated := append(Pack(m1), Pack(m2)...)
	merged, err := Unpack(outerMD, concatenated, nil)
	require.NoError(t, err)

	idF := fieldByName(outerMD, "id")
	nameF := fieldByName(outerMD, "name")
	tagsF := fieldByName(outerMD, "tags")
	childF := fieldByName(outerMD, "child")

	idv, _ := merged.Get(idF)
	assert.Equal(t, int32(2), idv) // last-wins

	namev, _ := merged.Get(nameF)
	assert.Equal(t, "first", namev) // only m1 set it

	require.Equal(t, 2, merged.RepeatedLen(tagsF))
	assert.Equal(t, int32(10), merged.RepeatedItem(tagsF, 0))
	assert.Equal(t, int32(20), merged.RepeatedItem(tagsF, 1))

	childv, _ := merged.Get(childF)
	child := childv.(*Message)
	cid, _ := child.Get(fieldByName(innerMD, "id"))
	cnote, _ := child.Get(fieldByName(innerMD, "note"))
	assert.Equal(t, int32(2), cid)             // last-wins within the merged child
	assert.Equal(t, "second-note", cnote) // only c2 set it
}

func TestConcreteScenarioOptionalScalarLastWins(t *testing.T) {
	// spec.md §8: "08 01" followed by "08 02" for the same optional int32
	// field must decode to 2, not 1 and not an error.
	small := desc.NewMessageDescriptor("Small2", []*desc.FieldDescriptor{
		{Name: "id", Tag: 1, Label: desc.Optional, Type: desc.Int32},
	}, nil)
	data := []byte{0x08, 0x01, 0x08, 0x02}
	m, err := Unpack(small, data, nil)
	require.NoError(t, err)
	v, _ := m.Get(fieldByName(small, "id"))
	assert.Equal(t, int32(2), v)
}

func TestConcreteScenarioPackedRepeatedInt32(t *testing.T) {
	// spec.md §8: tag 4, length-prefixed, bytes [01 02 96 01] packs the
	// three int32 values 1, 2, 150.
	packedMD := desc.NewMessageDescriptor("Packed", []*desc.FieldDescriptor{
		{Name: "nums", Tag: 4, Label: desc.Repeated, Type: desc.Int32, Flags: desc.FlagPacked},
	}, nil)
	data := []byte{0x22, 0x04, 0x01, 0x02, 0x96, 0x01}
	m, err := Unpack(packedMD, data, nil)
	require.NoError(t, err)
	fd := fieldByName(packedMD, "nums")
	require.Equal(t, 3, m.RepeatedLen(fd))
	assert.Equal(t, int32(1), m.RepeatedItem(fd, 0))
	assert.Equal(t, int32(2), m.RepeatedItem(fd, 1))
	assert.Equal(t, int32(150), m.RepeatedItem(fd, 2))
}

func TestFailingAllocatorLeavesNoBytesOutstandingOnError(t *testing.T) {
	m := buildSampleOuter(t)
	data := Pack(m)

	// Exactly two Alloc calls happen on the success path: the "hello"
	// string and the "child-note" string (ints/enums aren't byte-backed,
	// and none of the repeated Inner children sets its optional note).
	// Failing at either one must leave zero bytes outstanding.
	for failAt := 1; failAt <= 2; failAt++ {
		alloc := pbcore.NewFailingAllocator(nil, failAt)
		_, err := Unpack(outerMD, data, &pbcore.UnmarshalOptions{Allocator: alloc})
		require.Error(t, err, "failAt=%d", failAt)
		assert.True(t, errors.Is(err, pbcore.ErrAllocFailed), "failAt=%d: %v", failAt, err)
		assert.Equal(t, 0, alloc.Live(), "failAt=%d: bytes outstanding after failure", failAt)
	}
}

func TestUnpackTruncatedVarintLeavesNoBytesOutstanding(t *testing.T) {
	// spec.md §8 scenario 6: a field header with no value byte following it
	// (tag 1, varint wire type, then nothing) must fail cleanly, not panic,
	// and a FailingAllocator must report zero bytes outstanding afterward —
	// end to end, not just at the wire.Reader level (see wire/wire_test.go's
	// TestDecodeVarintTruncated for the lower-level check).
	small := desc.NewMessageDescriptor("Truncated", []*desc.FieldDescriptor{
		{Name: "id", Tag: 1, Label: desc.Optional, Type: desc.Int32},
		{Name: "note", Tag: 2, Label: desc.Optional, Type: desc.String},
	}, nil)

	w := newTestWriter()
	w.tag(2, 2)
	w.varint(0x96) // length prefix claims 0x96 bytes, none follow
	data := w.bytes()

	alloc := pbcore.NewFailingAllocator(nil, 1<<30)
	_, err := Unpack(small, data, &pbcore.UnmarshalOptions{Allocator: alloc})
	require.Error(t, err)
	assert.Equal(t, 0, alloc.Live())

	// A bare tag byte for a varint field with nothing after it.
	data2 := []byte{0x08}
	alloc2 := pbcore.NewFailingAllocator(nil, 1<<30)
	_, err = Unpack(small, data2, &pbcore.UnmarshalOptions{Allocator: alloc2})
	require.Error(t, err)
	assert.Equal(t, 0, alloc2.Live())
}

func TestRecursionLimitRejectsDeeplyNestedInput(t *testing.T) {
	// Build a self-referential descriptor (a message whose only field is
	// itself) and encode nesting deeper than MaxDepth.
	var selfMD *desc.MessageDescriptor
	selfMD = desc.NewMessageDescriptor("Self", []*desc.FieldDescriptor{
		{Name: "child", Tag: 1, Label: desc.Optional, Type: desc.Message, MessageType: nil},
	}, func() desc.Record { return New(selfMD) })
	selfMD.Fields[0].MessageType = selfMD // tie the knot

	var body []byte
	for i := 0; i < 5; i++ {
		w := newTestWriter()
		w.tag(1, 2)
		w.lengthPrefixed(body)
		body = w.bytes()
	}

	_, err := Unpack(selfMD, body, &pbcore.UnmarshalOptions{MaxDepth: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pbcore.ErrRecursionLimit))

	// The same input succeeds with a deep-enough limit.
	_, err = Unpack(selfMD, body, &pbcore.UnmarshalOptions{MaxDepth: 10})
	require.NoError(t, err)
}

func TestFreeUnpackedIsSafeOnNil(t *testing.T) {
	assert.NotPanics(t, func() { FreeUnpacked(nil, nil) })
}

func TestFreeUnpackedReleasesExactlyWhatUnpackAllocated(t *testing.T) {
	m := buildSampleOuter(t)
	data := Pack(m)

	tracking := pbcore.NewFailingAllocator(nil, 1<<30) // never fails
	got, err := Unpack(outerMD, data, &pbcore.UnmarshalOptions{Allocator: tracking})
	require.NoError(t, err)
	assert.Greater(t, tracking.Live(), 0)

	FreeUnpacked(got, tracking)
	assert.Equal(t, 0, tracking.Live())
}

// testWriter is a tiny hand-rolled byte builder for constructing exact
// wire-format fixtures in tests, independent of the Writer under test in
// package wire, so these tests don't validate the encoder using itself.
type testWriter struct{ buf []byte }

func newTestWriter() *testWriter { return &testWriter{} }

func (w *testWriter) tag(tag uint32, wt int) *testWriter {
	w.varint(uint64(tag)<<3 | uint64(wt))
	return w
}

func (w *testWriter) varint(v uint64) *testWriter {
	for v >= 0x80 {
		w.buf = append(w.buf, byte(v)|0x80)
		v >>= 7
	}
	w.buf = append(w.buf, byte(v))
	return w
}

func (w *testWriter) lengthPrefixed(b []byte) *testWriter {
	w.varint(uint64(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

func (w *testWriter) bytes() []byte { return w.buf }
