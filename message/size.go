package message

import (
	"github.com/wireproto/pbcore/desc"
	"github.com/wireproto/pbcore/wire"
)

// GetPackedSize returns the exact number of bytes Pack(m) will write. This
// is an identity the sizing and pack engines must maintain (spec.md
// §4.3): callers size a buffer once with this function and then fill it
// with Pack, without ever re-deriving the size mid-write.
func GetPackedSize(m *Message) int {
	m.md.CheckMagic()
	total := 0
	for _, fd := range m.md.Fields {
		total += fieldSize(m, fd)
	}
	for _, uf := range m.unknown {
		total += wire.SizeTag(uf.Tag) + unknownFieldValueSize(uf)
	}
	return total
}

func unknownFieldValueSize(uf UnknownField) int {
	switch uf.WireType {
	case wire.LengthPrefixed:
		return wire.SizeVarint(uint64(len(uf.Data))) + len(uf.Data)
	default:
		return len(uf.Data)
	}
}

// fieldSize computes one field's contribution, including its own key(s).
// REQUIRED fields that are absent size as zero — sizing treats them the
// same as OPTIONAL-absent; Check() is what surfaces the violation
// (spec.md §4.3).
func fieldSize(m *Message, fd *desc.FieldDescriptor) int {
	if fd.Label == desc.Repeated {
		return repeatedFieldSize(m, fd)
	}
	val, present := m.Get(fd)
	if !present {
		return 0
	}
	return singleFieldSize(fd, val)
}

func singleFieldSize(fd *desc.FieldDescriptor, val interface{}) int {
	keySize := wire.SizeTag(fd.Tag)
	if fd.Type == desc.Message {
		child := val.(*Message)
		if child == nil {
			return 0
		}
		bodySize := GetPackedSize(child)
		return keySize + wire.SizeVarint(uint64(bodySize)) + bodySize
	}
	return keySize + scalarSize(fd, val)
}

func repeatedFieldSize(m *Message, fd *desc.FieldDescriptor) int {
	vals, _ := m.values[fd.Tag].([]interface{})
	if len(vals) == 0 {
		return 0 // packed repetition of zero elements emits nothing at all
	}
	if fd.Packed() {
		bodySize := 0
		for _, v := range vals {
			bodySize += scalarSize(fd, v)
		}
		return wire.SizeTag(fd.Tag) + wire.SizeVarint(uint64(bodySize)) + bodySize
	}
	total := 0
	for _, v := range vals {
		total += singleFieldSize(fd, v)
	}
	return total
}
