package message

import (
	"fmt"

	"github.com/wireproto/pbcore/desc"
)

// Check reports whether every REQUIRED field is present, recursively
// through submessages, and no REQUIRED submessage pointer is absent
// (spec.md §4.6). It does not validate enum membership. A message missing
// a required field decodes successfully from Unpack; only Check surfaces
// the violation, and the caller decides what to do about it.
func (m *Message) Check() bool {
	return m.firstMissingRequired() == nil
}

// CheckError is like Check but returns a descriptive error identifying
// the first missing required field found (by depth-first, tag order),
// rather than a single true/false.
func (m *Message) CheckError() error {
	if fd := m.firstMissingRequired(); fd != nil {
		return fmt.Errorf("pbcore: required field %q (tag %d) of %s is not set", fd.Name, fd.Tag, m.md.Name)
	}
	return nil
}

func (m *Message) firstMissingRequired() *desc.FieldDescriptor {
	for _, fd := range m.md.Fields {
		if fd.Label == desc.Required {
			if !m.presence[fd.Tag] {
				return fd
			}
			if fd.Type == desc.Message {
				child, _ := m.values[fd.Tag].(*Message)
				if child == nil {
					return fd
				}
				if missing := child.firstMissingRequired(); missing != nil {
					return missing
				}
			}
			continue
		}
		// A submessage field being itself OPTIONAL or REPEATED doesn't
		// exempt its own required subfields: once present, it is checked
		// the same as any other message instance.
		if fd.Type != desc.Message {
			continue
		}
		if fd.Label == desc.Repeated {
			vals, _ := m.values[fd.Tag].([]interface{})
			for _, v := range vals {
				if child, _ := v.(*Message); child != nil {
					if missing := child.firstMissingRequired(); missing != nil {
						return missing
					}
				}
			}
			continue
		}
		if !m.presence[fd.Tag] {
			continue
		}
		if child, _ := m.values[fd.Tag].(*Message); child != nil {
			if missing := child.firstMissingRequired(); missing != nil {
				return missing
			}
		}
	}
	return nil
}
