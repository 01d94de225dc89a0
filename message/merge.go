package message

import (
	"fmt"

	"github.com/wireproto/pbcore/desc"
)

// Merge folds src's fields into dst in place: REPEATED fields concatenate,
// non-REPEATED scalar/enum/string/bytes fields follow last-wins (src
// overwrites dst when present), and non-REPEATED MESSAGE fields recurse
// (spec.md §4.5, and §9's resolved Open Question on repeated-occurrence
// semantics for non-repeated submessage fields: merge, not overwrite).
// dst and src must share the same descriptor. Unknown fields from src are
// appended to dst's, in arrival order.
//
// This is both the building block unmarshal.go uses when a non-repeated
// submessage field is encountered more than once in one input, and the
// operation spec.md §8 describes directly: unpack(b1++b2) must equal the
// field-wise merge of unpack(b1) and unpack(b2).
func Merge(dst, src *Message) {
	if dst.md != src.md {
		panic(fmt.Sprintf("message: Merge: descriptor mismatch (%s vs %s)", dst.md.Name, src.md.Name))
	}
	for _, fd := range dst.md.Fields {
		if fd.Label == Repeated {
			vals, _ := src.values[fd.Tag].([]interface{})
			for _, v := range vals {
				dst.AppendRepeated(fd, v)
			}
			continue
		}
		if !src.presence[fd.Tag] {
			continue
		}
		if fd.Type != desc.Message {
			dst.Set(fd, src.values[fd.Tag])
			continue
		}
		srcChild, _ := src.values[fd.Tag].(*Message)
		if srcChild == nil {
			dst.Set(fd, srcChild)
			continue
		}
		if dstChild, ok := dst.values[fd.Tag].(*Message); ok && dst.presence[fd.Tag] && dstChild != nil {
			Merge(dstChild, srcChild)
			continue
		}
		dst.Set(fd, srcChild)
	}
	dst.unknown = append(dst.unknown, src.unknown...)
}
