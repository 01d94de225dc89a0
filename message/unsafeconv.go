package message

import "unsafe"

// bytesToStringNoCopy reinterprets b as a string without copying it. Used
// only for string-typed field values decoded during Unpack, where b was
// just allocated fresh from an arena (see arena.go): nothing else aliases
// b, so treating it as the string's backing array is safe as long as
// nothing ever mutates b afterward, which a decoded field value never
// does. This keeps the Allocator accounting in FreeUnpacked honest —
// without it, the unavoidable copy inside a plain string(b) conversion
// would orphan the allocator-owned buffer, making it impossible to free
// the right number of bytes back to the same Allocator.
func bytesToStringNoCopy(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// stringToBytesNoCopy recovers the backing array of a string built by
// bytesToStringNoCopy, for FreeUnpacked to hand back to the Allocator. It
// must never be called on a string that didn't originate that way (e.g. a
// caller-assigned Go string literal on a hand-built message) — FreeUnpacked
// is documented as being for Unpack-produced messages only, same
// precondition protobuf-c states for free_unpacked.
func stringToBytesNoCopy(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
