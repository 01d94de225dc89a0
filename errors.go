package pbcore

import "errors"

// ErrMalformed is the sentinel wrapped by every decode failure rooted in
// untrusted input: truncated data, a bad varint, an unsupported wire type
// outside unknown-field passthrough, a length prefix exceeding the
// remaining bytes, exceeding the recursion limit, or an implausibly large
// packed payload (spec.md §7). Only this and ErrAllocFailed are
// recoverable; both surface as a nil record from Unpack.
var ErrMalformed = errors.New("pbcore: malformed input")

// ErrRecursionLimit is wrapped by ErrMalformed when a message nests more
// deeply than UnmarshalOptions.MaxDepth permits (default 100), guarding
// against adversarially deep input (spec.md §4.5).
var ErrRecursionLimit = errors.New("pbcore: recursion limit exceeded")
