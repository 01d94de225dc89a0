package pbcore

// DefaultMaxDepth bounds submessage nesting during Unpack unless the
// caller supplies a different UnmarshalOptions.MaxDepth. spec.md §4.5
// names 100 as the default.
const DefaultMaxDepth = 100

// UnmarshalOptions configures a single Unpack call. The zero value (and a
// nil *UnmarshalOptions) is usable: Resolved replaces a zero MaxDepth with
// DefaultMaxDepth and a nil Allocator with DefaultAllocator, so a caller
// cannot accidentally unpack with an unbounded recursion limit.
type UnmarshalOptions struct {
	// Allocator is used for every byte this call retains ownership of. If
	// nil, DefaultAllocator is used.
	Allocator Allocator

	// MaxDepth bounds submessage nesting. If zero, DefaultMaxDepth is used.
	MaxDepth int

	// StrictEnum, if true, rejects enum field values outside the
	// declared set instead of preserving them as raw integers. This is
	// the "strict-decode option" suggested by Design Note "Unknown enum
	// values": the wire format allows any int32 in an enum field, and the
	// default (false) follows that rule, but some callers want early
	// rejection of values their schema doesn't know about.
	StrictEnum bool
}

// resolved returns opts with zero-valued fields replaced by their
// defaults, and is always non-nil.
func (opts *UnmarshalOptions) resolved() *UnmarshalOptions {
	out := UnmarshalOptions{}
	if opts != nil {
		out = *opts
	}
	if out.Allocator == nil {
		out.Allocator = DefaultAllocator
	}
	if out.MaxDepth == 0 {
		out.MaxDepth = DefaultMaxDepth
	}
	return &out
}

// Resolved exposes resolved() to sibling packages (message) without
// exporting the mutable zero-value footgun directly on UnmarshalOptions'
// public API.
func (opts *UnmarshalOptions) Resolved() *UnmarshalOptions { return opts.resolved() }
