// Package pbcore is the runtime core of a protobuf (proto2/proto3) wire
// format serialization library: given a descriptor for a message type and
// either an in-memory instance or an opaque byte string, it encodes to or
// decodes from the wire format, plus the ancillary descriptor-lookup
// services in the desc subpackage.
//
// The descriptor generator, any RPC transport, and version-string
// reporting sit at the edges of this package (see subpackages desc, wire,
// message, simplebuffer, service, pbversion) rather than in the root
// package, which exists mainly to hold the few types every caller touches:
// the Allocator injected into Unpack, the recoverable error sentinels, and
// precondition failures.
package pbcore

import "github.com/wireproto/pbcore/desc"

// PreconditionError is a programmer error: a bad descriptor magic, a nil
// descriptor, or a descriptor/record size mismatch. It is raised by panic,
// not returned, because — unlike malformed wire input — there is no
// sensible way for a caller to recover from having wired up the engine
// wrong (spec.md §7).
type PreconditionError = desc.PreconditionError
