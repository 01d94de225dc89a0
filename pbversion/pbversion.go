// Package pbversion reports this module's runtime version, the Go
// counterpart of protobuf-c's protobuf_c_version / protobuf_c_version_number
// functions. Kept as a minimal, independent package (rather than a couple
// of functions on the pbcore root) since that is exactly the shape the
// header exposes it in: a version query that has nothing to do with
// encode/decode and every caller can import on its own.
package pbversion

import "fmt"

const (
	major = 1
	minor = 0
	patch = 0
)

// String returns the human-readable version, e.g. "1.0.0".
func String() string {
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}

// Number returns the version packed the way protobuf_c_version_number
// does: major*1e6 + minor*1e3 + patch, so callers can compare versions
// numerically without parsing String's output.
func Number() int {
	return major*1_000_000 + minor*1_000 + patch
}
