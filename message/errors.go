package message

import "github.com/wireproto/pbcore"

// errMalformedLocal is a package-local shorthand for the root package's
// malformed-input sentinel, so every decode error in this package can be
// tested with errors.Is(err, pbcore.ErrMalformed) regardless of which
// file raised it.
var errMalformedLocal = pbcore.ErrMalformed
