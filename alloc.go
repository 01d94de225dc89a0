package pbcore

import (
	"errors"
	"fmt"
)

// ErrAllocFailed is returned (wrapped) by Unpack when the injected
// Allocator refuses a request. This is the one allocation-related failure
// spec.md §7 calls recoverable: it surfaces as a nil record, with every
// byte allocated so far during that call released back to the same
// Allocator before the error returns.
var ErrAllocFailed = errors.New("pbcore: allocation failed")

// Allocator is the pair of alloc/free operations threaded explicitly
// through every Unpack call (spec.md §5, Design Note "Allocator injection
// vs. global allocator"). Every byte Unpack retains ownership of — string
// and bytes field backing arrays, and unknown-field raw spans — is
// requested from this Allocator, and released back to it, one for one,
// using Free. Unpack never mixes allocators.
//
// Repeated-element slices and child *message.Message records are ordinary
// Go allocations managed by the garbage collector rather than routed
// through Allocator: unlike the protobuf-c runtime this design is modeled
// on, those values have no manual lifetime to track (see DESIGN.md for the
// rationale). Allocator exists for the byte buffers whose ownership a
// caller-supplied pooling allocator might actually want to observe.
type Allocator interface {
	// Alloc returns a new, zeroed byte slice of the given size, or an
	// error if the allocator refuses the request.
	Alloc(size int) ([]byte, error)
	// Free releases a slice previously returned by Alloc. It must be a
	// no-op on nil.
	Free(b []byte)
}

// defaultAllocator routes to the Go heap via make(), matching protobuf-c's
// "process-wide default allocator" except that Free is a no-op: the
// garbage collector reclaims the backing array once nothing references it
// and Unpack's own error-path bookkeeping (the "arena" in message.Unpack)
// is what spec.md's leak tests actually exercise, by using a counting
// Allocator instead of this one.
type defaultAllocator struct{}

func (defaultAllocator) Alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (defaultAllocator) Free([]byte) {}

// DefaultAllocator is the process-wide default, used whenever Unpack is
// called with a nil Allocator.
var DefaultAllocator Allocator = defaultAllocator{}

// FailingAllocator wraps another Allocator and fails the K-th call to
// Alloc (1-indexed), then every call after it. This is the harness
// spec.md §8's robustness property calls for: "A failing allocator at the
// k-th allocation must leave zero bytes outstanding." Live, the count of
// outstanding (allocated-but-not-yet-freed) byte slices, lets a test
// assert exactly that.
type FailingAllocator struct {
	Underlying Allocator
	FailAt     int

	calls int
	live  int
}

// NewFailingAllocator wraps underlying (DefaultAllocator if nil), failing
// the failAt'th call to Alloc.
func NewFailingAllocator(underlying Allocator, failAt int) *FailingAllocator {
	if underlying == nil {
		underlying = DefaultAllocator
	}
	return &FailingAllocator{Underlying: underlying, FailAt: failAt}
}

func (f *FailingAllocator) Alloc(size int) ([]byte, error) {
	f.calls++
	if f.calls >= f.FailAt {
		return nil, fmt.Errorf("%w: failing allocator refused call %d", ErrAllocFailed, f.calls)
	}
	b, err := f.Underlying.Alloc(size)
	if err != nil {
		return nil, err
	}
	f.live++
	return b, nil
}

func (f *FailingAllocator) Free(b []byte) {
	if b == nil {
		return
	}
	f.live--
	f.Underlying.Free(b)
}

// Live returns the number of allocations made and not yet freed. A
// correct Unpack implementation leaves this at zero whenever it returns
// an error.
func (f *FailingAllocator) Live() int { return f.live }

// Calls returns the total number of times Alloc was invoked, including
// the failing call and anything after it.
func (f *FailingAllocator) Calls() int { return f.calls }
