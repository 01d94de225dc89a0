package message

import (
	"errors"
	"fmt"

	"github.com/wireproto/pbcore"
)

// arena tracks every byte slice Unpack has requested from the caller's
// Allocator during a single top-level call (including recursively, for
// nested submessages), so that any error anywhere in the parse can free
// everything allocated so far in one pass. This is what lets a
// pbcore.FailingAllocator-based test observe zero bytes outstanding after
// a failed Unpack (spec.md §7, §8).
type arena struct {
	allocator pbcore.Allocator
	bufs      [][]byte
}

func newArena(allocator pbcore.Allocator) *arena {
	return &arena{allocator: allocator}
}

// alloc requests size bytes from the arena's Allocator and tracks the
// result for freeAll. Any allocator-reported failure is normalized to
// wrap pbcore.ErrAllocFailed, so callers can match on that sentinel
// regardless of which concrete Allocator is in use.
func (a *arena) alloc(size int) ([]byte, error) {
	b, err := a.allocator.Alloc(size)
	if err != nil {
		if !errors.Is(err, pbcore.ErrAllocFailed) {
			err = fmt.Errorf("%w: %v", pbcore.ErrAllocFailed, err)
		}
		return nil, err
	}
	a.bufs = append(a.bufs, b)
	return b, nil
}

// freeAll releases every buffer this arena has allocated, in reverse
// allocation order, and forgets them. Called on any error path out of
// Unpack; never called on success, since ownership of the allocated bytes
// passes to the returned Message at that point.
func (a *arena) freeAll() {
	for i := len(a.bufs) - 1; i >= 0; i-- {
		a.allocator.Free(a.bufs[i])
	}
	a.bufs = nil
}
