// Package service supplies the generated-initializer shape protobuf-c's
// header names protobuf_c_service_generated_init /
// protobuf_c_service_invoke_internal: a small vtable binding a
// ServiceDescriptor to the method bodies a generator would emit. spec.md
// §6 describes the service boundary only at the interface level ("a
// generated initializer that sets up the vtable") and places RPC
// transport itself out of scope; this package is exactly that boundary
// and nothing past it — no networking, no framing, no server loop.
package service

import (
	"context"
	"fmt"

	"github.com/wireproto/pbcore/desc"
	"github.com/wireproto/pbcore/message"
)

// Closure receives one method's result, the Go shape of protobuf-c's
// ProtobufCClosure: the C API is callback-based because C has no single
// blocking-call convention that works for every transport; Go's channel
// and context idioms make the blocking case trivial; Closure is kept to
// support fire-and-forget and streaming transports symmetrically with the
// original.
type Closure func(output *message.Message)

// MethodHandler is one method's generated body: decode the already-
// type-checked input, do the work, and report the result (or an error)
// through closure exactly once.
type MethodHandler func(ctx context.Context, input *message.Message, closure Closure) error

// Service is the capability a generated service vtable exposes: enough
// for a transport-specific server (entirely outside this package's scope)
// to dispatch an incoming call by method index and invoke the matching
// generated handler.
type Service interface {
	// Descriptor returns the ServiceDescriptor this vtable was built from.
	Descriptor() *desc.ServiceDescriptor
	// Invoke dispatches to the handler at methodIndex. It panics with a
	// PreconditionError-style message if methodIndex is out of range —
	// the caller is expected to have already resolved the index via
	// ServiceDescriptor.FindMethodByName, same as protobuf-c's internal
	// invoke trusts its caller to pass a valid index.
	Invoke(ctx context.Context, methodIndex int, input *message.Message, closure Closure) error
	// Destroy releases any resources the vtable holds. Safe to call more
	// than once.
	Destroy()
}

type generated struct {
	descriptor *desc.ServiceDescriptor
	handlers   []MethodHandler
	destroy    func()
	destroyed  bool
}

// NewGenerated builds a Service vtable from sd and handlers, one per
// method, in the same order as sd.Methods — the call a generated
// <Service>_init function would make. destroy may be nil if the service
// holds nothing that needs releasing.
//
// NewGenerated panics (a precondition failure, not a recoverable error) if
// len(handlers) != len(sd.Methods): a generator that emits a vtable
// mismatched with its own descriptor is a build-time bug, not a runtime
// one.
func NewGenerated(sd *desc.ServiceDescriptor, handlers []MethodHandler, destroy func()) Service {
	sd.CheckMagic()
	if len(handlers) != len(sd.Methods) {
		panic(fmt.Sprintf("service: %s: %d handlers for %d methods", sd.Name, len(handlers), len(sd.Methods)))
	}
	return &generated{descriptor: sd, handlers: handlers, destroy: destroy}
}

func (g *generated) Descriptor() *desc.ServiceDescriptor { return g.descriptor }

func (g *generated) Invoke(ctx context.Context, methodIndex int, input *message.Message, closure Closure) error {
	if methodIndex < 0 || methodIndex >= len(g.handlers) {
		panic(fmt.Sprintf("service: %s: method index %d out of range [0,%d)", g.descriptor.Name, methodIndex, len(g.handlers)))
	}
	return g.handlers[methodIndex](ctx, input, closure)
}

func (g *generated) Destroy() {
	if g.destroyed || g.destroy == nil {
		return
	}
	g.destroyed = true
	g.destroy()
}
