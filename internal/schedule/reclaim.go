package schedule

import (
	"context"
	"runtime"
	"runtime/debug"
)

// Reclaimer frees accelerator memory / forces collection between batches.
// It is an explicit resource handle passed into the scheduler rather than
// ambient global state, so concurrent pipeline runs each reclaim their own
// resources without interfering.
//
// Reclaim is always invoked on the goroutine issuing the ASR batches and
// never concurrently with an in-flight batch call.
type Reclaimer interface {
	Reclaim(ctx context.Context)
}

// ReclaimerFunc adapts a function to the Reclaimer interface.
type ReclaimerFunc func(ctx context.Context)

// Reclaim calls f(ctx).
func (f ReclaimerFunc) Reclaim(ctx context.Context) { f(ctx) }

// RuntimeReclaimer frees process memory via the Go runtime. It is the
// default reclamation hook when the ASR backend holds no accelerator state
// of its own (the whisper.cpp backend allocates per-context and benefits
// from returning freed pages to the OS between batches).
type RuntimeReclaimer struct{}

// Reclaim forces a garbage collection cycle and returns as much memory to
// the operating system as possible.
func (RuntimeReclaimer) Reclaim(context.Context) {
	runtime.GC()
	debug.FreeOSMemory()
}

// NopReclaimer ignores reclamation signals.
type NopReclaimer struct{}

// Reclaim does nothing.
func (NopReclaimer) Reclaim(context.Context) {}
