// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package platform is the host hook surface the rest of xpfcore
// consumes: allocate, sleep, yield, current time, random identifier
// generation, panic-on-invariant-violation, the sync-dispatch
// predicate, and the critical-region bracket. There is no free,
// zero-fill or copy hook: released blocks are left to the Go garbage
// collector.
//
// Every hook has a Go-native default (allocate via make([]byte, n),
// sleep via time.Sleep, yield via runtime.Gosched, panic via panic).
// A kernel-like embedder that cannot use those defaults overrides the
// corresponding Set* function at process start, before any other
// xpfcore package is used; the hooks are plain package-level function
// variables rather than an interface threaded through every
// constructor, because spec.md treats them as process-wide facts
// about the host, not per-object configuration.
package platform

import (
	"crypto/rand"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// Critical selects the underlying allocator tier: Critical pools must
// not fail in steady state (they retry, spec.md §4.3); Normal pools
// are best-effort.
type Critical bool

const (
	Normal       Critical = false
	CriticalTier Critical = true
)

// allocFunc allocates n bytes, or returns nil on failure.
var allocFunc = func(n uint32, _ Critical) []byte {
	return make([]byte, n)
}

// SetAllocator overrides the block allocation hook.
func SetAllocator(f func(size uint32, tier Critical) []byte) {
	allocFunc = f
}

// Alloc allocates size bytes from the tier selected by critical.
func Alloc(size uint32, critical Critical) []byte {
	return allocFunc(size, critical)
}

// sleepFunc is the bounded-retry backoff hook used by the critical
// lookaside tier (spec.md §7: "Allocator retry is bounded... only for
// the critical tier").
var sleepFunc = time.Sleep

// SetSleep overrides the sleep hook.
func SetSleep(f func(time.Duration)) { sleepFunc = f }

// Sleep blocks the calling goroutine for d.
func Sleep(d time.Duration) { sleepFunc(d) }

// yieldFunc is the spin-retry yield hook used by BusyLock and
// RundownProtection.
var yieldFunc = runtime.Gosched

// SetYield overrides the yield hook.
func SetYield(f func()) { yieldFunc = f }

// Yield gives other goroutines a chance to run before the calling
// goroutine retries a spin loop.
func Yield() { yieldFunc() }

// nowFunc returns the current time in 100-nanosecond ticks since the
// Unix epoch, matching spec.md §6's "current-time in 100-ns ticks
// since a fixed epoch".
var nowFunc = func() int64 {
	return time.Now().UnixNano() / 100
}

// SetNow overrides the time hook.
func SetNow(f func() int64) { nowFunc = f }

// Now returns the current time in 100ns ticks since the Unix epoch.
func Now() int64 { return nowFunc() }

// newUUIDFunc generates a fresh, system-random 128-bit identifier.
var newUUIDFunc = func() uuid.UUID {
	return uuid.Must(uuid.NewRandomFromReader(rand.Reader))
}

// SetUUIDSource overrides the UUID generation hook (tests use this to
// get deterministic identifiers).
func SetUUIDSource(f func() uuid.UUID) { newUUIDFunc = f }

// NewUUID generates a fresh listener/registration identifier.
func NewUUID() uuid.UUID { return newUUIDFunc() }

// panicFunc is invoked on invariant violations: double free, atomic
// counter underflow (re-enqueue of an already-linked queue node is not
// detected, so it never reaches this hook). These are fatal
// per spec.md §7 ("the system calls panic and terminates the process").
var panicFunc = func(msg string) { panic(msg) }

// SetPanicHook overrides the invariant-violation hook. Kernel-like
// embedders that cannot unwind a Go panic the normal way can install a
// hook that halts the host instead.
func SetPanicHook(f func(msg string)) { panicFunc = f }

// Panic reports an invariant violation. It never returns.
func Panic(msg string) { panicFunc(msg) }

// syncDispatchAllowed answers spec.md §9's open question: "the
// condition under which auto-mode downgrades from sync to async
// depends on a host-defined interrupt level predicate; on non-kernel
// hosts this predicate is constant-true."
var syncDispatchAllowed = func() bool { return true }

// SetSyncDispatchPredicate overrides the interrupt-level predicate
// consulted by EventBus.Dispatch's Auto mode.
func SetSyncDispatchPredicate(f func() bool) { syncDispatchAllowed = f }

// SyncDispatchAllowed reports whether the caller's current execution
// context permits an inline (synchronous) event dispatch.
func SyncDispatchAllowed() bool { return syncDispatchAllowed() }

// EnterCriticalRegion and ExitCriticalRegion bracket the "critical
// region" concept of spec.md's Design Notes §9: on kernel-like hosts a
// lock guard raises the current thread's scheduling affinity/
// alertability for its duration. On ordinary hosts both are no-ops.
var (
	enterCriticalRegion = func() {}
	exitCriticalRegion  = func() {}
)

// SetCriticalRegionHooks overrides the critical-region bracket. Both
// hooks must be safe to call from any goroutine and must not block.
func SetCriticalRegionHooks(enter, exit func()) {
	if enter != nil {
		enterCriticalRegion = enter
	}
	if exit != nil {
		exitCriticalRegion = exit
	}
}

// EnterCriticalRegion is called when a lock or rundown guard is
// constructed.
func EnterCriticalRegion() { enterCriticalRegion() }

// ExitCriticalRegion is called when a lock or rundown guard is
// released.
func ExitCriticalRegion() { exitCriticalRegion() }
