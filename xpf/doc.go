// Package xpf provides the public entry point for xpfcore: a small
// set of cross-platform concurrency and resource-management
// primitives — a spinlock, a two-lock FIFO queue, a drain-and-block
// reference counter, a recycling block allocator, a manual/auto-reset
// event, a one-shot goroutine wrapper, a round-robin worker pool, and
// an event bus — designed for hosts where allocation can fail and
// teardown must be provably race-free, not just convenient for
// application code.
//
// # Quick Start
//
// Most callers only need the thread pool and event bus; the lower-level
// primitives (BusyLock, Queue, Rundown, Lookaside) are
// exported for embedders building their own subsystems on the same
// foundation:
//
//	pool, err := xpf.NewThreadPool()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Rundown()
//
//	bus, err := xpf.NewEventBus(eventbus.WithThreadPoolOptions(threadpool.WithInitialQuota(4)))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer bus.Rundown()
//
// # Design
//
// Every subsystem that tears down cooperates through
// internal/xpf/rundown's acquire/wait-for-release discipline: once a
// subsystem's Rundown method returns, no callback it owns can start or
// still be in progress. Fixed-size block allocations (such as the
// event bus's async envelopes) route through internal/xpf/lookaside,
// and the thread pool recycles its work items through a bounded cache
// of the same shape, so embedders on constrained hosts get predictable,
// boundedly-cached reuse on those paths. Other records (listener
// records, worker contexts) are ordinary Go allocations.
//
// # Links
//
// Design rationale and the full component-by-component specification
// live in this module's SPEC_FULL.md and DESIGN.md.
package xpf
