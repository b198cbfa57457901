// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lookaside implements the bounded, same-size block cache of
// spec.md §4.3: a slab-like allocator that recycles fixed-size blocks
// through a queue.Queue instead of round-tripping through the host
// allocator on every Allocate/Free pair.
//
// The C++ original reinterprets a cached block's leading bytes as the
// queue node while the block is idle, and as opaque user memory while
// it is leased — a single region aliased two ways. Go's type system
// makes that aliasing both unsafe and unnecessary: cachedBlock instead
// carries the queue.Node and the user payload as sibling fields, and
// recovers the wrapper from a bare *queue.Node popped off the
// free-list via the node's address (its node field is first, so the
// wrapper's address and the node's address coincide) — the "object-
// pointer-plus-offset convention" spec.md's Design Notes §9 calls out
// as equivalent to true field aliasing.
package lookaside

import (
	"sync"
	"time"
	"unsafe"

	"go.uber.org/atomic"

	"github.com/andreimuntea/xpfcore/internal/xpf/platform"
	"github.com/andreimuntea/xpfcore/internal/xpf/queue"
	"github.com/andreimuntea/xpfcore/internal/xpf/status"
)

const (
	criticalRetryAttempts       = 4
	criticalRetryBackoff        = 2 * time.Millisecond
	maxElementsFloor      int64 = 5
	cacheBudgetBytes      int64 = 1 << 20
)

// cachedBlock is the wrapper pushed onto the free-list while idle. Its
// node field must remain first so blockFromNode's pointer arithmetic
// is valid.
type cachedBlock struct {
	node queue.Node
	data []byte
}

func blockFromNode(n *queue.Node) *cachedBlock {
	return (*cachedBlock)(unsafe.Pointer(n))
}

func blockKey(data []byte) uintptr {
	return uintptr(unsafe.Pointer(&data[0]))
}

// Lookaside is a bounded cache of same-sized blocks.
type Lookaside struct {
	elementSize uint32
	critical    platform.Critical
	maxElements int64

	cached   atomic.Int64
	freeList *queue.Queue

	mu   sync.Mutex
	live map[uintptr]*cachedBlock // leased blocks, keyed by data pointer
}

// Option configures a Lookaside at construction.
type Option func(*Lookaside)

// WithMaxElements overrides the default MaxElements = max(5, 1MiB /
// ElementSize) bound on cached blocks.
func WithMaxElements(n int64) Option {
	return func(l *Lookaside) { l.maxElements = n }
}

// nodeSize is sizeof(queue.Node) in the spec's terms: the minimum
// block size a cached entry must be able to carry once reinterpreted
// as a node. In this Go realization the node and the payload never
// share storage (see package doc), so this floor exists only to keep
// ElementSize semantics aligned with spec.md §3 for callers porting
// C++ call sites that relied on it.
var nodeSize = uint32(unsafe.Sizeof(queue.Node{}))

// New creates a Lookaside for blocks of at most elementSize bytes.
// critical selects the underlying allocator tier: true means
// allocation failures are retried a small bounded number of times with
// brief sleeps before giving up (spec.md §4.3, §7).
func New(elementSize uint32, critical bool, opts ...Option) (*Lookaside, error) {
	if elementSize < nodeSize {
		elementSize = nodeSize
	}

	l := &Lookaside{
		elementSize: elementSize,
		critical:    platform.Critical(critical),
		freeList:    queue.New(),
		live:        make(map[uintptr]*cachedBlock),
	}
	l.maxElements = maxElementsFloor
	if budget := cacheBudgetBytes / int64(elementSize); budget > l.maxElements {
		l.maxElements = budget
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// ElementSize returns the configured (possibly bumped-up) block size.
func (l *Lookaside) ElementSize() uint32 { return l.elementSize }

// MaxElements returns the configured cached-block bound.
func (l *Lookaside) MaxElements() int64 { return l.maxElements }

// CachedCount returns the current number of idle, cached blocks. It is
// intentionally loose under concurrent Allocate/Free (spec.md §5), so
// tests should only rely on it at quiescence.
func (l *Lookaside) CachedCount() int64 { return l.cached.Load() }

// Allocate returns a block of at least requestedSize bytes, or
// status.InvalidParameter if requestedSize exceeds ElementSize.
func (l *Lookaside) Allocate(requestedSize uint32) ([]byte, error) {
	if requestedSize > l.elementSize {
		return nil, status.InvalidParameter
	}

	if n := l.freeList.Pop(); n != nil {
		l.cached.Dec()
		cb := blockFromNode(n)
		l.track(cb)
		return cb.data, nil
	}

	data, err := l.allocateFresh()
	if err != nil {
		return nil, err
	}
	cb := &cachedBlock{data: data}
	l.track(cb)
	return data, nil
}

func (l *Lookaside) allocateFresh() ([]byte, error) {
	if data := platform.Alloc(l.elementSize, l.critical); data != nil {
		return data, nil
	}
	if l.critical != platform.CriticalTier {
		return nil, status.OutOfMemory
	}
	for attempt := 0; attempt < criticalRetryAttempts; attempt++ {
		platform.Sleep(criticalRetryBackoff)
		if data := platform.Alloc(l.elementSize, l.critical); data != nil {
			return data, nil
		}
	}
	return nil, status.OutOfMemory
}

func (l *Lookaside) track(cb *cachedBlock) {
	l.mu.Lock()
	l.live[blockKey(cb.data)] = cb
	l.mu.Unlock()
}

// Free returns *block to the cache (or, once the cache is full, drops
// it for the Go garbage collector to reclaim) and clears *block to nil
// so a use-after-free shows up immediately as a nil-slice access.
//
// Freeing a block not currently leased from this Lookaside — a double
// free, or a pointer from a different allocator entirely — is an
// invariant violation and panics via platform.Panic, per spec.md §7.
func (l *Lookaside) Free(block *[]byte) error {
	if block == nil || *block == nil {
		return status.InvalidParameter
	}

	key := blockKey(*block)
	l.mu.Lock()
	cb, ok := l.live[key]
	if ok {
		delete(l.live, key)
	}
	l.mu.Unlock()

	if !ok {
		platform.Panic("lookaside: Free of an untracked block (double free or foreign pointer)")
	}

	*block = nil

	if l.cached.Load() < l.maxElements {
		l.cached.Inc()
		l.freeList.Push(&cb.node)
	}
	return nil
}

// Close flushes every cached block, returning the cached-count to
// zero. In-flight leased blocks are unaffected; callers must Free them
// first (or let them leak, same as the C++ original's reliance on
// caller discipline).
func (l *Lookaside) Close() error {
	var drained int64
	for n := l.freeList.Flush(); n != nil; n = n.Next() {
		drained++
	}
	l.cached.Sub(drained)
	return nil
}
