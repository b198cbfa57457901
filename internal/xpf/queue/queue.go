// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package queue implements the sentinel-free, two-lock intrusive FIFO
// of spec.md §4.2: a Michael-Scott-style queue with separate head and
// tail spinlocks and no sentinel node.
//
// Unlike the classic sentinel-bearing variant, an empty queue here is
// genuinely (head=nil, tail=nil), which means the push and pop paths
// occasionally need to cross from one lock into the other to fix up
// the opposite end during the empty <-> single-element transitions.
// Every site that holds both locks (Push on an empty queue, Pop on a
// single-element queue, Flush) takes HeadLock before TailLock, so the
// two locks never form a cycle.
package queue

import (
	"go.uber.org/atomic"

	"github.com/andreimuntea/xpfcore/internal/xpf/busylock"
	"github.com/andreimuntea/xpfcore/internal/xpf/platform"
)

// Node is the intrusive list cell embedded as the first field of any
// record enqueued in a Queue (spec.md §3's "intrusive list node").
// Ownership of a Node transfers atomically via Push/Pop/Flush: once
// pushed, the caller must not touch it again until it comes back out
// of a Pop or a Flush walk.
type Node struct {
	next atomic.Pointer[Node]
}

// Next returns the node following n in a chain returned by Flush, or
// nil at the end of the chain.
func (n *Node) Next() *Node {
	if n == nil {
		return nil
	}
	return n.next.Load()
}

// Queue is a sentinel-free two-lock intrusive FIFO.
type Queue struct {
	head     atomic.Pointer[Node]
	tail     atomic.Pointer[Node]
	headLock busylock.Locker
	tailLock busylock.Locker
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{
		headLock: busylock.New(),
		tailLock: busylock.New(),
	}
}

// Push appends node to the tail of the queue. Pushing a node that is
// already linked into a queue (its next pointer in a non-terminal
// state reachable from some head) is a caller bug and an invariant
// violation; Push does not attempt to detect it (the spec leaves this
// to the caller, and checking would require a full reachability scan)
// but does reset node's next pointer, which is sufficient to catch the
// common "pushed twice in a row with nothing popping it" mistake in
// tests that inspect next after the fact.
func (q *Queue) Push(node *Node) {
	if node == nil {
		platform.Panic("queue: Push(nil)")
	}
	node.next.Store(nil)

	g := busylock.NewExclusiveGuard(q.tailLock)
	tail := q.tail.Load()
	if tail == nil {
		// The queue looked empty, so Head must be set as well. Drop
		// TailLock and retake both locks HeadLock first, the order Pop
		// and Flush use, then re-read Tail: a concurrent Push may have
		// filled the queue in between.
		g.Release()
		hg := busylock.NewExclusiveGuard(q.headLock)
		defer hg.Release()
		g = busylock.NewExclusiveGuard(q.tailLock)
		tail = q.tail.Load()
	}
	defer g.Release()

	if tail == nil {
		q.head.Store(node)
		q.tail.Store(node)
		return
	}

	tail.next.Store(node)
	q.tail.Store(node)
}

// Pop removes and returns the node at the head of the queue, or nil
// if the queue is empty.
func (q *Queue) Pop() *Node {
	g := busylock.NewExclusiveGuard(q.headLock)
	defer g.Release()

	head := q.head.Load()
	if head == nil {
		return nil
	}

	next := head.next.Load()
	if next == nil {
		// Single-element queue, as far as the HeadLock-only snapshot
		// above shows. We must also clear Tail, which requires
		// TailLock. Pop always takes HeadLock first and TailLock
		// second here, matching Flush's order, per spec.md's Design
		// Notes §9 discipline.
		tg := busylock.NewExclusiveGuard(q.tailLock)
		// A concurrent Push only needs TailLock (Tail was non-nil, so
		// it takes the plain-append branch) and can land in the
		// window between the Load above and this TailLock acquisition.
		// Re-validate head.next now that both locks are held before
		// committing to "queue becomes empty": if a push snuck in,
		// fall back to the normal single-node-advance path instead of
		// wiping out the node it just linked.
		if n := head.next.Load(); n != nil {
			q.head.Store(n)
			tg.Release()
			return head
		}
		q.head.Store(nil)
		q.tail.Store(nil)
		tg.Release()
		return head
	}

	q.head.Store(next)
	return head
}

// Flush atomically detaches the entire chain of unpopped nodes and
// resets the queue to empty, returning the former head. The caller
// walks the chain with Node.Next.
func (q *Queue) Flush() *Node {
	hg := busylock.NewExclusiveGuard(q.headLock)
	defer hg.Release()
	tg := busylock.NewExclusiveGuard(q.tailLock)
	defer tg.Release()

	head := q.head.Load()
	q.head.Store(nil)
	q.tail.Store(nil)
	return head
}
