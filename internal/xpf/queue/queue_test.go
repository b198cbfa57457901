// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package queue

import (
	"sync"
	sysatomic "sync/atomic"
	"testing"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/andreimuntea/xpfcore/internal/xpf/busylock"
)

// TestS1QueueOrdering is spec.md §8 scenario S1: push A, B, C; pop
// three times; expect A, B, C, then nil.
func TestS1QueueOrdering(t *testing.T) {
	q := New()
	a, b, c := &Node{}, &Node{}, &Node{}
	q.Push(a)
	q.Push(b)
	q.Push(c)

	if got := q.Pop(); got != a {
		t.Fatalf("first pop = %p, want A (%p)", got, a)
	}
	if got := q.Pop(); got != b {
		t.Fatalf("second pop = %p, want B (%p)", got, b)
	}
	if got := q.Pop(); got != c {
		t.Fatalf("third pop = %p, want C (%p)", got, c)
	}
	if got := q.Pop(); got != nil {
		t.Fatalf("fourth pop = %p, want nil", got)
	}
}

// TestS2SingleElementBoundary is spec.md §8 scenario S2.
func TestS2SingleElementBoundary(t *testing.T) {
	q := New()
	a, b := &Node{}, &Node{}

	q.Push(a)
	if got := q.Pop(); got != a {
		t.Fatalf("pop = %p, want A (%p)", got, a)
	}
	assertEmpty(t, q)

	q.Push(b)
	if got := q.Pop(); got != b {
		t.Fatalf("pop = %p, want B (%p)", got, b)
	}
	assertEmpty(t, q)
}

// TestS3Flush is spec.md §8 scenario S3.
func TestS3Flush(t *testing.T) {
	q := New()
	a, b, c := &Node{}, &Node{}, &Node{}

	q.Push(a)
	q.Push(b)

	head := q.Flush()
	var chain []*Node
	for n := head; n != nil; n = n.Next() {
		chain = append(chain, n)
	}
	if len(chain) != 2 || chain[0] != a || chain[1] != b {
		t.Fatalf("Flush chain = %v, want [A, B]", chain)
	}

	q.Push(c)
	if got := q.Pop(); got != c {
		t.Fatalf("pop after flush = %p, want C (%p)", got, c)
	}
}

func assertEmpty(t *testing.T, q *Queue) {
	t.Helper()
	if head := q.head.Load(); head != nil {
		t.Fatalf("head = %p, want nil", head)
	}
	if tail := q.tail.Load(); tail != nil {
		t.Fatalf("tail = %p, want nil", tail)
	}
}

// pausingLocker wraps a real busylock.Locker and blocks the call whose
// 1-indexed ordinal matches pauseBeforeNth just before it forwards to
// the real lock, letting a test interleave a concurrent operation into
// that exact window.
type pausingLocker struct {
	real           busylock.Locker
	pauseBeforeNth int32
	count          int32
	paused         chan struct{}
	proceed        chan struct{}
}

func (p *pausingLocker) LockExclusive() {
	if sysatomic.AddInt32(&p.count, 1) == p.pauseBeforeNth {
		close(p.paused)
		<-p.proceed
	}
	p.real.LockExclusive()
}

func (p *pausingLocker) UnlockExclusive() { p.real.UnlockExclusive() }

// TestPopRevalidatesAfterTailLockAcquisition reproduces the race a
// review flagged: Pop's single-element branch must not commit to
// "queue becomes empty" from a HeadLock-only snapshot of head.next
// taken before TailLock is acquired. A concurrent Push only needs
// TailLock (since Tail is non-nil), so it can append a real node in
// the window between that snapshot and Pop's TailLock acquisition;
// Pop must notice and advance Head to the new node instead of nilling
// out both Head and Tail and losing it.
func TestPopRevalidatesAfterTailLockAcquisition(t *testing.T) {
	tailHook := &pausingLocker{
		real:           busylock.New(),
		pauseBeforeNth: 3, // calls #1 and #2 are Push(a)'s own TailLock acquisitions (empty-queue path)
		paused:         make(chan struct{}),
		proceed:        make(chan struct{}),
	}
	q := &Queue{headLock: busylock.New(), tailLock: tailHook}

	a, b := &Node{}, &Node{}
	q.Push(a)

	popDone := make(chan *Node, 1)
	go func() {
		popDone <- q.Pop()
	}()

	<-tailHook.paused // Pop has read head.next==nil and is about to lock Tail
	q.Push(b)         // appends via the plain TailLock-only fast path
	close(tailHook.proceed)

	if got := <-popDone; got != a {
		t.Fatalf("Pop = %p, want A (%p)", got, a)
	}
	if got := q.Pop(); got != b {
		t.Fatalf("second Pop = %p, want B (%p): node B was lost", got, b)
	}
	assertEmpty(t, q)
}

// TestConcurrentProducersConsumersNoLossNoDuplication is property 2 of
// spec.md §8: for N producers and M consumers, every pushed node is
// popped exactly once.
func TestConcurrentProducersConsumersNoLossNoDuplication(t *testing.T) {
	const producers = 8
	const perProducer = 2000
	const total = producers * perProducer

	q := New()
	nodes := make([]*Node, total)
	for i := range nodes {
		nodes[i] = &Node{}
	}

	seen := make(map[*Node]int)
	var mu sync.Mutex
	var producersDone atomic.Bool

	var g errgroup.Group
	for p := 0; p < producers; p++ {
		p := p
		g.Go(func() error {
			for i := 0; i < perProducer; i++ {
				q.Push(nodes[p*perProducer+i])
			}
			return nil
		})
	}

	const consumers = 8
	var cg errgroup.Group
	for c := 0; c < consumers; c++ {
		cg.Go(func() error {
			for {
				n := q.Pop()
				if n != nil {
					mu.Lock()
					seen[n]++
					mu.Unlock()
					continue
				}
				if producersDone.Load() {
					return nil
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	producersDone.Store(true)
	if err := cg.Wait(); err != nil {
		t.Fatal(err)
	}

	// A consumer may have observed producersDone and an empty queue in
	// the same instant a final push was landing; drain whatever is left.
	for {
		n := q.Pop()
		if n == nil {
			break
		}
		seen[n]++
	}

	if len(seen) != total {
		t.Fatalf("popped %d distinct nodes, want %d", len(seen), total)
	}
	for n, count := range seen {
		if count != 1 {
			t.Fatalf("node %p popped %d times, want 1", n, count)
		}
	}
}
