// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threadpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestEnqueueRunsCallback(t *testing.T) {
	p, err := Create()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Rundown()

	done := make(chan any, 1)
	if err := p.Enqueue(func(arg any) { done <- arg }, func(arg any) {}, 7); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-done:
		if got != 7 {
			t.Fatalf("callback arg = %v, want 7", got)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}

func TestFIFOOrderWithinOneWorker(t *testing.T) {
	p, err := Create(WithInitialQuota(1))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Rundown()

	const n = 200
	order := make(chan int, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		if err := p.Enqueue(func(arg any) {
			order <- arg.(int)
			wg.Done()
		}, func(arg any) { wg.Done() }, i); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	close(order)

	i := 0
	for got := range order {
		if got != i {
			t.Fatalf("execution order[%d] = %d, want %d", i, got, i)
		}
		i++
	}
}

// TestS6RundownCancelsPending is spec.md §8 scenario S6: items enqueued
// but not yet executed when Rundown begins get their rundownCallback
// invoked instead of their userCallback, exactly once.
func TestS6RundownCancelsPending(t *testing.T) {
	p, err := Create(WithInitialQuota(1))
	if err != nil {
		t.Fatal(err)
	}

	var ran, cancelled int32
	var wg sync.WaitGroup

	// Block the single worker so subsequent items queue up behind it.
	block := make(chan struct{})
	wg.Add(1)
	if err := p.Enqueue(func(arg any) {
		<-block
		wg.Done()
	}, func(arg any) { wg.Done() }, nil); err != nil {
		t.Fatal(err)
	}

	const pending = 20
	wg.Add(pending)
	for i := 0; i < pending; i++ {
		if err := p.Enqueue(func(arg any) {
			atomic.AddInt32(&ran, 1)
			wg.Done()
		}, func(arg any) {
			atomic.AddInt32(&cancelled, 1)
			wg.Done()
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	rundownDone := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Rundown()
		close(rundownDone)
	}()
	close(block)
	wg.Wait()
	<-rundownDone

	if ran+cancelled != pending {
		t.Fatalf("ran(%d) + cancelled(%d) != pending(%d)", ran, cancelled, pending)
	}

	if err := p.Enqueue(func(arg any) {}, func(arg any) {}, nil); err == nil {
		t.Fatal("Enqueue after Rundown should fail")
	}
}

func TestConcurrentEnqueueAcrossWorkers(t *testing.T) {
	p, err := Create(WithInitialQuota(4))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Rundown()

	const total = 4000
	var wg sync.WaitGroup
	wg.Add(total)

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < total/8; i++ {
				if err := p.Enqueue(func(arg any) { wg.Done() }, func(arg any) { wg.Done() }, nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	stats := p.Stats()
	if stats.TotalEnqueued != total {
		t.Fatalf("TotalEnqueued = %d, want %d", stats.TotalEnqueued, total)
	}
}

func TestStatsReflectsExecution(t *testing.T) {
	p, err := Create(WithInitialQuota(2))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		if err := p.Enqueue(func(arg any) { wg.Done() }, func(arg any) { wg.Done() }, nil); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	p.Rundown()

	stats := p.Stats()
	if stats.TotalExecuted+stats.TotalCancelled != 5 {
		t.Fatalf("TotalExecuted(%d) + TotalCancelled(%d) != 5", stats.TotalExecuted, stats.TotalCancelled)
	}
	if stats.ThreadCount != 2 {
		t.Fatalf("ThreadCount = %d, want 2", stats.ThreadCount)
	}
}
