// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threadpool

import (
	"go.uber.org/atomic"

	"github.com/andreimuntea/xpfcore/internal/xpf/queue"
	"github.com/andreimuntea/xpfcore/internal/xpf/signal"
	"github.com/andreimuntea/xpfcore/internal/xpf/thread"
)

// workerContext is spec.md §3's thread context: a thread handle, an
// auto-reset wakeup Signal, a FIFO work queue, an owner back-pointer,
// and a shutdown flag. depth is a Go-specific addition — queue.Queue
// has no size accessor, so Enqueue's overload check needs its own
// approximate counter (spec.md §5 already tolerates a loose bound on
// comparable counters, e.g. the lookaside cached-count).
type workerContext struct {
	id       int
	pool     *ThreadPool
	wakeup   *signal.Signal
	queue    *queue.Queue
	thread   *thread.Thread
	shutdown atomic.Bool
	depth    atomic.Int64
}

func newWorkerContext(id int, pool *ThreadPool) (*workerContext, error) {
	wakeup, err := signal.New(false)
	if err != nil {
		return nil, err
	}
	wc := &workerContext{
		id:     id,
		pool:   pool,
		wakeup: wakeup,
		queue:  queue.New(),
		thread: thread.New(),
	}
	if err := wc.thread.Run(wc.run, nil); err != nil {
		return nil, err
	}
	return wc, nil
}

func (wc *workerContext) push(item *workItem) {
	wc.queue.Push(&item.node)
	wc.depth.Inc()
	wc.wakeup.Set()
}

func (wc *workerContext) run(_ any) {
	for {
		wc.wakeup.Wait(0)
		if wc.shutdown.Load() {
			break
		}
		wc.drain(false)
	}
	wc.drain(true)
}

// drain flushes the work queue and runs each item in FIFO order,
// invoking userCallback normally or rundownCallback when cancel is
// true (the post-shutdown path of spec.md §4.7).
func (wc *workerContext) drain(cancel bool) {
	head := wc.queue.Flush()
	wc.depth.Store(0)
	for n := head; n != nil; {
		next := n.Next()
		item := workItemFromNode(n)
		wc.pool.recordExecution(cancel)
		if cancel {
			item.rundownCallback(item.arg)
		} else {
			item.userCallback(item.arg)
		}
		wc.pool.items.put(item)
		n = next
	}
}
