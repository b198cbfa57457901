// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package threadpool implements the round-robin work-item dispatcher
// of spec.md §4.7: a pool of worker goroutines, each with its own
// queue.Queue and wakeup signal.Signal, fed by Enqueue and torn down
// by Rundown with at-most-once execution per item.
package threadpool

import (
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/andreimuntea/xpfcore/internal/xpf/busylock"
	"github.com/andreimuntea/xpfcore/internal/xpf/rundown"
	"github.com/andreimuntea/xpfcore/internal/xpf/status"
)

// ThreadPool is a round-robin dispatcher of work items onto worker
// goroutines.
type ThreadPool struct {
	cfg     config
	rundown *rundown.Rundown
	items   *itemPool

	workersLock *busylock.BusyLock
	workers     []*workerContext
	roundRobin  atomic.Uint64

	totalEnqueued  atomic.Int64
	totalExecuted  atomic.Int64
	totalCancelled atomic.Int64
}

// Stats is in-process telemetry over a ThreadPool's activity. It adds
// no metrics-export pipeline; it is a supplement over the original's
// silent counters (see DESIGN.md).
type Stats struct {
	ThreadCount    int64
	TotalEnqueued  int64
	TotalExecuted  int64
	TotalCancelled int64
}

// Create builds a ThreadPool and spawns its initial worker quota. On
// any spawn failure it tears down whatever was built and returns the
// combined error.
func Create(opts ...Option) (*ThreadPool, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	p := &ThreadPool{
		cfg:         cfg,
		rundown:     rundown.New(),
		items:       newItemPool(int64(cfg.maxQuota) * 2),
		workersLock: busylock.New(),
	}

	for i := 0; i < cfg.initialQuota; i++ {
		if _, err := p.spawnWorkerLocked(); err != nil {
			teardownErr := p.teardownWorkers()
			return nil, multierr.Append(err, teardownErr)
		}
	}
	return p, nil
}

// spawnWorkerLocked creates a new worker context and appends it to the
// workers vector under the threads lock, per spec.md §4.7.
func (p *ThreadPool) spawnWorkerLocked() (*workerContext, error) {
	p.workersLock.LockExclusive()
	defer p.workersLock.UnlockExclusive()

	wc, err := newWorkerContext(len(p.workers), p)
	if err != nil {
		return nil, err
	}
	p.workers = append(p.workers, wc)
	return wc, nil
}

func (p *ThreadPool) teardownWorkers() error {
	p.workersLock.LockExclusive()
	workers := p.workers
	p.workers = nil
	p.workersLock.UnlockExclusive()

	var err error
	for _, wc := range workers {
		wc.shutdown.Store(true)
		wc.wakeup.Set()
		wc.thread.Join()
	}
	return err
}

// Enqueue schedules callback(arg) to run on one of the pool's workers.
// If the pool's rundown has already begun, it returns
// status.RejectedRundown without running anything. If rundown begins
// before this item is dispatched, rundownCallback(arg) runs instead of
// callback(arg), exactly once either way.
func (p *ThreadPool) Enqueue(callback, rundownCallback func(arg any), arg any) error {
	guard := rundown.NewGuard(p.rundown)
	defer guard.Release()
	if !guard.IsAcquired() {
		return status.RejectedRundown
	}

	item := p.items.get()
	item.userCallback = callback
	item.rundownCallback = rundownCallback
	item.arg = arg

	target := p.selectWorker()
	if target.depth.Load() > p.cfg.maxWorkload {
		if grown, ok := p.tryGrow(); ok {
			target = grown
		}
	}

	target.push(item)
	p.totalEnqueued.Inc()
	return nil
}

func (p *ThreadPool) selectWorker() *workerContext {
	p.workersLock.LockShared()
	defer p.workersLock.UnlockShared()

	idx := p.roundRobin.Add(1) - 1
	return p.workers[int(idx%uint64(len(p.workers)))]
}

// tryGrow attempts to spawn one additional worker when the pool is
// under quota, per spec.md §4.7's best-effort overload response.
func (p *ThreadPool) tryGrow() (*workerContext, bool) {
	p.workersLock.LockShared()
	count := len(p.workers)
	p.workersLock.UnlockShared()

	if count >= p.cfg.maxQuota {
		return nil, false
	}
	wc, err := p.spawnWorkerLocked()
	if err != nil {
		p.cfg.logger.Warn("threadpool: overload growth failed", zap.Error(err))
		return nil, false
	}
	p.cfg.logger.Info("threadpool: grew under overload", zap.Int("worker_id", wc.id))
	return wc, true
}

func (p *ThreadPool) recordExecution(cancelled bool) {
	if cancelled {
		p.totalCancelled.Inc()
	} else {
		p.totalExecuted.Inc()
	}
}

// Rundown blocks further Enqueue calls, then shuts down every worker:
// each finishes whatever it already started, drains its remaining
// queue through rundownCallback instead of callback, and is joined.
func (p *ThreadPool) Rundown() error {
	p.rundown.WaitForRelease()

	p.workersLock.LockExclusive()
	workers := p.workers
	p.workersLock.UnlockExclusive()

	for _, wc := range workers {
		wc.shutdown.Store(true)
		wc.wakeup.Set()
	}
	for _, wc := range workers {
		wc.thread.Join()
	}
	p.items.close()
	p.cfg.logger.Info("threadpool: rundown complete", zap.Int("worker_count", len(workers)))
	return nil
}

// Stats returns a snapshot of this pool's activity counters.
func (p *ThreadPool) Stats() Stats {
	p.workersLock.LockShared()
	threadCount := int64(len(p.workers))
	p.workersLock.UnlockShared()

	return Stats{
		ThreadCount:    threadCount,
		TotalEnqueued:  p.totalEnqueued.Load(),
		TotalExecuted:  p.totalExecuted.Load(),
		TotalCancelled: p.totalCancelled.Load(),
	}
}
