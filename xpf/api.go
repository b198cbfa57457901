// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xpf

import (
	"github.com/andreimuntea/xpfcore/internal/xpf/busylock"
	"github.com/andreimuntea/xpfcore/internal/xpf/eventbus"
	"github.com/andreimuntea/xpfcore/internal/xpf/lookaside"
	"github.com/andreimuntea/xpfcore/internal/xpf/queue"
	"github.com/andreimuntea/xpfcore/internal/xpf/rundown"
	"github.com/andreimuntea/xpfcore/internal/xpf/signal"
	"github.com/andreimuntea/xpfcore/internal/xpf/status"
	"github.com/andreimuntea/xpfcore/internal/xpf/thread"
	"github.com/andreimuntea/xpfcore/internal/xpf/threadpool"
)

// Re-exported types. xpf is a thin facade: embedders who need the
// concrete internal types can still import internal/xpf/<pkg>
// directly — within this module — but everything a typical caller
// needs is reachable from here.
type (
	BusyLock         = busylock.BusyLock
	Locker           = busylock.Locker
	RWLocker         = busylock.RWLocker
	Guard            = busylock.Guard
	RGuard           = busylock.RGuard
	Queue            = queue.Queue
	Node             = queue.Node
	Rundown          = rundown.Rundown
	RundownGuard     = rundown.Guard
	Lookaside        = lookaside.Lookaside
	Split            = lookaside.Split
	Signal           = signal.Signal
	Thread           = thread.Thread
	ThreadPool       = threadpool.ThreadPool
	ThreadPoolStats  = threadpool.Stats
	ThreadPoolOption = threadpool.Option
	EventBus         = eventbus.EventBus
	Event            = eventbus.Event
	Listener         = eventbus.Listener
	DispatchMode     = eventbus.DispatchMode
	EventBusOption   = eventbus.Option
	LookasideOption  = lookaside.Option
	SplitOption      = lookaside.SplitOption
	Status           = status.Status
)

// Dispatch modes, re-exported for callers who don't want to import
// internal/xpf/eventbus directly.
const (
	DispatchAuto  = eventbus.Auto
	DispatchSync  = eventbus.Sync
	DispatchAsync = eventbus.Async
)

// Status sentinels, re-exported for errors.Is comparisons.
var (
	ErrOutOfMemory        = status.OutOfMemory
	ErrInvalidParameter   = status.InvalidParameter
	ErrAlreadyExists      = status.AlreadyExists
	ErrNotFound           = status.NotFound
	ErrRejectedRundown    = status.RejectedRundown
	ErrInvalidState       = status.InvalidState
	ErrUnsupportedContext = status.UnsupportedContext
	ErrTimeout            = status.Timeout
)

// NewBusyLock creates a spinlock with no holders.
func NewBusyLock() *BusyLock { return busylock.New() }

// NewQueue creates an empty two-lock FIFO queue.
func NewQueue() *Queue { return queue.New() }

// NewRundown creates a drain-and-block reference counter with no
// outstanding references.
func NewRundown() *Rundown { return rundown.New() }

// NewLookaside creates a bounded cache of same-size blocks.
func NewLookaside(elementSize uint32, critical bool, opts ...LookasideOption) (*Lookaside, error) {
	return lookaside.New(elementSize, critical, opts...)
}

// NewSplit creates a tiered allocator over lookaside.DefaultSizeClasses
// unless overridden via lookaside.WithTiers.
func NewSplit(opts ...SplitOption) *Split { return lookaside.NewSplit(opts...) }

// NewSignal creates a manual- or auto-reset event.
func NewSignal(manualReset bool) (*Signal, error) { return signal.New(manualReset) }

// NewThread creates a one-shot goroutine wrapper.
func NewThread() *Thread { return thread.New() }

// NewThreadPool creates a round-robin work-item dispatcher.
func NewThreadPool(opts ...ThreadPoolOption) (*ThreadPool, error) { return threadpool.Create(opts...) }

// NewEventBus creates a listener registry with sync/async dispatch.
func NewEventBus(opts ...EventBusOption) (*EventBus, error) { return eventbus.New(opts...) }
