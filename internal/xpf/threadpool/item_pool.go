// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threadpool

import (
	"unsafe"

	"go.uber.org/atomic"

	"github.com/andreimuntea/xpfcore/internal/xpf/queue"
)

// workItem is spec.md §3's work-item record: a user callback, a
// rundown (cancellation) callback, a user argument, and an embedded
// list node. A Lookaside over raw []byte (as internal/xpf/lookaside
// provides) cannot carry a live func value or interface safely — Go's
// garbage collector needs to see those pointers typed, not hiding
// inside an opaque byte region — so the pool recycles workItems
// through the same bounded-cache-over-a-queue.Queue shape lookaside
// uses, specialized to this one Go type instead of genericized over
// byte size.
type workItem struct {
	node            queue.Node
	userCallback    func(arg any)
	rundownCallback func(arg any)
	arg             any
}

func workItemFromNode(n *queue.Node) *workItem {
	return (*workItem)(unsafe.Pointer(n))
}

type itemPool struct {
	free      *queue.Queue
	cached    atomic.Int64
	maxCached int64
}

func newItemPool(maxCached int64) *itemPool {
	return &itemPool{free: queue.New(), maxCached: maxCached}
}

func (p *itemPool) get() *workItem {
	if n := p.free.Pop(); n != nil {
		p.cached.Dec()
		return workItemFromNode(n)
	}
	return &workItem{}
}

func (p *itemPool) put(item *workItem) {
	item.userCallback = nil
	item.rundownCallback = nil
	item.arg = nil
	if p.cached.Load() < p.maxCached {
		p.cached.Inc()
		p.free.Push(&item.node)
	}
}

// close drains the cache, returning its size to zero.
func (p *itemPool) close() {
	var drained int64
	for n := p.free.Flush(); n != nil; n = n.Next() {
		drained++
	}
	p.cached.Sub(drained)
}
