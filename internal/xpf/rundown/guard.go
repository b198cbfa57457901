// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundown

import "github.com/andreimuntea/xpfcore/internal/xpf/platform"

// Guard is constructed from a Rundown, attempts to Acquire it, exposes
// whether that succeeded, and releases on Release iff it did. On
// kernel-like hosts it also brackets a critical region, matching
// spec.md §4.4's RundownGuard.
type Guard struct {
	rundown  *Rundown
	acquired bool
	released bool
}

// NewGuard attempts to acquire r and returns a Guard wrapping the
// result. Callers must check IsAcquired before treating the guarded
// section as entered.
func NewGuard(r *Rundown) *Guard {
	platform.EnterCriticalRegion()
	g := &Guard{rundown: r, acquired: r.Acquire()}
	if !g.acquired {
		platform.ExitCriticalRegion()
	}
	return g
}

// IsAcquired reports whether the guard holds a live reference.
func (g *Guard) IsAcquired() bool {
	return g.acquired
}

// Release releases the reference if one was acquired; on a guard that
// never acquired it is a no-op. Calling Release more than once is a
// caller bug and panics via platform.Panic.
func (g *Guard) Release() {
	if g.released {
		platform.Panic("rundown: Guard released twice")
	}
	g.released = true
	if !g.acquired {
		return
	}
	g.rundown.Release()
	platform.ExitCriticalRegion()
}
