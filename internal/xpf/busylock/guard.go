// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package busylock

import "github.com/andreimuntea/xpfcore/internal/xpf/platform"

// noCopy lets `go vet`'s copylocks check flag accidental copies of a
// Guard, the same trick sync.WaitGroup and sync.Mutex use internally.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Guard is a scoped exclusive-lock holder: constructing one acquires
// the lock, Release lets it go. On kernel-like hosts, construction
// also enters a "critical region" (platform.EnterCriticalRegion) and
// Release exits it, matching spec.md §4.1's LockGuard and Design Notes
// §9. Guards are non-copyable; pass them by pointer if at all.
type Guard struct {
	_ noCopy

	lock     Locker
	released bool
}

// NewExclusiveGuard acquires l exclusively and returns a Guard that
// will release it.
func NewExclusiveGuard(l Locker) *Guard {
	platform.EnterCriticalRegion()
	l.LockExclusive()
	return &Guard{lock: l}
}

// Release releases the underlying lock. Calling Release twice is an
// invariant violation (the guard would unlock a lock it no longer
// holds).
func (g *Guard) Release() {
	if g.released {
		platform.Panic("busylock: Guard released twice")
	}
	g.released = true
	g.lock.UnlockExclusive()
	platform.ExitCriticalRegion()
}

// RGuard is the shared-lock analogue of Guard.
type RGuard struct {
	_ noCopy

	lock     RWLocker
	released bool
}

// NewSharedGuard acquires l for shared access and returns an RGuard
// that will release it.
func NewSharedGuard(l RWLocker) *RGuard {
	platform.EnterCriticalRegion()
	l.LockShared()
	return &RGuard{lock: l}
}

// Release releases the underlying shared lock.
func (g *RGuard) Release() {
	if g.released {
		platform.Panic("busylock: RGuard released twice")
	}
	g.released = true
	g.lock.UnlockShared()
	platform.ExitCriticalRegion()
}
