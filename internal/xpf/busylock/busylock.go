// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package busylock implements the 16-bit-in-spirit spinning
// reader/writer lock spec.md §4.1 describes: a single packed word
// whose top bit is a writer-reserved flag and whose remaining bits are
// a shared-reader count. All operations spin; on each failed attempt
// the calling goroutine yields to the scheduler via platform.Yield.
//
// The packing is widened to 32 bits (bit 31 writer flag, bits 0..30
// reader count, so up to 2^31-1 concurrent readers instead of
// 2^15-1) to keep the single CAS loop comfortably inside a native
// atomic word on every Go-supported architecture; the invariants are
// otherwise identical to spec.md §3's BusyLock state description.
package busylock

import (
	"go.uber.org/atomic"

	"github.com/andreimuntea/xpfcore/internal/xpf/platform"
)

const (
	writerBit  uint32 = 1 << 31
	readerMask uint32 = writerBit - 1
)

// Locker is the interface original_source/Lock.hpp's umbrella Lock
// type generalizes over: call sites that only ever take the lock for
// mutual exclusion (the two locks inside queue.Queue, and eventbus's
// snapshot-replacement lock) are written against this interface
// rather than *BusyLock directly.
type Locker interface {
	LockExclusive()
	UnlockExclusive()
}

// RWLocker additionally exposes the shared-reader path.
type RWLocker interface {
	Locker
	LockShared()
	UnlockShared()
}

// BusyLock is a spinning reader/writer lock packed into one atomic
// word. The zero value is a valid, unlocked BusyLock.
type BusyLock struct {
	state atomic.Uint32
}

// New returns an unlocked BusyLock.
func New() *BusyLock {
	return &BusyLock{}
}

// LockExclusive repeatedly CASes the state from a value whose writer
// bit is clear to the same value with the writer bit set, then spins
// until the reader count drops to zero. It returns only once this
// goroutine holds the lock exclusively with no readers present.
func (l *BusyLock) LockExclusive() {
	for {
		state := l.state.Load()
		if state&writerBit != 0 {
			platform.Yield()
			continue
		}
		if l.state.CompareAndSwap(state, state|writerBit) {
			break
		}
	}
	for l.state.Load()&readerMask != 0 {
		platform.Yield()
	}
}

// UnlockExclusive clears the writer bit. Readers observing a cleared
// writer bit may then enter.
func (l *BusyLock) UnlockExclusive() {
	for {
		state := l.state.Load()
		if l.state.CompareAndSwap(state, state&^writerBit) {
			return
		}
	}
}

// LockShared repeatedly reads the state; if the writer bit is clear
// and the reader count has headroom, it CASes in an incremented
// count. Otherwise it yields and retries.
func (l *BusyLock) LockShared() {
	for {
		state := l.state.Load()
		if state&writerBit != 0 || state&readerMask == readerMask {
			platform.Yield()
			continue
		}
		if l.state.CompareAndSwap(state, state+1) {
			return
		}
	}
}

// UnlockShared atomically decrements the reader count.
func (l *BusyLock) UnlockShared() {
	for {
		state := l.state.Load()
		if state&readerMask == 0 {
			platform.Panic("busylock: UnlockShared with no readers held")
		}
		if l.state.CompareAndSwap(state, state-1) {
			return
		}
	}
}

// AssertUnheld acquires and releases the lock exclusively, asserting
// no lingering holder. This is the Go analogue of spec.md §4.1's
// destructor policy ("the destructor acquires and releases exclusive
// to assert no lingering holders"); call it from a Close/teardown path
// rather than relying on a finalizer, since Go has no deterministic
// destructors. A hang here is a caller bug, exactly as spec.md states.
func (l *BusyLock) AssertUnheld() {
	l.LockExclusive()
	l.UnlockExclusive()
}
