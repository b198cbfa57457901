// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundown implements the drain-and-block reference counter of
// spec.md §4.4: a one-way primitive that blocks new acquisitions then
// waits for outstanding ones to finish, used throughout xpfcore to
// coordinate safe teardown of a shared object against in-flight users.
package rundown

import (
	"go.uber.org/atomic"

	"github.com/andreimuntea/xpfcore/internal/xpf/platform"
)

const (
	activeBit    uint64 = 1
	refIncrement uint64 = 2
)

// Rundown is a 64-bit packed state: bit 0 is the "rundown active"
// flag, bits 1..63 hold 2x the live-reference count. Once bit 0
// transitions to 1 it never returns to 0. The zero value is a valid,
// not-yet-run-down Rundown.
type Rundown struct {
	state atomic.Uint64
}

// New returns a Rundown with no outstanding references and rundown
// not yet started.
func New() *Rundown {
	return &Rundown{}
}

// Acquire takes one reference, returning false if rundown has already
// begun. The double-check (add, then re-check the flag, and undo on
// conflict) closes the race where WaitForRelease sets the flag between
// the initial read and the add.
func (r *Rundown) Acquire() bool {
	if r.state.Load()&activeBit != 0 {
		return false
	}
	state := r.state.Add(refIncrement)
	if state&activeBit != 0 {
		r.state.Sub(refIncrement)
		return false
	}
	return true
}

// Release gives back one reference acquired via Acquire.
func (r *Rundown) Release() {
	state := r.state.Load()
	if state < refIncrement {
		platform.Panic("rundown: Release without a matching Acquire")
	}
	r.state.Sub(refIncrement)
}

// WaitForRelease sets the rundown-active flag, then spins (yielding
// each iteration) until no references remain. After it returns, bit 0
// stays set forever and every subsequent Acquire fails.
func (r *Rundown) WaitForRelease() {
	for {
		state := r.state.Load()
		if state&activeBit != 0 {
			break
		}
		if r.state.CompareAndSwap(state, state|activeBit) {
			break
		}
	}
	for r.state.Load() != activeBit {
		platform.Yield()
	}
}

// IsRunDown reports whether WaitForRelease has been called, regardless
// of whether it has returned yet.
func (r *Rundown) IsRunDown() bool {
	return r.state.Load()&activeBit != 0
}
