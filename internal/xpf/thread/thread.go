// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package thread implements the one-shot unit-of-work wrapper of
// spec.md §4.6. A goroutine is Go's OS-thread analogue; Thread adds
// the run-once-at-a-time/join discipline the spec requires on top of
// it, guarded by a busylock.BusyLock the same way the C++ original
// guards its handle with a platform mutex. An instance may be re-Run
// only after Join completes (spec.md §4.6), so "running" tracks a
// single in-flight callback rather than whether Run was ever called.
package thread

import (
	"github.com/andreimuntea/xpfcore/internal/xpf/busylock"
	"github.com/andreimuntea/xpfcore/internal/xpf/status"
)

// Thread wraps a single goroutine launch with Run/Join/IsJoinable
// semantics: Run may not be called again until the prior callback has
// been Joined, and Join may be called any number of times but blocks
// only until the in-flight callback (if any) returns.
type Thread struct {
	lock    *busylock.BusyLock
	running bool
	done    chan struct{}
}

// New returns a Thread with no goroutine running yet.
func New() *Thread {
	return &Thread{lock: busylock.New()}
}

// Run launches callback(arg) on a new goroutine. It returns
// status.InvalidState if a previous callback is still running or has
// not yet been Joined.
func (t *Thread) Run(callback func(arg any), arg any) error {
	t.lock.LockExclusive()
	if t.running {
		t.lock.UnlockExclusive()
		return status.InvalidState
	}
	t.running = true
	t.done = make(chan struct{})
	t.lock.UnlockExclusive()

	done := t.done
	go func() {
		defer close(done)
		callback(arg)
	}()
	return nil
}

// IsJoinable reports whether a callback is currently scheduled or
// running (i.e. Run has been called and Join has not yet completed).
func (t *Thread) IsJoinable() bool {
	t.lock.LockExclusive()
	defer t.lock.UnlockExclusive()
	return t.running
}

// Join blocks until the running callback returns, then clears the
// in-flight state so a subsequent Run succeeds. Calling Join before
// Run, or on a Thread that was never run, is a no-op.
func (t *Thread) Join() {
	t.lock.LockExclusive()
	done := t.done
	t.lock.UnlockExclusive()
	if done == nil {
		return
	}
	<-done

	t.lock.LockExclusive()
	defer t.lock.UnlockExclusive()
	if t.done == done {
		t.running = false
		t.done = nil
	}
}
