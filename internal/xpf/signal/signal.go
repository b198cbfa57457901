// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package signal implements the manual/auto-reset event of spec.md
// §4.5. A mutex-guarded bool plus a sync.Cond stands in for the host
// kernel event object (grounded on dijkstracula-go-ilock's
// condvar-gated state machine): Set/Reset flip the bool and Broadcast,
// and Wait blocks on the condvar until the predicate it cares about
// holds or a timer fires. Unlike a channel-based design, no waiter
// ever blocks while holding the lock another goroutine needs in order
// to make progress.
package signal

import (
	"sync"
	"time"

	"github.com/andreimuntea/xpfcore/internal/xpf/status"
)

// Signal is a manual- or auto-reset event.
type Signal struct {
	manualReset bool
	mu          sync.Mutex
	cond        *sync.Cond
	signaled    bool
	closed      bool
}

// New creates a Signal. manualReset selects whether Wait clears the
// signaled state on return (false, matching an auto-reset kernel
// event) or leaves it set for every future Wait until Reset is called
// explicitly (true).
func New(manualReset bool) (*Signal, error) {
	s := &Signal{manualReset: manualReset}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Set puts the Signal into the signaled state, waking every blocked
// Wait. Redundant Sets while already signaled, and Sets after Close,
// are no-ops.
func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.signaled {
		return
	}
	s.signaled = true
	s.cond.Broadcast()
}

// Reset clears the signaled state. A Reset after Close is a no-op.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.signaled {
		return
	}
	s.signaled = false
}

// Wait blocks until the Signal is set or timeout elapses, returning
// true iff it observed the signaled state. A non-positive timeout
// means wait forever. For an auto-reset Signal, at most one waiter
// observes each Set (the first to reacquire the lock after a
// Broadcast clears signaled before any other waiter's predicate check
// can succeed).
func (s *Signal) Wait(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadline time.Time
	var timer *time.Timer
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		// sync.Cond has no timed wait; a timer that reacquires the
		// lock to Broadcast gives every blocked waiter a chance to
		// re-check the deadline.
		timer = time.AfterFunc(timeout, func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		defer timer.Stop()
	}

	for !s.signaled && !s.closed {
		if timeout > 0 && !time.Now().Before(deadline) {
			return false
		}
		s.cond.Wait()
	}

	if !s.signaled {
		return false
	}
	if !s.manualReset {
		s.signaled = false
	}
	return true
}

// Close releases the Signal. Further Set/Reset calls are no-ops;
// outstanding Waits are woken and return false.
func (s *Signal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return status.InvalidState
	}
	s.closed = true
	s.cond.Broadcast()
	return nil
}
