// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	r := New()
	require.True(t, r.Acquire(), "Acquire() = false on a fresh Rundown")
	r.Release()
}

func TestWaitForReleaseBlocksFurtherAcquire(t *testing.T) {
	r := New()
	r.WaitForRelease()

	require.False(t, r.Acquire(), "Acquire() succeeded after WaitForRelease")
	require.True(t, r.IsRunDown(), "IsRunDown() = false after WaitForRelease")
}

// TestS5RundownRace is spec.md §8 scenario S5: a goroutine repeatedly
// acquires/releases while another calls WaitForRelease after a delay.
// The test checks that WaitForRelease returns despite the concurrent
// acquire/release traffic and that an Acquire after it returns fails.
func TestS5RundownRace(t *testing.T) {
	r := New()
	stop := make(chan struct{})
	var acquiresAfterStop int
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if r.Acquire() {
				time.Sleep(time.Microsecond)
				r.Release()
			} else {
				mu.Lock()
				acquiresAfterStop++
				mu.Unlock()
			}
		}
	}()

	time.Sleep(10 * time.Millisecond)
	r.WaitForRelease()
	close(stop)
	wg.Wait()

	if r.Acquire() {
		t.Fatal("Acquire() succeeded after WaitForRelease returned")
	}
}

func TestWaitForReleaseWaitsForOutstandingReference(t *testing.T) {
	r := New()
	if !r.Acquire() {
		t.Fatal("Acquire() failed on a fresh Rundown")
	}

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		r.Release()
		close(released)
	}()

	r.WaitForRelease()

	select {
	case <-released:
	default:
		t.Fatal("WaitForRelease returned before the outstanding reference was released")
	}
}

func TestGuardReleaseWithoutAcquireIsNoop(t *testing.T) {
	r := New()
	r.WaitForRelease()

	g := NewGuard(r)
	if g.IsAcquired() {
		t.Fatal("Guard acquired a rundown that was already drained")
	}
	g.Release() // must not panic, must not touch r's counters
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	r := New()
	defer func() {
		if recover() == nil {
			t.Fatal("Release without a matching Acquire must panic")
		}
	}()
	r.Release()
}
