// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRunThenJoinWaitsForCompletion(t *testing.T) {
	th := New()
	var ran int32

	if err := th.Run(func(arg any) {
		time.Sleep(10 * time.Millisecond)
		atomic.StoreInt32(&ran, 1)
	}, nil); err != nil {
		t.Fatal(err)
	}

	th.Join()
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("Join returned before the callback finished")
	}
}

func TestRunWhileStillRunningFails(t *testing.T) {
	th := New()
	started := make(chan struct{})
	release := make(chan struct{})
	if err := th.Run(func(arg any) {
		close(started)
		<-release
	}, nil); err != nil {
		t.Fatal(err)
	}
	<-started

	if err := th.Run(func(arg any) {}, nil); err == nil {
		t.Fatal("Run while a callback is still in flight should fail")
	}

	close(release)
	th.Join()
}

func TestRunAfterJoinSucceeds(t *testing.T) {
	th := New()
	if err := th.Run(func(arg any) {}, nil); err != nil {
		t.Fatal(err)
	}
	th.Join()

	if err := th.Run(func(arg any) {}, nil); err != nil {
		t.Fatalf("Run after Join should succeed, got %v", err)
	}
	th.Join()
}

func TestIsJoinableTracksRunState(t *testing.T) {
	th := New()
	if th.IsJoinable() {
		t.Fatal("fresh Thread should not be joinable")
	}
	if err := th.Run(func(arg any) {}, nil); err != nil {
		t.Fatal(err)
	}
	if !th.IsJoinable() {
		t.Fatal("Thread should be joinable after Run")
	}
	th.Join()
	if th.IsJoinable() {
		t.Fatal("Thread should not be joinable after Join completes")
	}
}

func TestJoinWithoutRunIsNoop(t *testing.T) {
	th := New()
	done := make(chan struct{})
	go func() {
		th.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Join without Run should return immediately")
	}
}

func TestArgIsPassedThrough(t *testing.T) {
	th := New()
	received := make(chan any, 1)
	if err := th.Run(func(arg any) {
		received <- arg
	}, 42); err != nil {
		t.Fatal(err)
	}
	th.Join()

	select {
	case got := <-received:
		if got != 42 {
			t.Fatalf("callback arg = %v, want 42", got)
		}
	default:
		t.Fatal("callback never ran")
	}
}
