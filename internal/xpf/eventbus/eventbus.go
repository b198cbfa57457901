// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eventbus implements the listener registry and sync/async
// dispatch of spec.md §4.8, built over an owned threadpool.ThreadPool
// for the async path. Listener records are held in a copy-on-write
// snapshot published via atomic.Pointer, so Dispatch never blocks on
// the same lock Register/Unregister use to replace it.
package eventbus

import (
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/andreimuntea/xpfcore/internal/xpf/busylock"
	"github.com/andreimuntea/xpfcore/internal/xpf/lookaside"
	"github.com/andreimuntea/xpfcore/internal/xpf/platform"
	"github.com/andreimuntea/xpfcore/internal/xpf/rundown"
	"github.com/andreimuntea/xpfcore/internal/xpf/status"
	"github.com/andreimuntea/xpfcore/internal/xpf/threadpool"
)

// Event is any object with a stable, type-chosen identifier.
type Event interface {
	EventID() uint32
}

// Listener observes dispatched events.
type Listener interface {
	OnEvent(evt Event, bus *EventBus)
}

// DispatchMode selects how Dispatch delivers an event.
type DispatchMode int

const (
	// Auto picks Sync where the host permits inline dispatch
	// (platform.SyncDispatchAllowed) and Async otherwise.
	Auto DispatchMode = iota
	Sync
	Async
)

type listenerRecord struct {
	id       uuid.UUID
	listener Listener
	rundown  *rundown.Rundown
}

// EventBus is a listener registry with synchronous and pool-backed
// asynchronous dispatch.
type EventBus struct {
	cfg      config
	rundown  *rundown.Rundown
	envelope *lookaside.Lookaside
	pool     *threadpool.ThreadPool

	lock     busylock.Locker
	snapshot atomic.Pointer[[]*listenerRecord]

	inFlight atomic.Int64
}

type envelope struct {
	event Event
	bus   *EventBus
}

// New builds an EventBus and its owned ThreadPool.
func New(opts ...Option) (*EventBus, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	pool, err := threadpool.Create(cfg.poolOptions...)
	if err != nil {
		return nil, err
	}

	env, err := lookaside.New(uint32(envelopeSize), false)
	if err != nil {
		return nil, err
	}

	empty := make([]*listenerRecord, 0)
	b := &EventBus{
		cfg:      cfg,
		rundown:  rundown.New(),
		envelope: env,
		pool:     pool,
		lock:     busylock.New(),
	}
	b.snapshot.Store(&empty)
	return b, nil
}

// envelopeSize is a nominal byte size for the async envelope
// lookaside; the envelope itself is carried as a typed Go value
// alongside the block (see dispatchAsync), matching the work-item
// recycling rationale in internal/xpf/threadpool.
const envelopeSize = 64

// Register adds listener to the bus and returns its id.
func (b *EventBus) Register(listener Listener) (uuid.UUID, error) {
	guard := rundown.NewGuard(b.rundown)
	defer guard.Release()
	if !guard.IsAcquired() {
		return uuid.UUID{}, status.RejectedRundown
	}

	id := platform.NewUUID()
	record := &listenerRecord{id: id, listener: listener, rundown: rundown.New()}

	b.lock.LockExclusive()
	defer b.lock.UnlockExclusive()

	current := *b.snapshot.Load()
	next := make([]*listenerRecord, 0, len(current)+1)
	for _, r := range current {
		if !r.rundown.IsRunDown() {
			next = append(next, r)
		}
	}
	next = append(next, record)
	b.snapshot.Store(&next)

	b.cfg.logger.Info("eventbus: listener registered", zap.String("id", id.String()))
	return id, nil
}

// Unregister removes the listener identified by id. It returns once
// any in-flight OnEvent call for that listener has completed.
func (b *EventBus) Unregister(id uuid.UUID) error {
	b.lock.LockExclusive()
	current := *b.snapshot.Load()
	var removed *listenerRecord
	next := make([]*listenerRecord, 0, len(current))
	for _, r := range current {
		if r.id == id {
			removed = r
			continue
		}
		next = append(next, r)
	}
	if removed == nil {
		b.lock.UnlockExclusive()
		return status.NotFound
	}
	b.snapshot.Store(&next)
	b.lock.UnlockExclusive()

	removed.rundown.WaitForRelease()
	b.cfg.logger.Info("eventbus: listener unregistered", zap.String("id", id.String()))
	return nil
}

// Dispatch delivers evt to every registered listener according to
// mode. An explicit Sync request where platform.SyncDispatchAllowed
// reports false fails with status.UnsupportedContext.
func (b *EventBus) Dispatch(evt Event, mode DispatchMode) error {
	guard := rundown.NewGuard(b.rundown)
	defer guard.Release()
	if !guard.IsAcquired() {
		return status.RejectedRundown
	}
	if mode == Sync && !platform.SyncDispatchAllowed() {
		return status.UnsupportedContext
	}

	effective := mode
	if effective == Auto {
		if platform.SyncDispatchAllowed() {
			effective = Sync
		} else {
			effective = Async
		}
	}

	if effective == Sync {
		b.notifyListeners(evt)
		return nil
	}
	return b.dispatchAsync(evt)
}

func (b *EventBus) dispatchAsync(evt Event) error {
	if b.inFlight.Load() > b.cfg.asyncThreshold {
		b.cfg.logger.Warn("eventbus: async threshold exceeded, stealing dispatch", zap.Int64("in_flight", b.inFlight.Load()))
		b.notifyListeners(evt)
		return nil
	}

	block, err := b.envelope.Allocate(envelopeSize)
	if err != nil {
		return err
	}
	env := &envelope{event: evt, bus: b}
	b.inFlight.Inc()

	err = b.pool.Enqueue(
		func(arg any) {
			e := arg.(*envelope)
			e.bus.notifyListeners(e.event)
			e.bus.inFlight.Dec()
			e.bus.envelope.Free(&block)
		},
		func(arg any) {
			e := arg.(*envelope)
			e.bus.inFlight.Dec()
			e.bus.envelope.Free(&block)
		},
		env,
	)
	if err != nil {
		b.inFlight.Dec()
		b.envelope.Free(&block)
		return err
	}
	return nil
}

// notifyListeners invokes OnEvent on every listener in the snapshot
// current at call time, skipping any mid-unregistration.
func (b *EventBus) notifyListeners(evt Event) {
	records := *b.snapshot.Load()
	for _, r := range records {
		if !r.rundown.Acquire() {
			continue
		}
		r.listener.OnEvent(evt, b)
		r.rundown.Release()
	}
}

// Rundown drains the bus: no further Register/Dispatch succeeds, the
// owned pool is run down (invoking async rundown callbacks for
// in-flight envelopes), every remaining listener's rundown is drained,
// and the envelope lookaside is closed.
func (b *EventBus) Rundown() error {
	b.rundown.WaitForRelease()

	var err error
	err = multierr.Append(err, b.pool.Rundown())

	records := *b.snapshot.Load()
	for _, r := range records {
		r.rundown.WaitForRelease()
	}
	empty := make([]*listenerRecord, 0)
	b.snapshot.Store(&empty)

	err = multierr.Append(err, b.envelope.Close())
	b.cfg.logger.Info("eventbus: rundown complete", zap.Int("listener_count", len(records)))
	return err
}
