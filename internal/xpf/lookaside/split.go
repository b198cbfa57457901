// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lookaside

import (
	"sync"

	"github.com/andreimuntea/xpfcore/internal/xpf/platform"
	"github.com/andreimuntea/xpfcore/internal/xpf/status"
)

// DefaultSizeClasses is the size-class ladder spec.md §4.3 calls out
// for a general-purpose Split allocator: five tiers wide enough to
// cover everything from small fixed records to quarter-megabyte
// buffers without forcing every caller into the largest class.
var DefaultSizeClasses = []uint32{64, 512, 4096, 32768, 262144}

// Split routes each allocation to the smallest Lookaside tier that
// fits it, falling back to the host allocator directly for requests
// larger than every configured class. It resolves spec.md §9's open
// question on free routing via a per-allocation bookkeeping table
// (the same mechanism each Lookaside tier already uses internally)
// rather than a size-class header prefix, keeping Free's signature
// identical to a single Lookaside's.
type Split struct {
	tiers    []*Lookaside
	critical bool

	mu   sync.Mutex
	live map[uintptr]int // data pointer -> tier index, or -1 for oversize
}

// SplitOption configures a Split at construction.
type SplitOption func(*splitConfig)

type splitConfig struct {
	classes  []uint32
	critical bool
}

// WithTiers overrides DefaultSizeClasses with a caller-supplied,
// ascending list of size classes.
func WithTiers(classes []uint32) SplitOption {
	return func(c *splitConfig) { c.classes = classes }
}

// WithCritical forwards the critical allocator tier to every Lookaside
// backing this Split.
func WithCritical(critical bool) SplitOption {
	return func(c *splitConfig) { c.critical = critical }
}

// NewSplit builds a Split allocator with one Lookaside per configured
// size class (DefaultSizeClasses unless overridden via WithTiers).
func NewSplit(opts ...SplitOption) *Split {
	cfg := splitConfig{classes: DefaultSizeClasses}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Split{
		critical: cfg.critical,
		live:     make(map[uintptr]int),
	}
	for _, class := range cfg.classes {
		// New never fails for a valid, positive element size.
		tier, _ := New(class, cfg.critical)
		s.tiers = append(s.tiers, tier)
	}
	return s
}

func (s *Split) tierFor(size uint32) int {
	for i, tier := range s.tiers {
		if size <= tier.ElementSize() {
			return i
		}
	}
	return -1
}

// Allocate returns a block of at least requestedSize bytes, drawn from
// the smallest tier that fits or, for oversize requests, allocated
// directly from the host allocator.
func (s *Split) Allocate(requestedSize uint32) ([]byte, error) {
	idx := s.tierFor(requestedSize)
	if idx < 0 {
		data := platform.Alloc(requestedSize, platform.Critical(s.critical))
		if data == nil {
			return nil, status.OutOfMemory
		}
		s.track(data, -1)
		return data, nil
	}

	data, err := s.tiers[idx].Allocate(requestedSize)
	if err != nil {
		return nil, err
	}
	s.track(data, idx)
	return data, nil
}

func (s *Split) track(data []byte, idx int) {
	s.mu.Lock()
	s.live[blockKey(data)] = idx
	s.mu.Unlock()
}

// Free routes *block to the tier that produced it and clears *block to
// nil. Freeing a block this Split did not hand out panics via
// platform.Panic, matching Lookaside.Free.
func (s *Split) Free(block *[]byte) error {
	if block == nil || *block == nil {
		return status.InvalidParameter
	}

	key := blockKey(*block)
	s.mu.Lock()
	idx, ok := s.live[key]
	if ok {
		delete(s.live, key)
	}
	s.mu.Unlock()

	if !ok {
		platform.Panic("lookaside: Split.Free of an untracked block")
	}

	if idx < 0 {
		*block = nil
		return nil
	}
	return s.tiers[idx].Free(block)
}

// Close closes every tier, in ascending size order.
func (s *Split) Close() error {
	for _, tier := range s.tiers {
		if err := tier.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Tier returns the Lookaside backing the given size class index, for
// tests and telemetry.
func (s *Split) Tier(i int) *Lookaside { return s.tiers[i] }
