// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threadpool

import "go.uber.org/zap"

// Configuration constants from spec.md §4.7.
const (
	InitialThreadQuota = 2
	MaxThreadQuota     = 64
	MaxWorkloadSize    = 512
)

type config struct {
	initialQuota int
	maxQuota     int
	maxWorkload  int64
	critical     bool
	logger       *zap.Logger
}

// Option configures a ThreadPool at construction.
type Option func(*config)

// WithInitialQuota overrides InitialThreadQuota, the worker count
// spawned by Create.
func WithInitialQuota(n int) Option {
	return func(c *config) { c.initialQuota = n }
}

// WithMaxQuota overrides MaxThreadQuota, the ceiling Enqueue's
// overload-triggered growth will not exceed.
func WithMaxQuota(n int) Option {
	return func(c *config) { c.maxQuota = n }
}

// WithMaxWorkload overrides MaxWorkloadSize, the per-worker queue
// depth above which Enqueue attempts to grow the pool.
func WithMaxWorkload(n int64) Option {
	return func(c *config) { c.maxWorkload = n }
}

// WithCritical sets the pool's critical-tier flag (true =
// must-not-fail-in-steady-state pool). Work items are recycled through
// the pool's own item cache, which uses ordinary Go allocation and does
// not consult this flag.
func WithCritical(critical bool) Option {
	return func(c *config) { c.critical = critical }
}

// WithLogger attaches a *zap.Logger for diagnostic narration of pool
// growth and rundown. Logging never participates in correctness or
// control flow; a nil logger (the default) is equivalent to
// zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func defaultConfig() config {
	return config{
		initialQuota: InitialThreadQuota,
		maxQuota:     MaxThreadQuota,
		maxWorkload:  MaxWorkloadSize,
		critical:     true,
		logger:       zap.NewNop(),
	}
}
