// Copyright 2025 The xpfcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventbus

import (
	"go.uber.org/zap"

	"github.com/andreimuntea/xpfcore/internal/xpf/threadpool"
)

// AsyncThreshold is spec.md §4.8's default: once the in-flight async
// envelope count exceeds this, Dispatch may opt to run synchronously
// on the caller to relieve pressure.
const AsyncThreshold = 256

type config struct {
	asyncThreshold int64
	poolOptions    []threadpool.Option
	logger         *zap.Logger
}

// Option configures an EventBus at construction.
type Option func(*config)

// WithAsyncThreshold overrides AsyncThreshold.
func WithAsyncThreshold(n int64) Option {
	return func(c *config) { c.asyncThreshold = n }
}

// WithLogger attaches a *zap.Logger for diagnostic narration of
// registration, unregistration, and dispatch stealing. A nil logger
// (the default) is equivalent to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithThreadPoolOptions forwards options to the ThreadPool the bus
// owns for async dispatch.
func WithThreadPoolOptions(opts ...threadpool.Option) Option {
	return func(c *config) { c.poolOptions = append(c.poolOptions, opts...) }
}

func defaultConfig() config {
	return config{
		asyncThreshold: AsyncThreshold,
		logger:         zap.NewNop(),
	}
}
