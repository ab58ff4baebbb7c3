// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package context

import (
	"context"

	"go.uber.org/zap"

	"github.com/pingcap/seed-dumpling/v4/log"
)

// Context carries the go context and the logger of one dump run, so every
// layer of the dumper logs with the same fields (run id, model, ...).
type Context struct {
	ctx    context.Context
	logger log.Logger
}

// Background returns a nop context using the global logger.
func Background() *Context {
	return &Context{
		ctx:    context.Background(),
		logger: log.Zap(),
	}
}

// NewContext returns a new Context.
func NewContext(ctx context.Context, logger log.Logger) *Context {
	return &Context{
		ctx:    ctx,
		logger: logger,
	}
}

// WithContext replaces the go context.
func (c *Context) WithContext(ctx context.Context) *Context {
	return &Context{
		ctx:    ctx,
		logger: c.logger,
	}
}

// WithLogger replaces the logger.
func (c *Context) WithLogger(logger log.Logger) *Context {
	return &Context{
		ctx:    c.ctx,
		logger: logger,
	}
}

// WithFields returns a Context whose logger carries the extra fields.
func (c *Context) WithFields(fields ...zap.Field) *Context {
	return c.WithLogger(c.logger.With(fields...))
}

// Context returns the real context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// L returns the logger.
func (c *Context) L() log.Logger {
	return c.logger
}
