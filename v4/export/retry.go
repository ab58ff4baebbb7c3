// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"os"
	"time"

	"github.com/pingcap/errors"
)

const (
	copyBlobRetryTime       = 3
	copyBlobWaitInterval    = 50 * time.Millisecond
	copyBlobMaxWaitInterval = 200 * time.Millisecond
)

func newCopyBlobBackoffer() *copyBlobBackoffer {
	return &copyBlobBackoffer{
		attempt:      copyBlobRetryTime,
		delayTime:    copyBlobWaitInterval,
		maxDelayTime: copyBlobMaxWaitInterval,
	}
}

type copyBlobBackoffer struct {
	attempt      int
	delayTime    time.Duration
	maxDelayTime time.Duration
}

func (b *copyBlobBackoffer) NextBackoff(err error) time.Duration {
	err = errors.Cause(err)
	switch {
	case os.IsNotExist(err), os.IsPermission(err),
		err == context.Canceled, err == context.DeadlineExceeded:
		// retrying cannot make these succeed
		b.attempt = 0
		return 0
	}
	b.delayTime = 2 * b.delayTime
	b.attempt--
	if b.delayTime > b.maxDelayTime {
		return b.maxDelayTime
	}
	return b.delayTime
}

func (b *copyBlobBackoffer) Attempt() int {
	return b.attempt
}

// withRetry runs fn until it succeeds or the backoffer gives up, returning
// the last error.
func withRetry(ctx context.Context, bo *copyBlobBackoffer, fn func() error) error {
	var lastErr error
	for bo.Attempt() > 0 {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		backoff := bo.NextBackoff(lastErr)
		if bo.Attempt() <= 0 {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-time.After(backoff):
		}
	}
	return lastErr
}
