// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestCopyBlobBackoffer(t *testing.T) {
	bo := newCopyBlobBackoffer()
	require.Equal(t, copyBlobRetryTime, bo.Attempt())
	require.Equal(t, 2*copyBlobWaitInterval, bo.NextBackoff(fmt.Errorf("reset")))
	require.Equal(t, copyBlobMaxWaitInterval, bo.NextBackoff(fmt.Errorf("reset")))
	require.Equal(t, 1, bo.Attempt())

	bo = newCopyBlobBackoffer()
	require.Equal(t, 0*copyBlobWaitInterval, bo.NextBackoff(errors.Annotate(os.ErrNotExist, "blob")))
	require.Equal(t, 0, bo.Attempt())
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), newCopyBlobBackoffer(), func() error {
		calls++
		return fmt.Errorf("always %d", calls)
	})
	require.EqualError(t, err, "always 3")
	require.Equal(t, copyBlobRetryTime, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = withRetry(ctx, newCopyBlobBackoffer(), func() error {
		calls++
		return fmt.Errorf("transient")
	})
	require.Equal(t, context.Canceled, errors.Cause(err))
	require.Equal(t, 1, calls)
}
