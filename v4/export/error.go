// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"fmt"

	"github.com/pingcap/errors"
)

// withStack attaches a stack trace unless err already carries one.
func withStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(interface{ StackTrace() errors.StackTrace }); ok {
		return err
	}
	return errors.WithStack(err)
}

// AttachmentError reports a blob which could not be copied into the seed
// files directory. It aborts the dump it occurs in.
type AttachmentError struct {
	Filename string
	Err      error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("copy attachment %q: %s", e.Filename, e.Err)
}

// Unwrap returns the underlying failure.
func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// Cause implements the causer interface of pingcap/errors.
func (e *AttachmentError) Cause() error {
	return e.Err
}
