// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pingcap/errors"
	"go.uber.org/zap"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
	"github.com/pingcap/seed-dumpling/v4/log"
)

// Attachment references one stored blob attached to a record.
type Attachment struct {
	// Filename is the original file name of the blob.
	Filename    string
	ContentType string
	// Key locates the blob inside Service.
	Key     string
	Service BlobService
}

// BlobService reads stored blobs.
type BlobService interface {
	// PathFor returns the local path of the blob if the service keeps blobs
	// on a local disk.
	PathFor(key string) (string, bool)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// materializeOp asks for a blob to be present under the seed files
// directory as name.
type materializeOp struct {
	attachment *Attachment
	name       string
}

// seedFileName is the name a blob is stored under in the seed files
// directory. Directory parts of the original name are dropped.
func seedFileName(filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || name == "" {
		return "", errors.Errorf("attachment filename %q is not usable", filename)
	}
	return name, nil
}

// attachmentMaterializer copies referenced blobs into the seed files
// directory. A file already present is never copied again. The existence
// check is not locked: one writer per directory is assumed.
type attachmentMaterializer struct {
	dir string

	mkdirOnce sync.Once
	mkdirErr  error

	copied  int
	skipped int
}

func newAttachmentMaterializer(conf *Config) *attachmentMaterializer {
	return &attachmentMaterializer{
		dir: filepath.Join(conf.RootDir, conf.FilesDir),
	}
}

// Materialize runs all ops in order and stops at the first failure.
func (m *attachmentMaterializer) Materialize(tctx *tcontext.Context, ops []materializeOp) error {
	for _, op := range ops {
		if err := m.ensure(tctx, op); err != nil {
			materializeFailed(tctx, op, err)
			return &AttachmentError{Filename: op.attachment.Filename, Err: err}
		}
	}
	return nil
}

func materializeFailed(tctx *tcontext.Context, op materializeOp, err error) {
	tctx.L().Error("failed to copy attachment",
		zap.String("filename", op.attachment.Filename),
		zap.String("key", op.attachment.Key),
		log.ShortError(err))
}

func (m *attachmentMaterializer) ensure(tctx *tcontext.Context, op materializeOp) error {
	a := op.attachment
	if a.Service == nil {
		tctx.L().Debug("attachment has no blob service, skip copying",
			zap.String("filename", a.Filename))
		return nil
	}
	m.mkdirOnce.Do(func() {
		m.mkdirErr = os.MkdirAll(m.dir, 0o755)
	})
	if m.mkdirErr != nil {
		return errors.Trace(m.mkdirErr)
	}

	target := filepath.Join(m.dir, op.name)
	if _, err := os.Stat(target); err == nil {
		m.skipped++
		tctx.L().Debug("attachment already materialized", zap.String("path", target))
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Trace(err)
	}

	if src, ok := a.Service.PathFor(a.Key); ok {
		if _, err := os.Stat(src); err == nil {
			if err := copyLocalFile(src, target); err != nil {
				return err
			}
			m.done(tctx, target)
			return nil
		}
	}

	ctx := tctx.Context()
	err := withRetry(ctx, newCopyBlobBackoffer(), func() error {
		return writeFileAtomic(target, func(w io.Writer) error {
			r, err := a.Service.Open(ctx, a.Key)
			if err != nil {
				return errors.Trace(err)
			}
			defer r.Close()
			_, err = io.Copy(w, r)
			return errors.Trace(err)
		})
	})
	if err != nil {
		return err
	}
	m.done(tctx, target)
	return nil
}

func (m *attachmentMaterializer) done(tctx *tcontext.Context, target string) {
	m.copied++
	materializedAttachmentsCounter.Inc()
	tctx.L().Debug("attachment materialized", zap.String("path", target))
}

func copyLocalFile(src, target string) error {
	return writeFileAtomic(target, func(w io.Writer) error {
		f, err := os.Open(src)
		if err != nil {
			return errors.Trace(err)
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return errors.Trace(err)
	})
}

// writeFileAtomic fills a temporary file next to target and renames it into
// place, so target never holds partial content.
func writeFileAtomic(target string, fill func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".seed-dumpling-*")
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(tmp.Name(), target))
}
