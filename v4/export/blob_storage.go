// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pingcap/br/pkg/storage"
	"github.com/pingcap/errors"
)

// DiskBlobService reads blobs laid out like the Active Storage disk service,
// `<root>/ab/cd/abcd...`.
type DiskBlobService struct {
	Root string
}

// PathFor implements BlobService.
func (s *DiskBlobService) PathFor(key string) (string, bool) {
	if len(key) < 4 {
		return filepath.Join(s.Root, key), true
	}
	return filepath.Join(s.Root, key[:2], key[2:4], key), true
}

// Open implements BlobService.
func (s *DiskBlobService) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, _ := s.PathFor(key)
	f, err := os.Open(path)
	return f, errors.Trace(err)
}

// ExternalBlobService reads blobs stored flat by key in an external storage
// (local directory, s3:// or gcs://).
type ExternalBlobService struct {
	storage   storage.ExternalStorage
	localRoot string
}

// NewExternalBlobService opens the storage at rawURL.
func NewExternalBlobService(ctx context.Context, rawURL string) (*ExternalBlobService, error) {
	backend, err := storage.ParseBackend(rawURL, &storage.BackendOptions{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	s, err := storage.New(ctx, backend, &storage.ExternalStorageOptions{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	svc := &ExternalBlobService{storage: s}
	if local := backend.GetLocal(); local != nil {
		svc.localRoot = local.GetPath()
	}
	return svc, nil
}

// URI returns the location of the underlying storage.
func (s *ExternalBlobService) URI() string {
	return s.storage.URI()
}

// PathFor implements BlobService. Only local storages have paths.
func (s *ExternalBlobService) PathFor(key string) (string, bool) {
	if s.localRoot == "" {
		return "", false
	}
	return filepath.Join(s.localRoot, key), true
}

// Open implements BlobService.
func (s *ExternalBlobService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	exists, err := s.storage.FileExists(ctx, key)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !exists {
		return nil, errors.Annotatef(os.ErrNotExist, "blob %s in %s", key, s.storage.URI())
	}
	r, err := s.storage.Open(ctx, key)
	return r, errors.Trace(err)
}

// createBlobService returns the blob service attachments of a database dump
// are read from.
func createBlobService(ctx context.Context, conf *Config) (BlobService, error) {
	if conf.BlobService != nil {
		return conf.BlobService, nil
	}
	if conf.BlobStorage != "" {
		return NewExternalBlobService(ctx, conf.BlobStorage)
	}
	root := conf.BlobRoot
	if !filepath.IsAbs(root) {
		root = filepath.Join(conf.RootDir, root)
	}
	return &DiskBlobService{Root: root}, nil
}
