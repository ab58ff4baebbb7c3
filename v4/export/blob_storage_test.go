// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestDiskBlobService(t *testing.T) {
	root := t.TempDir()
	svc := &DiskBlobService{Root: root}
	path, ok := svc.PathFor("abcdef123")
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "ab", "cd", "abcdef123"), path)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("blob"), 0o644))
	r, err := svc.Open(context.Background(), "abcdef123")
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "blob", string(content))

	_, err = svc.Open(context.Background(), "zzzz0000")
	require.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestExternalBlobServiceLocal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "key1"), []byte("external"), 0o644))

	svc, err := NewExternalBlobService(context.Background(), root)
	require.NoError(t, err)
	require.Regexp(t, "file:.*", svc.URI())

	path, ok := svc.PathFor("key1")
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "key1"), path)

	r, err := svc.Open(context.Background(), "key1")
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "external", string(content))

	_, err = svc.Open(context.Background(), "missing")
	require.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestCreateBlobService(t *testing.T) {
	conf := DefaultConfig()
	conf.RootDir = "/app"
	svc, err := createBlobService(context.Background(), conf)
	require.NoError(t, err)
	require.Equal(t, &DiskBlobService{Root: "/app/storage"}, svc)

	mock := newMockBlobService()
	conf.BlobService = mock
	svc, err = createBlobService(context.Background(), conf)
	require.NoError(t, err)
	require.Same(t, mock, svc)

	conf.BlobService = nil
	conf.BlobStorage = t.TempDir()
	svc, err = createBlobService(context.Background(), conf)
	require.NoError(t, err)
	require.IsType(t, &ExternalBlobService{}, svc)
}
