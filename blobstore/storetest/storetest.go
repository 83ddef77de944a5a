// Package storetest checks blobstore.Store implementations against the
// behavior every store must share.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hupe1980/vecflat/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises put, open, overwrite, list and delete on an empty store.
func Run(t *testing.T, store blobstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("OpenMissing", func(t *testing.T) {
		_, err := store.Open(ctx, "missing.vflt")
		assert.True(t, errors.Is(err, blobstore.ErrNotFound), "got %v", err)
	})

	t.Run("PutOpen", func(t *testing.T) {
		data := []byte("hello world, this is a test blob")
		require.NoError(t, store.Put(ctx, "a/one.vflt", data))

		blob, err := store.Open(ctx, "a/one.vflt")
		require.NoError(t, err)
		defer blob.Close()

		assert.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 5)
		n, err := blob.ReadAt(ctx, buf, 6)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "world", string(buf))

		n, err = blob.ReadAt(ctx, make([]byte, 10), int64(len(data))-3)
		assert.Equal(t, 3, n)
		assert.ErrorIs(t, err, io.EOF)

		got, err := blobstore.ReadAll(ctx, blob)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("PutCopiesInput", func(t *testing.T) {
		data := []byte("immutable")
		require.NoError(t, store.Put(ctx, "copy.vflt", data))
		data[0] = 'X'

		blob, err := store.Open(ctx, "copy.vflt")
		require.NoError(t, err)
		defer blob.Close()
		got, err := blobstore.ReadAll(ctx, blob)
		require.NoError(t, err)
		assert.Equal(t, "immutable", string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "over.vflt", []byte("old content")))
		require.NoError(t, store.Put(ctx, "over.vflt", []byte("new")))

		blob, err := store.Open(ctx, "over.vflt")
		require.NoError(t, err)
		defer blob.Close()
		got, err := blobstore.ReadAll(ctx, blob)
		require.NoError(t, err)
		assert.Equal(t, "new", string(got))
	})

	t.Run("Empty", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "empty.vflt", nil))

		blob, err := store.Open(ctx, "empty.vflt")
		require.NoError(t, err)
		defer blob.Close()
		assert.Zero(t, blob.Size())
		got, err := blobstore.ReadAll(ctx, blob)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Large", func(t *testing.T) {
		data := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)
		require.NoError(t, store.Put(ctx, "large.vflt", data))

		blob, err := store.Open(ctx, "large.vflt")
		require.NoError(t, err)
		defer blob.Close()
		got, err := blobstore.ReadAll(ctx, blob)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(data, got))
	})

	t.Run("ListDelete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "list/b.vflt", []byte("b")))
		require.NoError(t, store.Put(ctx, "list/a.vflt", []byte("a")))

		names, err := store.List(ctx, "list/")
		require.NoError(t, err)
		assert.Equal(t, []string{"list/a.vflt", "list/b.vflt"}, names)

		require.NoError(t, store.Delete(ctx, "list/a.vflt"))
		require.NoError(t, store.Delete(ctx, "list/a.vflt"))

		names, err = store.List(ctx, "list/")
		require.NoError(t, err)
		assert.Equal(t, []string{"list/b.vflt"}, names)

		_, err = store.Open(ctx, "list/a.vflt")
		assert.True(t, errors.Is(err, blobstore.ErrNotFound), "got %v", err)
	})
}
