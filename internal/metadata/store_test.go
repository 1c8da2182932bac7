package metadata_test

import (
	"path/filepath"
	"six7/internal/metadata"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *metadata.Store {
	t.Helper()

	store, err := metadata.Open(t.Context(), filepath.Join(t.TempDir(), ".six7", "metadata.sqlite"))
	require.NoError(t, err, "Open error")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := metadata.Open(t.Context(), "")
	require.Error(t, err)
}

func TestOpenIsRepeatable(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "metadata.sqlite")

	first, err := metadata.Open(t.Context(), dbPath)
	require.NoError(t, err)
	require.NoError(t, first.PutContentType(t.Context(), "bucket", "k", "text/plain"))
	require.NoError(t, first.Close())

	second, err := metadata.Open(t.Context(), dbPath)
	require.NoError(t, err, "migrations must be re-runnable")
	defer second.Close()

	ct, ok, err := second.ContentType(t.Context(), "bucket", "k")
	require.NoError(t, err)
	require.True(t, ok, "content type survives reopen")
	require.Equal(t, "text/plain", ct)
}

func TestContentTypeLifecycle(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := t.Context()

	_, ok, err := store.ContentType(ctx, "bucket", "k")
	require.NoError(t, err)
	require.False(t, ok, "no row before first put")

	require.NoError(t, store.PutContentType(ctx, "bucket", "k", "text/plain"))
	ct, ok, err := store.ContentType(ctx, "bucket", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "text/plain", ct)

	require.NoError(t, store.PutContentType(ctx, "bucket", "k", "application/json"))
	ct, _, err = store.ContentType(ctx, "bucket", "k")
	require.NoError(t, err)
	require.Equal(t, "application/json", ct, "overwrite replaces the content type")

	// Same key in another bucket is independent.
	_, ok, err = store.ContentType(ctx, "other", "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.DeleteContentType(ctx, "bucket", "k"))
	_, ok, err = store.ContentType(ctx, "bucket", "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.DeleteContentType(ctx, "bucket", "k"), "deleting a missing row is not an error")
}

func TestPutEmptyContentTypeClearsRow(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.PutContentType(ctx, "bucket", "k", "image/png"))
	require.NoError(t, store.PutContentType(ctx, "bucket", "k", ""))

	_, ok, err := store.ContentType(ctx, "bucket", "k")
	require.NoError(t, err)
	require.False(t, ok, "empty content type means absent")
}
