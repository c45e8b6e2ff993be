package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("first available candidate wins", func(t *testing.T) {
		kv, err := NewKVStore("memory", NewMemoryBackend())
		require.NoError(t, err)
		file, err := NewFileStore(t.TempDir())
		require.NoError(t, err)

		got, err := Select(ctx, kv, file)
		require.NoError(t, err)
		require.Same(t, kv, got)
	})

	t.Run("falls back when a medium is unavailable", func(t *testing.T) {
		// A regular file where the directory should be makes the medium unusable
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
		broken, err := NewFileStore(filepath.Join(blocker, "sub"))
		require.NoError(t, err)
		kv, err := NewKVStore("memory", NewMemoryBackend())
		require.NoError(t, err)

		got, err := Select(ctx, broken, kv)
		require.NoError(t, err)
		require.Same(t, kv, got)
	})

	t.Run("no candidate available", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
		broken, err := NewFileStore(filepath.Join(blocker, "sub"))
		require.NoError(t, err)

		_, err = Select(ctx, broken)
		require.ErrorIs(t, err, ErrStorageUnavailable)

		_, err = Select(ctx)
		require.ErrorIs(t, err, ErrStorageUnavailable)
	})
}

func TestFileStorePermissions(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "smartrade")
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.Persist(ctx, testTokens)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0700), info.Mode().Perm())

	for _, name := range []string{FileTokens, FileExpiry} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0600), info.Mode().Perm(), name)
	}
}

func TestFileStoreUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	s, err := NewFileStore(filepath.Join(blocker, "sub"))
	require.NoError(t, err)

	_, err = s.Persist(context.Background(), testTokens)
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestFileStoreDiscardsInsecureFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.Persist(ctx, testTokens)
	require.NoError(t, err)
	require.NoError(t, os.Chmod(filepath.Join(dir, FileTokens), 0644))

	_, ok, err := s.Verify(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoFileExists(t, filepath.Join(dir, FileTokens))
	require.NoFileExists(t, filepath.Join(dir, FileExpiry))
}
