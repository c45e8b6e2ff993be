package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// File names inside the store directory.
const (
	FileTokens = "auth_tokens.json"
	FileExpiry = "auth_expiry.txt"
)

// FileStore keeps the bundle and expiry marker as two files in one directory.
// Writes use temp file + rename for crash safety. The expiry marker is kept in
// epoch seconds.
type FileStore struct {
	pairStore
	dir string
}

// Compile-time checks to ensure FileStore implements Store and Verifier
var (
	_ Store    = (*FileStore)(nil)
	_ Verifier = (*FileStore)(nil)
)

// NewFileStore creates a FileStore rooted at dir. The directory is created
// with 0700 permissions on first write.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}

	return &FileStore{
		pairStore: pairStore{
			name:      "file",
			backend:   &fileBackend{dir: dir},
			bundleKey: FileTokens,
			expiryKey: FileExpiry,
			unit:      markerSeconds,
			opts:      newOptions(opts),
		},
		dir: dir,
	}, nil
}

// Dir returns the directory holding the records.
func (f *FileStore) Dir() string {
	return f.dir
}

// fileBackend maps keys to file names in dir.
type fileBackend struct {
	dir string
}

var _ Backend = (*fileBackend)(nil)

func (b *fileBackend) path(key string) string {
	return filepath.Join(b.dir, key)
}

// Get reads the file for key. Files readable by anyone but the owner are
// reported as ErrCorrupt.
func (b *fileBackend) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := b.path(key)
	info, err := os.Stat(name)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	// Windows reports 0666 for any writable file
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		return "", fmt.Errorf("%w: insecure permissions on %s: %04o (expected 0600)", ErrCorrupt, name, info.Mode().Perm())
	}

	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Set atomically saves value using temp file + rename.
// Sets file permissions to 0600 (owner read/write only).
func (b *fileBackend) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(b.dir, 0700); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(b.dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.WriteString(value); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempName, b.path(key))
}

func (b *fileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Ping checks that the directory exists or can be created, and is writable.
func (b *fileBackend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(b.dir, 0700); err != nil {
		return err
	}
	probe, err := os.CreateTemp(b.dir, ".probe-*")
	if err != nil {
		return err
	}
	_ = probe.Close()
	return os.Remove(probe.Name())
}
