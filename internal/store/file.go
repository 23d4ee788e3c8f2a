// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// FileStore keeps each entity as <dir>/state/<entity>.json and each blob as
// <dir>/blobs/<name>. Writes go through renameio so a crash mid-write never
// leaves a torn file behind.
type FileStore struct {
	stateDir string
	blobDir  string
	locks    *keyedMutex
}

// NewFileStore creates the backing directories if needed.
func NewFileStore(dir string) (*FileStore, error) {
	stateDir := filepath.Join(dir, "state")
	blobDir := filepath.Join(dir, "blobs")
	for _, d := range []string{stateDir, blobDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("%w: mkdir %s: %v", ErrStorage, d, err)
		}
	}
	return &FileStore{stateDir: stateDir, blobDir: blobDir, locks: newKeyedMutex()}, nil
}

// safeName rejects names that would escape the store directories.
func safeName(name string) error {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: invalid entity name %q", ErrStorage, name)
	}
	return nil
}

func (f *FileStore) entityPath(entity string) string {
	return filepath.Join(f.stateDir, entity+".json")
}

func (f *FileStore) Read(_ context.Context, entity string) ([]byte, error) {
	if err := safeName(entity); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.entityPath(entity))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, entity, err)
	}
	return data, nil
}

func (f *FileStore) Write(_ context.Context, entity string, data []byte) error {
	if err := safeName(entity); err != nil {
		return err
	}
	return f.atomicWrite(f.entityPath(entity), data)
}

func (f *FileStore) Update(ctx context.Context, entity string, mutate func(raw []byte) ([]byte, error)) error {
	if err := safeName(entity); err != nil {
		return err
	}
	mu := f.locks.get(entity)
	mu.Lock()
	defer mu.Unlock()

	raw, err := f.Read(ctx, entity)
	if err != nil && err != ErrNotFound {
		return err
	}
	out, err := mutate(raw)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return f.atomicWrite(f.entityPath(entity), out)
}

func (f *FileStore) ReadBlob(_ context.Context, name string) ([]byte, error) {
	if err := safeName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(f.blobDir, name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s: %v", ErrStorage, name, err)
	}
	return data, nil
}

func (f *FileStore) WriteBlob(_ context.Context, name string, data []byte) error {
	if err := safeName(name); err != nil {
		return err
	}
	return f.atomicWrite(filepath.Join(f.blobDir, name), data)
}

func (f *FileStore) DeleteBlob(_ context.Context, name string) error {
	if err := safeName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(f.blobDir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete blob %s: %v", ErrStorage, name, err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

// atomicWrite goes through a pending file so the target is replaced in one
// rename after fsync.
func (f *FileStore) atomicWrite(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("%w: create pending file for %s: %v", ErrStorage, path, err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrStorage, path, err)
	}
	return nil
}
