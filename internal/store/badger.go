// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/inkframe/inkframe/internal/log"
)

// BadgerStore keeps entities and blobs in a single Badger database under
// <dir>/badger. Badger transactions already serialize writers per key, but the
// keyed mutex keeps Update's read-modify-write atomic across the whole call.
type BadgerStore struct {
	db    *badger.DB
	locks *keyedMutex
}

// NewBadgerStore opens (or creates) the database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's logger is too chatty; we log open/close ourselves
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %v", ErrStorage, dir, err)
	}
	logger := log.WithComponent("store")
	logger.Info().Str("dir", dir).Msg("badger store opened")
	return &BadgerStore{db: db, locks: newKeyedMutex()}, nil
}

func entityKey(entity string) []byte { return []byte("entity/" + entity) }
func blobKey(name string) []byte     { return []byte("blob/" + name) }

func (b *BadgerStore) get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStorage, key, err)
	}
	return out, nil
}

func (b *BadgerStore) set(key, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrStorage, key, err)
	}
	return nil
}

func (b *BadgerStore) Read(_ context.Context, entity string) ([]byte, error) {
	if err := safeName(entity); err != nil {
		return nil, err
	}
	return b.get(entityKey(entity))
}

func (b *BadgerStore) Write(_ context.Context, entity string, data []byte) error {
	if err := safeName(entity); err != nil {
		return err
	}
	return b.set(entityKey(entity), data)
}

func (b *BadgerStore) Update(ctx context.Context, entity string, mutate func(raw []byte) ([]byte, error)) error {
	if err := safeName(entity); err != nil {
		return err
	}
	mu := b.locks.get(entity)
	mu.Lock()
	defer mu.Unlock()

	raw, err := b.Read(ctx, entity)
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
	return b.set(entityKey(entity), out)
}

func (b *BadgerStore) ReadBlob(_ context.Context, name string) ([]byte, error) {
	if err := safeName(name); err != nil {
		return nil, err
	}
	return b.get(blobKey(name))
}

func (b *BadgerStore) WriteBlob(_ context.Context, name string, data []byte) error {
	if err := safeName(name); err != nil {
		return err
	}
	return b.set(blobKey(name), data)
}

func (b *BadgerStore) DeleteBlob(_ context.Context, name string) error {
	if err := safeName(name); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blobKey(name))
	})
	if err != nil {
		return fmt.Errorf("%w: delete blob %s: %v", ErrStorage, name, err)
	}
	return nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }
