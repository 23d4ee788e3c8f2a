// SPDX-License-Identifier: MIT

// Package store persists logical entities (current image, devices, playlist,
// ...) with per-entity atomic read-modify-write semantics. Two backends are
// provided: file-per-entity with atomic rename, and a Badger key/value store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when the requested entity or blob does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrStorage wraps backend I/O failures so handlers can map them to 500.
var ErrStorage = errors.New("store: storage failure")

// Store is the persistence contract. Entities are small JSON documents; blobs
// are opaque byte buffers (pixel data, originals, firmware sidecars).
//
// Update is atomic with respect to concurrent updaters of the same entity.
// raw is nil when the entity does not exist yet; returning (nil, nil) leaves
// the entity untouched.
type Store interface {
	Read(ctx context.Context, entity string) ([]byte, error)
	Write(ctx context.Context, entity string, data []byte) error
	Update(ctx context.Context, entity string, mutate func(raw []byte) ([]byte, error)) error

	ReadBlob(ctx context.Context, name string) ([]byte, error)
	WriteBlob(ctx context.Context, name string, data []byte) error
	DeleteBlob(ctx context.Context, name string) error

	Close() error
}

// keyedMutex hands out one mutex per entity name so updates to distinct
// entities never contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(name string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[name]
	if !ok {
		m = &sync.Mutex{}
		k.locks[name] = m
	}
	return m
}

// Get reads and unmarshals an entity into T.
func Get[T any](ctx context.Context, s Store, entity string) (T, error) {
	var v T
	raw, err := s.Read(ctx, entity)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: decode %s: %v", ErrStorage, entity, err)
	}
	return v, nil
}

// Put marshals and writes an entity.
func Put[T any](ctx context.Context, s Store, entity string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, entity, err)
	}
	return s.Write(ctx, entity, raw)
}

// Mutate runs an atomic read-modify-write of a typed entity. A missing entity
// is presented to the mutator as the zero value of T.
func Mutate[T any](ctx context.Context, s Store, entity string, fn func(*T) error) error {
	return s.Update(ctx, entity, func(raw []byte) ([]byte, error) {
		var v T
		if raw != nil {
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, entity, err)
			}
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s: %v", ErrStorage, entity, err)
		}
		return out, nil
	})
}
