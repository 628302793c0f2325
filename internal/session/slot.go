// Package session owns storage clients on behalf of callers.
//
// A Slot holds at most one store and is safe for concurrent use. A Pool
// keeps one Slot per distinct connection so repeated commands against the
// same endpoint and credentials reuse a client instead of rebuilding it.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/koustreak/stellars3/internal/errs"
	"github.com/koustreak/stellars3/internal/filestore"
)

// ErrNotInitialized is returned by Slot.Use before Init has succeeded.
var ErrNotInitialized = errors.New("storage client not initialized")

// Opener builds a store from a connection config.
type Opener func(ctx context.Context, cfg *filestore.Config) (filestore.Store, error)

// Slot is a caller-owned, mutex-guarded holder for one store.
// The zero value is an empty slot ready for Init.
type Slot struct {
	mu    sync.Mutex
	store filestore.Store
}

// Init builds a store with open and installs it, closing any previous one.
// On failure the slot keeps its previous contents.
func (s *Slot) Init(ctx context.Context, open Opener, cfg *filestore.Config) error {
	store, err := open(ctx, cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.store
	s.store = store
	s.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Use runs fn with the installed store. The lock is held only while the
// store is read; fn runs concurrently with other users.
func (s *Slot) Use(fn func(filestore.Store) error) error {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()

	if store == nil {
		return errs.Wrap(errs.ErrKindConfig, "no active connection", ErrNotInitialized)
	}
	return fn(store)
}

// Ready reports whether Init has succeeded.
func (s *Slot) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil
}

// Close closes and clears the installed store.
func (s *Slot) Close() error {
	s.mu.Lock()
	store := s.store
	s.store = nil
	s.mu.Unlock()

	if store == nil {
		return nil
	}
	return store.Close()
}
