package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/koustreak/stellars3/internal/filestore"
)

// Pool caches one store per connection key. Records are never cached,
// only clients, so results are identical to building a client per call.
type Pool struct {
	open Opener

	mu      sync.Mutex
	entries map[string]*poolEntry
}

// poolEntry serialises client construction for one key only; builds for
// different connections run in parallel.
type poolEntry struct {
	init sync.Mutex
	slot Slot
}

// NewPool returns a pool that builds stores with open.
func NewPool(open Opener) *Pool {
	return &Pool{open: open, entries: make(map[string]*poolEntry)}
}

// Key identifies a connection: provider, endpoint, region, credentials and
// addressing flags. The secret is hashed so keys are safe to log.
func Key(cfg *filestore.Config) string {
	h := sha256.New()
	for _, part := range []string{
		string(cfg.Provider),
		cfg.Endpoint,
		cfg.RegionOrDefault(),
		cfg.AccessKey,
		cfg.SecretKey,
		strconv.FormatBool(cfg.UseSSL),
		strconv.FormatBool(cfg.PathStyle),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Use runs fn with the pooled store for cfg, building it on first use.
// Concurrent first uses of the same key build the client once.
func (p *Pool) Use(ctx context.Context, cfg *filestore.Config, fn func(filestore.Store) error) error {
	slot, err := p.slot(ctx, cfg)
	if err != nil {
		return err
	}
	return slot.Use(fn)
}

func (p *Pool) slot(ctx context.Context, cfg *filestore.Config) (*Slot, error) {
	key := Key(cfg)

	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok {
		e = &poolEntry{}
		p.entries[key] = e
	}
	p.mu.Unlock()

	e.init.Lock()
	defer e.init.Unlock()

	if e.slot.Ready() {
		return &e.slot, nil
	}
	if err := e.slot.Init(ctx, p.open, cfg); err != nil {
		p.mu.Lock()
		if p.entries[key] == e {
			delete(p.entries, key)
		}
		p.mu.Unlock()
		return nil, err
	}
	return &e.slot, nil
}

// Len returns the number of cached clients.
func (p *Pool) Len() int {
	p.mu.Lock()
	entries := make([]*poolEntry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	n := 0
	for _, e := range entries {
		if e.slot.Ready() {
			n++
		}
	}
	return n
}

// Close closes every cached store and empties the pool. A build still in
// progress finishes first so its client is closed too.
func (p *Pool) Close() error {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*poolEntry)
	p.mu.Unlock()

	var first error
	for _, e := range entries {
		e.init.Lock()
		err := e.slot.Close()
		e.init.Unlock()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
