// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keyreg resolves the named signing keys the verifier checks
// signatures against. Keys live in the relational store; a single key
// assembled from environment variables serves as a bootstrap fallback
// so a fresh deployment can verify before an operator populates the
// registry.
package keyreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrKeyNotFound is returned when a key id resolves to nothing, env
// fallback included.
var ErrKeyNotFound = errors.New("signing key not found")

// Key is one registry entry. PublicKey is PEM or base64 DER/raw.
type Key struct {
	KeyID     string `json:"key_id"`
	Algo      string `json:"algo"`
	PublicKey string `json:"public_key"`
	Active    bool   `json:"active"`
}

// Store is the backing registry store.
type Store interface {
	// ListActiveKeys returns all keys currently accepting new signatures.
	ListActiveKeys(ctx context.Context) ([]Key, error)
	// GetKey returns a key by id regardless of its active flag, so rows
	// signed before a rotation keep verifying. Returns ErrKeyNotFound.
	GetKey(ctx context.Context, keyID string) (Key, error)
}

// EmptyStore is a Store with no keys, for deployments that run on the
// env fallback key alone.
type EmptyStore struct{}

func (EmptyStore) ListActiveKeys(ctx context.Context) ([]Key, error) { return nil, nil }

func (EmptyStore) GetKey(ctx context.Context, keyID string) (Key, error) {
	return Key{}, ErrKeyNotFound
}

// Cache is an optional read-through cache over GetKey lookups.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// Registry wraps a Store with the env fallback and optional cache.
type Registry struct {
	store    Store
	fallback *Key
	cache    Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithFallback installs the env-assembled bootstrap key.
func WithFallback(keyID, publicKeyBase64 string) Option {
	return func(r *Registry) {
		if keyID == "" || publicKeyBase64 == "" {
			return
		}
		r.fallback = &Key{
			KeyID:     keyID,
			Algo:      "ed25519",
			PublicKey: publicKeyBase64,
			Active:    true,
		}
	}
}

// WithCache installs a read-through cache for key lookups.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// New constructs a Registry.
func New(store Store, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{store: store, cacheTTL: 5 * time.Minute, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListActiveKeys returns the active keys, or the fallback key when the
// store has none.
func (r *Registry) ListActiveKeys(ctx context.Context) ([]Key, error) {
	keys, err := r.store.ListActiveKeys(ctx)
	if err != nil {
		if r.fallback != nil {
			r.log.Warn("key registry unavailable, serving fallback key", zap.Error(err))
			return []Key{*r.fallback}, nil
		}
		return nil, err
	}
	if len(keys) == 0 && r.fallback != nil {
		return []Key{*r.fallback}, nil
	}
	return keys, nil
}

// GetKey resolves a key by id, consulting the cache first and falling
// back to the env key when the store has no such id.
func (r *Registry) GetKey(ctx context.Context, keyID string) (Key, error) {
	if keyID == "" {
		return Key{}, ErrKeyNotFound
	}
	cacheKey := "transparency:key:" + keyID
	if r.cache != nil {
		if raw, ok := r.cache.Get(ctx, cacheKey); ok {
			var k Key
			if err := json.Unmarshal([]byte(raw), &k); err == nil {
				return k, nil
			}
		}
	}

	k, err := r.store.GetKey(ctx, keyID)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			if r.fallback != nil && r.fallback.KeyID == keyID {
				r.log.Warn("key registry unavailable, serving fallback key", zap.Error(err))
				return *r.fallback, nil
			}
			return Key{}, fmt.Errorf("key registry lookup: %w", err)
		}
		if r.fallback != nil && r.fallback.KeyID == keyID {
			return *r.fallback, nil
		}
		return Key{}, ErrKeyNotFound
	}

	if r.cache != nil {
		if raw, err := json.Marshal(k); err == nil {
			r.cache.Set(ctx, cacheKey, string(raw), r.cacheTTL)
		}
	}
	return k, nil
}
