// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package keyreg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Querier is the slice of pgxpool.Pool this store needs; pgxmock
// implements it for tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore reads signing keys from Postgres.
type PGStore struct {
	db Querier
}

// NewPGStore constructs a PGStore over an open pool.
func NewPGStore(db Querier) *PGStore {
	return &PGStore{db: db}
}

// ListActiveKeys returns all active keys.
func (s *PGStore) ListActiveKeys(ctx context.Context) ([]Key, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key_id, algo, public_key, active FROM signing_keys WHERE active = true ORDER BY key_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.KeyID, &k.Algo, &k.PublicKey, &k.Active); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetKey returns a key by id, active or retired.
func (s *PGStore) GetKey(ctx context.Context, keyID string) (Key, error) {
	var k Key
	err := s.db.QueryRow(ctx,
		`SELECT key_id, algo, public_key, active FROM signing_keys WHERE key_id = $1`, keyID).
		Scan(&k.KeyID, &k.Algo, &k.PublicKey, &k.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Key{}, ErrKeyNotFound
	}
	if err != nil {
		return Key{}, err
	}
	return k, nil
}
