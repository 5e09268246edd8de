// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verify recomputes the canonical signable payload from stored
// transparency rows and checks the recorded signature against the key
// registry. Read-only and stateless per request.
package verify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/aletheia-ads/transparency/internal/keyreg"
	"github.com/aletheia-ads/transparency/internal/record"
	"github.com/aletheia-ads/transparency/internal/signing"
)

// Status classifies a verification outcome.
type Status string

const (
	StatusPass          Status = "pass"
	StatusFail          Status = "fail"
	StatusNotApplicable Status = "not_applicable"
	StatusUnknownKey    Status = "unknown_key"
)

// MaxCanonicalBytes caps the echoed canonical string.
const MaxCanonicalBytes = 32 * 1024

// ErrPublisherMismatch is returned when the requesting publisher does
// not own the auction record.
var ErrPublisherMismatch = errors.New("auction belongs to a different publisher")

// RowStore reads stored transparency rows.
type RowStore interface {
	Auction(ctx context.Context, auctionID string) (record.AuctionRow, error)
	Candidates(ctx context.Context, auctionID string) ([]record.CandidateRow, error)
}

// KeyResolver resolves signing keys by id.
type KeyResolver interface {
	GetKey(ctx context.Context, keyID string) (keyreg.Key, error)
}

// CanonicalEcho carries the canonical payload back to the caller,
// capped at MaxCanonicalBytes.
type CanonicalEcho struct {
	String    string `json:"string"`
	Truncated bool   `json:"truncated"`
	SizeBytes int    `json:"size_bytes"`
}

// Result is a verification outcome.
type Result struct {
	Status    Status         `json:"status"`
	KeyID     string         `json:"key_id,omitempty"`
	Canonical *CanonicalEcho `json:"canonical,omitempty"`
}

// Verifier checks stored signatures.
type Verifier struct {
	rows RowStore
	keys KeyResolver
	log  *zap.Logger
}

// New constructs a Verifier.
func New(rows RowStore, keys KeyResolver, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{rows: rows, keys: keys, log: log}
}

// Verify loads the record for auctionID, checks ownership against
// requesterPublisherID, and classifies the stored signature.
// Returns record.ErrNotFound for unknown auctions and
// ErrPublisherMismatch for foreign ones; all other outcomes are
// expressed as a Result status.
func (v *Verifier) Verify(ctx context.Context, auctionID, requesterPublisherID string, includeCanonical bool) (Result, error) {
	row, err := v.rows.Auction(ctx, auctionID)
	if err != nil {
		return Result{}, err
	}
	if row.PublisherID != requesterPublisherID {
		return Result{}, ErrPublisherMismatch
	}

	if row.IntegritySignature == "" {
		// Never sampled or never signed; nothing to check.
		return Result{Status: StatusNotApplicable}, nil
	}

	key, err := v.keys.GetKey(ctx, row.IntegrityKeyID)
	if err != nil {
		if errors.Is(err, keyreg.ErrKeyNotFound) {
			return Result{Status: StatusUnknownKey, KeyID: row.IntegrityKeyID}, nil
		}
		return Result{}, err
	}
	pub, err := signing.ParsePublicKey(key.PublicKey)
	if err != nil {
		// A registry entry that cannot be parsed is as unusable as a
		// missing one.
		v.log.Warn("registry key unparsable",
			zap.String("key_id", row.IntegrityKeyID), zap.Error(err))
		return Result{Status: StatusUnknownKey, KeyID: row.IntegrityKeyID}, nil
	}

	cands, err := v.rows.Candidates(ctx, auctionID)
	if err != nil {
		return Result{}, err
	}

	res := Result{KeyID: row.IntegrityKeyID, Status: StatusFail}
	if signing.Verify(pub.Key, row, cands, row.IntegritySignature) {
		res.Status = StatusPass
	}
	if includeCanonical {
		res.Canonical = echo(signing.CanonicalPayload(row, cands))
	}
	return res, nil
}

func echo(canonical string) *CanonicalEcho {
	e := &CanonicalEcho{String: canonical, SizeBytes: len(canonical)}
	if len(canonical) > MaxCanonicalBytes {
		e.String = canonical[:MaxCanonicalBytes]
		e.Truncated = true
	}
	return e
}
