// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package signing builds the signable projection of a transparency
// record and signs/verifies it with Ed25519. The projection is a stable
// subset of the stored rows, so an independent verifier can recompute
// it from only the fields the contract defines even as the internal row
// schema grows.
package signing

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/aletheia-ads/transparency/internal/canonical"
	"github.com/aletheia-ads/transparency/internal/record"
)

// Payload builds the signable projection. Candidate order is preserved
// as built.
func Payload(row record.AuctionRow, candidates []record.CandidateRow) map[string]any {
	cands := make([]any, 0, len(candidates))
	for _, c := range candidates {
		cands = append(cands, map[string]any{
			"source":   c.Source,
			"bid_ecpm": c.BidECPM,
			"status":   c.Status,
		})
	}
	return map[string]any{
		"auction": map[string]any{
			"auction_id":      row.AuctionID,
			"publisher_id":    row.PublisherID,
			"timestamp":       row.Timestamp,
			"winner_source":   row.WinnerSource,
			"winner_bid_ecpm": row.WinnerBidECPM,
			"winner_currency": row.WinnerCurrency,
			"winner_reason":   row.WinnerReason,
			"sample_bps":      int(row.SampleBps),
		},
		"candidates": cands,
	}
}

// CanonicalPayload returns the exact byte string a signature covers.
func CanonicalPayload(row record.AuctionRow, candidates []record.CandidateRow) string {
	return canonical.Canonicalize(Payload(row, candidates))
}

// Sign signs the canonical payload and returns the base64 signature.
// Ed25519 hashes internally, so the canonical bytes are signed directly
// with no pre-hash. The second return is false when no usable private
// key is configured; callers treat that as "cannot sign now", not an
// error.
func Sign(row record.AuctionRow, candidates []record.CandidateRow, priv ed25519.PrivateKey) (string, bool) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", false
	}
	msg := CanonicalPayload(row, candidates)
	sig := ed25519.Sign(priv, []byte(msg))
	return base64.StdEncoding.EncodeToString(sig), true
}

// Verify recomputes the canonical payload from stored fields and checks
// the base64 signature against pub.
func Verify(pub ed25519.PublicKey, row record.AuctionRow, candidates []record.CandidateRow, signatureB64 string) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := CanonicalPayload(row, candidates)
	return ed25519.Verify(pub, []byte(msg), sig)
}
