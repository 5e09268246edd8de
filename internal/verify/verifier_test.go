// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package verify

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aletheia-ads/transparency/internal/keyreg"
	"github.com/aletheia-ads/transparency/internal/record"
	"github.com/aletheia-ads/transparency/internal/signing"
)

type memStore struct {
	rows  map[string]record.AuctionRow
	cands map[string][]record.CandidateRow
}

func (s *memStore) Auction(ctx context.Context, id string) (record.AuctionRow, error) {
	row, ok := s.rows[id]
	if !ok {
		return record.AuctionRow{}, record.ErrNotFound
	}
	return row, nil
}

func (s *memStore) Candidates(ctx context.Context, id string) ([]record.CandidateRow, error) {
	return s.cands[id], nil
}

type memKeys struct {
	keys map[string]keyreg.Key
}

func (k *memKeys) GetKey(ctx context.Context, keyID string) (keyreg.Key, error) {
	key, ok := k.keys[keyID]
	if !ok {
		return keyreg.Key{}, keyreg.ErrKeyNotFound
	}
	return key, nil
}

// signedFixture builds a signed record the way the writer does.
func signedFixture(t *testing.T, nCandidates int) (*memStore, *memKeys, string) {
	t.Helper()
	require := require.New(t)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(err)

	bids := make([]record.Bid, 0, nCandidates)
	for i := 0; i < nCandidates; i++ {
		bids = append(bids, record.Bid{
			Source:   fmt.Sprintf("bidder-%03d", i),
			PriceCPM: float64(nCandidates-i) + 0.5,
			Currency: "USD",
		})
	}
	obs := record.Observation{
		AuctionID: "auc-1",
		Succeeded: nCandidates > 0,
		Bids:      bids,
	}
	row, cands := record.Build(obs, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), 1500, 500)
	row.PublisherID = "pub-1"

	sig, ok := signing.Sign(row, cands, priv)
	require.True(ok)
	row.IntegrityKeyID = "key-1"
	row.IntegritySignature = sig

	store := &memStore{
		rows:  map[string]record.AuctionRow{"auc-1": row},
		cands: map[string][]record.CandidateRow{"auc-1": cands},
	}
	keys := &memKeys{keys: map[string]keyreg.Key{
		"key-1": {KeyID: "key-1", Algo: "ed25519", PublicKey: base64.StdEncoding.EncodeToString(pub), Active: true},
	}}
	return store, keys, "auc-1"
}

func TestVerifyPass(t *testing.T) {
	require := require.New(t)

	store, keys, id := signedFixture(t, 3)
	v := New(store, keys, nil)

	res, err := v.Verify(context.Background(), id, "pub-1", false)
	require.NoError(err)
	require.Equal(StatusPass, res.Status)
	require.Equal("key-1", res.KeyID)
	require.Nil(res.Canonical)
}

func TestVerifyFailOnFlippedSignatureByte(t *testing.T) {
	require := require.New(t)

	store, keys, id := signedFixture(t, 3)
	row := store.rows[id]
	raw, err := base64.StdEncoding.DecodeString(row.IntegritySignature)
	require.NoError(err)
	raw[10] ^= 0x01
	row.IntegritySignature = base64.StdEncoding.EncodeToString(raw)
	store.rows[id] = row

	v := New(store, keys, nil)
	res, err := v.Verify(context.Background(), id, "pub-1", false)
	require.NoError(err)
	require.Equal(StatusFail, res.Status)
}

func TestVerifyNotApplicableWithoutSignature(t *testing.T) {
	require := require.New(t)

	store, keys, id := signedFixture(t, 3)
	row := store.rows[id]
	row.IntegritySignature = ""
	store.rows[id] = row

	v := New(store, keys, nil)
	res, err := v.Verify(context.Background(), id, "pub-1", false)
	require.NoError(err)
	require.Equal(StatusNotApplicable, res.Status)
	require.Empty(res.KeyID)
}

func TestVerifyUnknownKey(t *testing.T) {
	require := require.New(t)

	store, keys, id := signedFixture(t, 3)
	row := store.rows[id]
	row.IntegrityKeyID = "retired-key"
	store.rows[id] = row

	v := New(store, keys, nil)
	res, err := v.Verify(context.Background(), id, "pub-1", false)
	require.NoError(err)
	require.Equal(StatusUnknownKey, res.Status)
	require.Equal("retired-key", res.KeyID)
}

func TestVerifyUnparsableKeyTreatedAsUnknown(t *testing.T) {
	require := require.New(t)

	store, keys, id := signedFixture(t, 3)
	keys.keys["key-1"] = keyreg.Key{KeyID: "key-1", Algo: "ed25519", PublicKey: "!!garbage!!", Active: true}

	v := New(store, keys, nil)
	res, err := v.Verify(context.Background(), id, "pub-1", false)
	require.NoError(err)
	require.Equal(StatusUnknownKey, res.Status)
}

func TestVerifyUnknownAuction(t *testing.T) {
	require := require.New(t)

	store, keys, _ := signedFixture(t, 3)
	v := New(store, keys, nil)

	_, err := v.Verify(context.Background(), "missing", "pub-1", false)
	require.ErrorIs(err, record.ErrNotFound)
}

func TestVerifyPublisherMismatch(t *testing.T) {
	require := require.New(t)

	store, keys, id := signedFixture(t, 3)
	v := New(store, keys, nil)

	_, err := v.Verify(context.Background(), id, "pub-other", false)
	require.ErrorIs(err, ErrPublisherMismatch)
}

func TestCanonicalEcho(t *testing.T) {
	require := require.New(t)

	store, keys, id := signedFixture(t, 3)
	v := New(store, keys, nil)

	res, err := v.Verify(context.Background(), id, "pub-1", true)
	require.NoError(err)
	require.Equal(StatusPass, res.Status)
	require.NotNil(res.Canonical)
	require.False(res.Canonical.Truncated)
	require.Equal(len(res.Canonical.String), res.Canonical.SizeBytes)
	require.True(strings.HasPrefix(res.Canonical.String, `{"auction":{`))
}

func TestCanonicalEchoTruncation(t *testing.T) {
	require := require.New(t)

	// Enough candidates to push the canonical payload past 32KiB.
	store, keys, id := signedFixture(t, 800)
	v := New(store, keys, nil)

	res, err := v.Verify(context.Background(), id, "pub-1", true)
	require.NoError(err)
	require.NotNil(res.Canonical)
	require.True(res.Canonical.Truncated)
	require.Len(res.Canonical.String, MaxCanonicalBytes)
	require.Greater(res.Canonical.SizeBytes, MaxCanonicalBytes)
}
