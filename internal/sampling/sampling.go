// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sampling decides which auctions receive a transparency record.
package sampling

import (
	"crypto/sha256"
	"encoding/binary"
)

// ShouldSample reports whether the auction identified by (publisherID,
// auctionID) falls inside the sampled fraction expressed in basis points.
// The gate is a keyed hash, not a random draw: repeated calls with the
// same inputs always agree, so a sampling decision can be re-derived
// during an audit.
func ShouldSample(publisherID, auctionID string, sampleBps int) bool {
	if sampleBps >= 10000 {
		return true
	}
	if sampleBps <= 0 {
		return false
	}
	h := sha256.Sum256([]byte(publisherID + auctionID))
	v := binary.BigEndian.Uint16(h[:2]) % 10000
	return int(v) < sampleBps
}
