// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package sampling

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBounds(t *testing.T) {
	require := require.New(t)

	require.True(ShouldSample("pub-1", "auc-1", 10000))
	require.True(ShouldSample("", "", 10000))
	require.True(ShouldSample("pub-1", "auc-1", 20000))
	require.False(ShouldSample("pub-1", "auc-1", 0))
	require.False(ShouldSample("pub-1", "auc-1", -5))
}

func TestDeterministic(t *testing.T) {
	require := require.New(t)

	for i := 0; i < 50; i++ {
		auctionID := fmt.Sprintf("auc-%d", i)
		first := ShouldSample("pub-1", auctionID, 500)
		for j := 0; j < 10; j++ {
			require.Equal(first, ShouldSample("pub-1", auctionID, 500))
		}
	}
}

func TestWiderRateIsSuperset(t *testing.T) {
	require := require.New(t)

	// Any auction sampled at bps must also be sampled at every higher rate.
	for i := 0; i < 2000; i++ {
		auctionID := fmt.Sprintf("auc-%d", i)
		if ShouldSample("pub-7", auctionID, 100) {
			require.True(ShouldSample("pub-7", auctionID, 1000))
			require.True(ShouldSample("pub-7", auctionID, 9999))
		}
	}
}

func TestRateRoughlyProportional(t *testing.T) {
	require := require.New(t)

	const n = 20000
	hits := 0
	for i := 0; i < n; i++ {
		if ShouldSample("pub-rate", fmt.Sprintf("auc-%d", i), 1000) {
			hits++
		}
	}
	// 10% of 20k with generous slack for hash variance.
	require.Greater(hits, 1500)
	require.Less(hits, 2500)
}
