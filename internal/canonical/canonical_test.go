// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package canonical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectKeyOrderIndependence(t *testing.T) {
	require := require.New(t)

	a := map[string]any{"a": 1, "b": 2}
	b := map[string]any{"b": 2, "a": 1}

	require.Equal(Canonicalize(a), Canonicalize(b))
	require.Equal(`{"a":1,"b":2}`, Canonicalize(a))
}

func TestArrayOrderPreserved(t *testing.T) {
	require := require.New(t)

	require.Equal("[1,2]", Canonicalize([]any{1, 2}))
	require.Equal("[2,1]", Canonicalize([]any{2, 1}))
	require.NotEqual(Canonicalize([]any{1, 2}), Canonicalize([]any{2, 1}))
}

func TestNestedStructures(t *testing.T) {
	require := require.New(t)

	v := map[string]any{
		"z": []any{map[string]any{"k": "v", "a": true}},
		"a": map[string]any{"nested": nil},
	}
	require.Equal(`{"a":{"nested":null},"z":[{"a":true,"k":"v"}]}`, Canonicalize(v))
}

func TestNumbers(t *testing.T) {
	require := require.New(t)

	require.Equal("7.01", Canonicalize(7.01))
	require.Equal("10", Canonicalize(10.0))
	require.Equal("0", Canonicalize(0))
	require.Equal("-3.5", Canonicalize(-3.5))
	require.Equal("null", Canonicalize(math.NaN()))
	require.Equal("null", Canonicalize(math.Inf(1)))
	require.Equal("null", Canonicalize(math.Inf(-1)))
}

func TestStringsEscapedWithoutHTMLEscaping(t *testing.T) {
	require := require.New(t)

	require.Equal(`"plain"`, Canonicalize("plain"))
	require.Equal(`"a\"b"`, Canonicalize(`a"b`))
	require.Equal(`"line\nbreak"`, Canonicalize("line\nbreak"))
	// < > & must pass through verbatim.
	require.Equal(`"<ad>&co"`, Canonicalize("<ad>&co"))
}

func TestUnsupportedValuesBecomeNull(t *testing.T) {
	require := require.New(t)

	type opaque struct{ X int }
	require.Equal("null", Canonicalize(opaque{X: 1}))
	require.Equal("null", Canonicalize(nil))
}

func TestDeterministic(t *testing.T) {
	require := require.New(t)

	v := map[string]any{
		"candidates": []any{
			map[string]any{"source": "meta", "bid_ecpm": 10.0, "status": "winner"},
			map[string]any{"source": "unity", "bid_ecpm": 7.0, "status": "loss"},
		},
		"auction": map[string]any{"auction_id": "a-1", "sample_bps": 500},
	}
	first := Canonicalize(v)
	for i := 0; i < 100; i++ {
		require.Equal(first, Canonicalize(v))
	}
}
