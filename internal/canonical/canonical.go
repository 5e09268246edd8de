// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package canonical renders JSON-compatible values into a single
// deterministic string form. Two processes canonicalizing equivalent
// data must produce byte-identical output, regardless of the order in
// which object keys were assembled; the signing and verification sides
// of the transparency pipeline both depend on this.
package canonical

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Canonicalize returns the canonical string form of v.
//
// Rules:
//   - objects: keys sorted lexicographically
//   - arrays: element order preserved
//   - strings: JSON-escaped, without HTML escaping
//   - numbers: shortest fixed-point form; NaN and infinities become null
//   - booleans: true/false; any unsupported value becomes null
func Canonicalize(v any) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

func writeValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		b.WriteString(escapeString(val))
	case json.Number:
		writeFloat(b, val)
	case float64:
		writeFloat64(b, val)
	case float32:
		writeFloat64(b, float64(val))
	case int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case uint:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(val, 10))
	case map[string]any:
		writeObject(b, val)
	case []any:
		writeArray(b, val)
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		writeArray(b, arr)
	default:
		b.WriteString("null")
	}
}

func writeObject(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeString(k))
		b.WriteByte(':')
		writeValue(b, m[k])
	}
	b.WriteByte('}')
}

func writeArray(b *strings.Builder, arr []any) {
	b.WriteByte('[')
	for i, e := range arr {
		if i > 0 {
			b.WriteByte(',')
		}
		writeValue(b, e)
	}
	b.WriteByte(']')
}

func writeFloat64(b *strings.Builder, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		b.WriteString("null")
		return
	}
	b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
}

func writeFloat(b *strings.Builder, n json.Number) {
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		b.WriteString("null")
		return
	}
	// Integers parsed as json.Number keep their literal form.
	if _, err := n.Int64(); err == nil {
		b.WriteString(n.String())
		return
	}
	b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
}

// escapeString JSON-quotes s without escaping HTML characters.
// encoding/json escapes <, > and & by default, which would make the
// canonical form diverge from a non-Go verifier's output.
func escapeString(s string) string {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	// Encode appends a trailing newline.
	return strings.TrimSuffix(buf.String(), "\n")
}
