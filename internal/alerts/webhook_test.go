// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package alerts

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmitDeliversSignedPayload(t *testing.T) {
	require := require.New(t)

	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r
		bodies <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "hook-secret", time.Second, nil)
	wh.Emit("transparency.write_failed", SeverityWarning, map[string]any{"stage": "auction_row"})

	select {
	case r := <-received:
		body := <-bodies

		var payload map[string]any
		require.NoError(json.Unmarshal(body, &payload))
		require.Equal("transparency.write_failed", payload["event"])
		require.Equal("warning", payload["severity"])
		require.NotEmpty(payload["event_id"])

		mac := hmac.New(sha256.New, []byte("hook-secret"))
		mac.Write(body)
		require.Equal(hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-Signature"))
		require.Equal("transparency.write_failed", r.Header.Get("X-Event-Type"))
	case <-time.After(2 * time.Second):
		t.Fatal("alert never delivered")
	}
}

func TestEmitDoesNotRetryClientErrors(t *testing.T) {
	require := require.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "", time.Second, nil)
	wh.Emit("transparency.write_failed", SeverityCritical, nil)

	time.Sleep(500 * time.Millisecond)
	require.Equal(int32(1), calls.Load())
}

func TestEmitRetriesServerErrors(t *testing.T) {
	require := require.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "", time.Second, nil)
	wh.Emit("transparency.write_failed", SeverityCritical, nil)

	deadline := time.After(2 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 attempts, saw %d", calls.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
	require.Equal(int32(2), calls.Load())
}

func TestEmitWithoutURLIsLogOnly(t *testing.T) {
	// Must not panic or block.
	wh := NewWebhook("", "", time.Second, nil)
	wh.Emit("transparency.write_failed", SeverityInfo, map[string]any{"k": "v"})
}
