// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package alerts delivers fire-and-forget operational alerts to a
// webhook endpoint.
package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Webhook posts alerts to a configured URL. Delivery happens on a
// detached goroutine; the caller never blocks on the alert channel.
type Webhook struct {
	url    string
	secret string
	client *http.Client
	log    *zap.Logger
}

// NewWebhook constructs a Webhook. An empty url degrades to log-only
// alerting.
func NewWebhook(url, secret string, timeout time.Duration, log *zap.Logger) *Webhook {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Emit sends an alert. Fire and forget: failures are logged, never
// returned.
func (w *Webhook) Emit(event, severity string, details map[string]any) {
	w.log.Info("ops alert",
		zap.String("event", event),
		zap.String("severity", severity),
		zap.Any("details", details))
	if w.url == "" {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"event_id":  uuid.NewString(),
		"event":     event,
		"severity":  severity,
		"timestamp": time.Now().Unix(),
		"details":   details,
	})
	if err != nil {
		w.log.Warn("alert payload marshal failed", zap.Error(err))
		return
	}
	go w.deliver(payload, event)
}

func (w *Webhook) deliver(payload []byte, event string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.client.Timeout)
	defer cancel()

	// Two attempts; client errors are not retried.
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(250 * time.Millisecond)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", event)
		if w.secret != "" {
			req.Header.Set("X-Signature", sign(payload, w.secret))
		}

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}
		lastErr = &statusError{code: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}
	w.log.Warn("alert delivery failed", zap.String("event", event), zap.Error(lastErr))
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Nop is an Alerter that does nothing. Useful in tests.
type Nop struct{}

// Emit discards the alert.
func (Nop) Emit(event, severity string, details map[string]any) {}
