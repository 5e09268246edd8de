// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package writer

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counters is the atomics-backed mirror of the pipeline's prometheus
// metrics. Safe to poll concurrently with writes.
type counters struct {
	writesAttempted atomic.Uint64
	writesSucceeded atomic.Uint64
	writesFailed    atomic.Uint64
	sampled         atomic.Uint64
	unsampled       atomic.Uint64
	breakerSkipped  atomic.Uint64

	failureStreak atomic.Int64
	lastFailureMs atomic.Int64
	lastSuccessMs atomic.Int64
}

// Stats is a point-in-time snapshot of pipeline counters and gauges.
type Stats struct {
	WritesAttempted     uint64 `json:"writes_attempted"`
	WritesSucceeded     uint64 `json:"writes_succeeded"`
	WritesFailed        uint64 `json:"writes_failed"`
	Sampled             uint64 `json:"sampled"`
	Unsampled           uint64 `json:"unsampled"`
	BreakerSkipped      uint64 `json:"breaker_skipped"`
	BreakerOpen         bool   `json:"breaker_open"`
	FailureStreak       int64  `json:"failure_streak"`
	CooldownRemainingMs int64  `json:"cooldown_remaining_ms"`
	LastFailureUnixMs   int64  `json:"last_failure_unix_ms,omitempty"`
	LastSuccessUnixMs   int64  `json:"last_success_unix_ms,omitempty"`
}

type promMetrics struct {
	writesAttempted prometheus.Counter
	writesSucceeded prometheus.Counter
	writesFailed    *prometheus.CounterVec
	sampled         prometheus.Counter
	unsampled       prometheus.Counter
	breakerSkipped  prometheus.Counter
	breakerOpen     prometheus.Gauge
	failureStreak   prometheus.Gauge
	retryAttempts   prometheus.Counter
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	m := &promMetrics{
		writesAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transparency_writes_attempted_total",
			Help: "Sampled auctions for which a write was attempted",
		}),
		writesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transparency_writes_succeeded_total",
			Help: "Transparency records fully persisted",
		}),
		writesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transparency_writes_failed_total",
			Help: "Terminal write failures; partial=true means the auction row persisted but candidates did not",
		}, []string{"partial"}),
		sampled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transparency_sampled_total",
			Help: "Auctions selected by the sampling gate",
		}),
		unsampled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transparency_unsampled_total",
			Help: "Auctions skipped by config, missing publisher, or sampling",
		}),
		breakerSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transparency_breaker_skipped_total",
			Help: "Sampled auctions skipped because the circuit breaker was open",
		}),
		breakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transparency_breaker_open",
			Help: "1 while the circuit breaker is open",
		}),
		failureStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transparency_failure_streak",
			Help: "Consecutive terminal write failures",
		}),
		retryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transparency_insert_retries_total",
			Help: "Insert attempts beyond the first, across all writes",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.writesAttempted, m.writesSucceeded, m.writesFailed,
			m.sampled, m.unsampled, m.breakerSkipped,
			m.breakerOpen, m.failureStreak, m.retryAttempts,
		)
	}
	return m
}

// Stats returns a snapshot of the pipeline's counters and gauges.
func (w *Writer) Stats() Stats {
	now := w.clock.Now()
	w.mu.Lock()
	openUntil := w.openUntil
	w.mu.Unlock()

	var remaining int64
	open := now.Before(openUntil)
	if open {
		remaining = openUntil.Sub(now).Milliseconds()
	}
	return Stats{
		WritesAttempted:     w.ctr.writesAttempted.Load(),
		WritesSucceeded:     w.ctr.writesSucceeded.Load(),
		WritesFailed:        w.ctr.writesFailed.Load(),
		Sampled:             w.ctr.sampled.Load(),
		Unsampled:           w.ctr.unsampled.Load(),
		BreakerSkipped:      w.ctr.breakerSkipped.Load(),
		BreakerOpen:         open,
		FailureStreak:       w.ctr.failureStreak.Load(),
		CooldownRemainingMs: remaining,
		LastFailureUnixMs:   w.ctr.lastFailureMs.Load(),
		LastSuccessUnixMs:   w.ctr.lastSuccessMs.Load(),
	}
}

func unixMs(t time.Time) int64 { return t.UnixMilli() }
