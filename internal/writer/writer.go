// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package writer is the resilient pipeline that persists transparency
// records: sampling gate, row build, signing, retried inserts behind a
// consecutive-failure circuit breaker. It never surfaces an error into
// the auction-serving path; every failure degrades to counters, logs
// and alerts.
package writer

import (
	"context"
	"crypto/ed25519"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aletheia-ads/transparency/internal/record"
	"github.com/aletheia-ads/transparency/internal/sampling"
	"github.com/aletheia-ads/transparency/internal/signing"
)

// Sink is the narrow insert surface of the analytics store. rows are
// homogeneous per call: record.AuctionRow for record.TableAuctions,
// record.CandidateRow for record.TableCandidates.
type Sink interface {
	Insert(ctx context.Context, table string, rows []any) error
}

// Alerter delivers fire-and-forget operational alerts.
type Alerter interface {
	Emit(event, severity string, details map[string]any)
}

// Clock provides current time; injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds the pipeline's economic and resilience parameters,
// snapshotted into every row at write time.
type Config struct {
	Enabled    bool
	SampleBps  int
	FeeBp      int
	KeyID      string
	PrivateKey ed25519.PrivateKey

	BreakerThreshold int
	BreakerCooldown  time.Duration
	RetryAttempts    int
	RetryMinDelay    time.Duration
	RetryMaxDelay    time.Duration
}

func (c *Config) applyDefaults() {
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 60 * time.Second
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 3
	}
	if c.RetryMinDelay <= 0 {
		c.RetryMinDelay = 50 * time.Millisecond
	}
	if c.RetryMaxDelay < c.RetryMinDelay {
		c.RetryMaxDelay = 250 * time.Millisecond
	}
}

// Writer persists transparency records. One instance is shared by all
// in-flight auctions; breaker state and counters are safe for
// concurrent use.
type Writer struct {
	cfg    Config
	sink   Sink
	alerts Alerter
	log    *zap.Logger
	clock  Clock
	sleep  func(time.Duration)

	ctr  counters
	prom *promMetrics

	mu           sync.Mutex
	failStreak   int
	openUntil    time.Time
	signFailOnce sync.Once
}

// New constructs a Writer. reg may be nil to skip prometheus
// registration (tests).
func New(cfg Config, sink Sink, alerts Alerter, log *zap.Logger, reg prometheus.Registerer) *Writer {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		cfg:    cfg,
		sink:   sink,
		alerts: alerts,
		log:    log,
		clock:  realClock{},
		sleep:  time.Sleep,
		prom:   newPromMetrics(reg),
	}
}

// SetClock replaces the clock. Intended for tests.
func (w *Writer) SetClock(c Clock) { w.clock = c }

// SetSleep replaces the inter-retry sleep. Intended for tests.
func (w *Writer) SetSleep(f func(time.Duration)) { w.sleep = f }

// Observe records one completed auction. It blocks only the calling
// auction's own write path, bounded by the retry budget, and never
// returns an error to the caller.
func (w *Writer) Observe(ctx context.Context, obs record.Observation) {
	if !w.cfg.Enabled || len(w.cfg.PrivateKey) == 0 || w.cfg.SampleBps <= 0 {
		w.markUnsampled()
		return
	}
	publisherID := record.PublisherID(obs.Request)
	if publisherID == "" {
		w.markUnsampled()
		return
	}
	if !sampling.ShouldSample(publisherID, obs.AuctionID, w.cfg.SampleBps) {
		w.markUnsampled()
		return
	}
	if w.breakerIsOpen() {
		w.ctr.breakerSkipped.Add(1)
		w.prom.breakerSkipped.Inc()
		return
	}

	w.ctr.sampled.Add(1)
	w.prom.sampled.Inc()
	w.ctr.writesAttempted.Add(1)
	w.prom.writesAttempted.Inc()

	row, cands := record.Build(obs, w.clock.Now(), w.cfg.FeeBp, w.cfg.SampleBps)
	sig, ok := signing.Sign(row, cands, w.cfg.PrivateKey)
	if !ok {
		w.ctr.writesFailed.Add(1)
		w.prom.writesFailed.WithLabelValues("false").Inc()
		// Logged once per process: a malformed key fails every auction
		// identically and retrying cannot fix it.
		w.signFailOnce.Do(func() {
			w.log.Error("transparency signing unavailable, writes skipped",
				zap.String("key_id", w.cfg.KeyID))
		})
		return
	}
	row.IntegrityKeyID = w.cfg.KeyID
	row.IntegritySignature = sig

	if err := w.insertWithRetry(ctx, record.TableAuctions, []any{row}); err != nil {
		w.onTerminalFailure(err, obs.AuctionID, "auction_row", false)
		return
	}

	if len(cands) > 0 {
		rows := make([]any, len(cands))
		for i, c := range cands {
			rows[i] = c
		}
		if err := w.insertWithRetry(ctx, record.TableCandidates, rows); err != nil {
			// The auction row persisted; only candidate detail was lost.
			w.onTerminalFailure(err, obs.AuctionID, "candidate_rows", true)
			return
		}
	}
	w.onSuccess()
}

// insertWithRetry attempts the insert up to 1+RetryAttempts times,
// sleeping a uniformly random delay in [RetryMinDelay, RetryMaxDelay]
// between attempts. Uniform jitter rather than an exponential curve:
// many concurrent auctions must not synchronize their retries.
// Non-transient errors abort immediately.
func (w *Writer) insertWithRetry(ctx context.Context, table string, rows []any) error {
	var err error
	for attempt := 0; attempt <= w.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			w.prom.retryAttempts.Inc()
			w.sleep(w.jitter())
		}
		err = w.sink.Insert(ctx, table, rows)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
	}
	return err
}

func (w *Writer) jitter() time.Duration {
	span := w.cfg.RetryMaxDelay - w.cfg.RetryMinDelay
	if span <= 0 {
		return w.cfg.RetryMinDelay
	}
	return w.cfg.RetryMinDelay + time.Duration(rand.Int63n(int64(span)+1))
}

func (w *Writer) breakerIsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clock.Now().Before(w.openUntil)
}

func (w *Writer) markUnsampled() {
	w.ctr.unsampled.Add(1)
	w.prom.unsampled.Inc()
}

func (w *Writer) onSuccess() {
	w.ctr.writesSucceeded.Add(1)
	w.prom.writesSucceeded.Inc()
	w.ctr.lastSuccessMs.Store(unixMs(w.clock.Now()))

	w.mu.Lock()
	w.failStreak = 0
	w.openUntil = time.Time{}
	w.mu.Unlock()

	w.ctr.failureStreak.Store(0)
	w.prom.failureStreak.Set(0)
	w.prom.breakerOpen.Set(0)
}

func (w *Writer) onTerminalFailure(err error, auctionID, stage string, partial bool) {
	w.ctr.writesFailed.Add(1)
	if partial {
		w.prom.writesFailed.WithLabelValues("true").Inc()
	} else {
		w.prom.writesFailed.WithLabelValues("false").Inc()
	}
	w.ctr.lastFailureMs.Store(unixMs(w.clock.Now()))

	w.mu.Lock()
	w.failStreak++
	streak := w.failStreak
	opened := false
	if streak >= w.cfg.BreakerThreshold {
		w.openUntil = w.clock.Now().Add(w.cfg.BreakerCooldown)
		opened = true
	}
	w.mu.Unlock()

	w.ctr.failureStreak.Store(int64(streak))
	w.prom.failureStreak.Set(float64(streak))
	if opened {
		w.prom.breakerOpen.Set(1)
	}

	msg, code, transient := sanitizeError(err)
	w.log.Warn("transparency write failed",
		zap.String("auction_id", auctionID),
		zap.String("stage", stage),
		zap.Bool("partial", partial),
		zap.Bool("transient", transient),
		zap.Int("status_code", code),
		zap.Int("failure_streak", streak),
		zap.Bool("breaker_opened", opened),
		zap.String("error", msg),
	)

	severity := "critical"
	if transient {
		// Transient errors already consumed the retry budget.
		severity = "warning"
	}
	if w.alerts != nil {
		w.alerts.Emit("transparency.write_failed", severity, map[string]any{
			"stage":          stage,
			"partial":        partial,
			"transient":      transient,
			"status_code":    code,
			"failure_streak": streak,
			"breaker_opened": opened,
		})
	}
}
