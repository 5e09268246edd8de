// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the transparency HTTP surface: key listing,
// auction verification for publishers, and the internal ingest endpoint
// the auction engine posts completed auctions to.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aletheia-ads/transparency/internal/keyreg"
	"github.com/aletheia-ads/transparency/internal/record"
	"github.com/aletheia-ads/transparency/internal/verify"
	"github.com/aletheia-ads/transparency/internal/writer"
)

// publisherHeader carries the authenticated caller's publisher id,
// injected by the platform gateway in front of this service.
const publisherHeader = "X-Publisher-ID"

// AuctionVerifier checks a stored auction record.
type AuctionVerifier interface {
	Verify(ctx context.Context, auctionID, requesterPublisherID string, includeCanonical bool) (verify.Result, error)
}

// KeyLister lists the active registry keys.
type KeyLister interface {
	ListActiveKeys(ctx context.Context) ([]keyreg.Key, error)
}

// Observer accepts completed auctions for transparency recording.
type Observer interface {
	Observe(ctx context.Context, obs record.Observation)
	Stats() writer.Stats
}

// Server wires the HTTP handlers.
type Server struct {
	verifier AuctionVerifier
	keys     KeyLister
	observer Observer
	enabled  bool
	log      *zap.Logger
}

// NewServer constructs a Server.
func NewServer(verifier AuctionVerifier, keys KeyLister, observer Observer, enabled bool, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		verifier: verifier,
		keys:     keys,
		observer: observer,
		enabled:  enabled,
		log:      log,
	}
}

// Register mounts all routes on the router.
func (s *Server) Register(r *gin.Engine, reg prometheus.Gatherer) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "transparency"})
	})
	if reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	r.GET("/keys", s.requireEnabled, s.handleListKeys)
	r.GET("/auctions/:id/verify", s.requireEnabled, s.requirePublisher, s.handleVerify)

	internal := r.Group("/internal")
	{
		internal.POST("/observe", s.handleObserve)
		internal.GET("/stats", s.handleStats)
	}
}

// requireEnabled fails the whole surface with 503 when the feature flag
// is off.
func (s *Server) requireEnabled(c *gin.Context) {
	if !s.enabled {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "transparency disabled"})
		return
	}
	c.Next()
}

// requirePublisher extracts the authenticated publisher id.
func (s *Server) requirePublisher(c *gin.Context) {
	publisherID := strings.TrimSpace(c.GetHeader(publisherHeader))
	if publisherID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing publisher identity"})
		return
	}
	c.Set("publisher_id", publisherID)
	c.Next()
}

func (s *Server) handleListKeys(c *gin.Context) {
	keys, err := s.keys.ListActiveKeys(c.Request.Context())
	if err != nil {
		s.log.Error("key listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "key registry unavailable"})
		return
	}
	out := make([]gin.H, 0, len(keys))
	for _, k := range keys {
		out = append(out, gin.H{"key_id": k.KeyID, "algo": k.Algo, "active": k.Active})
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

func (s *Server) handleVerify(c *gin.Context) {
	includeCanonical, err := parseCanonicalFlag(c.Query("includeCanonical"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	publisherID := c.GetString("publisher_id")
	auctionID := c.Param("id")

	res, err := s.verifier.Verify(c.Request.Context(), auctionID, publisherID, includeCanonical)
	switch {
	case err == nil:
	case errors.Is(err, record.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown auction"})
		return
	case errors.Is(err, verify.ErrPublisherMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "not your auction"})
		return
	default:
		s.log.Error("verification failed",
			zap.String("auction_id", auctionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification unavailable"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleObserve(c *gin.Context) {
	var obs record.Observation
	if err := c.ShouldBindJSON(&obs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid observation"})
		return
	}
	if obs.AuctionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "auction_id required"})
		return
	}
	// Detached from the request context: transparency writing is
	// fire-and-forget relative to the auction response.
	go s.observer.Observe(context.Background(), obs)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.observer.Stats())
}

// parseCanonicalFlag accepts true/1/yes case-insensitively. An absent
// flag means false; anything else is a validation error.
func parseCanonicalFlag(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true, nil
	default:
		return false, errors.New("includeCanonical must be one of true, 1, yes")
	}
}
