package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aletheia-ads/transparency/internal/alerts"
	"github.com/aletheia-ads/transparency/internal/api"
	"github.com/aletheia-ads/transparency/internal/config"
	"github.com/aletheia-ads/transparency/internal/keyreg"
	"github.com/aletheia-ads/transparency/internal/signing"
	"github.com/aletheia-ads/transparency/internal/sink"
	"github.com/aletheia-ads/transparency/internal/verify"
	"github.com/aletheia-ads/transparency/internal/writer"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ch, err := sink.Open(ctx, sink.Options{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUsername,
		Password: cfg.ClickHousePassword,
	}, log)
	if err != nil {
		log.Fatal("clickhouse connection failed", zap.Error(err))
	}
	defer ch.Close()
	if err := ch.Bootstrap(ctx); err != nil {
		log.Fatal("schema bootstrap failed", zap.Error(err))
	}

	var priv signing.PrivateKey
	if cfg.PrivateKeyBase64 != "" {
		priv, err = signing.ParsePrivateKey(cfg.PrivateKeyBase64)
		if err != nil {
			log.Fatal("signing key unusable", zap.Error(err))
		}
	}

	webhook := alerts.NewWebhook(cfg.AlertWebhookURL, cfg.AlertWebhookSecret, 5*time.Second, log)

	reg := prometheus.NewRegistry()
	wr := writer.New(writer.Config{
		Enabled:          cfg.Enabled,
		SampleBps:        cfg.SampleBps,
		FeeBp:            cfg.FeeBp,
		KeyID:            cfg.KeyID,
		PrivateKey:       priv.Key,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
		RetryAttempts:    cfg.RetryAttempts,
		RetryMinDelay:    cfg.RetryMinDelay,
		RetryMaxDelay:    cfg.RetryMaxDelay,
	}, ch, webhook, log, reg)

	var store keyreg.Store = keyreg.EmptyStore{}
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal("postgres connection failed", zap.Error(err))
		}
		defer pool.Close()
		store = keyreg.NewPGStore(pool)
	}

	opts := []keyreg.Option{}
	if cfg.KeyID != "" && cfg.PublicKeyBase64 != "" {
		opts = append(opts, keyreg.WithFallback(cfg.KeyID, cfg.PublicKeyBase64))
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		opts = append(opts, keyreg.WithCache(keyreg.NewRedisCache(rdb, log), 5*time.Minute))
	}
	registry := keyreg.New(store, log, opts...)

	verifier := verify.New(ch, registry, log)

	router := setupRouter(api.NewServer(verifier, registry, wr, cfg.Enabled, log), reg)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	log.Info("transparency service started",
		zap.String("addr", cfg.HTTPAddr),
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("sample_bps", cfg.SampleBps))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}

func setupRouter(s *api.Server, reg *prometheus.Registry) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Publisher-ID"}
	router.Use(cors.New(corsCfg))

	s.Register(router, reg)
	return router
}
