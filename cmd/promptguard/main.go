package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valinor-ai/promptguard/internal/audit"
	"github.com/valinor-ai/promptguard/internal/auth"
	"github.com/valinor-ai/promptguard/internal/correction"
	"github.com/valinor-ai/promptguard/internal/imagecheck"
	"github.com/valinor-ai/promptguard/internal/ocr"
	"github.com/valinor-ai/promptguard/internal/platform/config"
	"github.com/valinor-ai/promptguard/internal/platform/database"
	"github.com/valinor-ai/promptguard/internal/platform/server"
	"github.com/valinor-ai/promptguard/internal/platform/telemetry"
	"github.com/valinor-ai/promptguard/internal/sentinel"
	"github.com/valinor-ai/promptguard/internal/stats"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logging
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("promptguard starting",
		"version", version,
		"port", cfg.Server.Port,
	)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Database is optional; without it logs go to the JSONL file only.
	var pool *database.Pool
	if cfg.Database.URL != "" {
		slog.Info("connecting to database")
		p, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			slog.Warn("database connection failed, starting without DB", "error", err)
		} else {
			pool = p
			defer pool.Close()
		}
	}

	// Statistics counters
	counter, closeCounter := buildCounter(ctx, cfg.Stats)
	defer closeCounter()

	// Audit
	var auditLogger audit.Logger = audit.NopLogger{}
	var auditStore *audit.Store
	var sinkNames []string
	if cfg.Audit.Enabled {
		sinks, names, closers, err := buildAuditSinks(ctx, cfg.Audit, pool)
		if err != nil {
			return err
		}
		for _, c := range closers {
			defer c.Close()
		}
		for _, s := range sinks {
			if st, ok := s.(*audit.Store); ok {
				auditStore = st
			}
		}
		sinks = append(sinks, stats.NewSink(counter))
		names = append(names, "statistics")
		sinkNames = names

		async := audit.NewAsyncLogger(audit.MultiSink(sinks), audit.LoggerConfig{
			BufferSize:    cfg.Audit.BufferSize,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: time.Duration(cfg.Audit.FlushIntervalMs) * time.Millisecond,
		})
		// Registered last so it flushes before the sinks close.
		defer async.Close()
		auditLogger = async
		slog.Info("audit logger started", "sinks", names)
	}
	recorder := audit.NewRecorder(auditLogger)

	// Auth
	var tokenSvc *auth.TokenService
	var devIdentity *auth.Identity
	if cfg.Auth.Enabled {
		if cfg.Auth.JWT.SigningKey == "" {
			return errors.New("auth.jwt.signingkey is required when auth is enabled")
		}
		tokenSvc = auth.NewTokenService(cfg.Auth.JWT.SigningKey, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.ExpiryHours)
		if cfg.Auth.DevMode {
			slog.Warn("running in dev mode, authentication bypassed with 'Bearer dev'")
			devIdentity = &auth.Identity{UserID: "dev-user", DisplayName: "Developer", Roles: []string{"admin"}}
		}
	}

	// Validation core
	validator := sentinel.NewValidator(nil)
	reg := validator.Registry()
	slog.Info("rule registry loaded",
		"patterns", len(reg.Patterns()),
		"keyword_groups", len(reg.KeywordGroups()),
		"keywords", reg.KeywordCount(),
	)

	handlerCfg := sentinel.HandlerConfig{
		MaxPromptBytes:   cfg.Limits.MaxPromptBytes,
		WSAllowedOrigins: cfg.CORS.Origins,
	}
	if tokenSvc != nil {
		handlerCfg.Tokens = tokenSvc
	}
	sentinelHandler := sentinel.NewHandler(validator, recorder, handlerCfg)

	// Image pipeline
	engine := buildOCREngine(cfg.OCR)
	corrClient := buildCorrection(cfg.Correction)
	var corrector imagecheck.Corrector
	if corrClient != nil {
		corrector = corrClient
	}
	pipeline := imagecheck.NewPipeline(engine, corrector, validator, recorder)
	imageHandler := imagecheck.NewHandler(pipeline, cfg.Limits.MaxImageBytes)

	// Query handlers
	var reader audit.Reader
	if auditStore != nil {
		reader = auditStore
	}

	srv := server.New(cfg.Server.Addr(), server.Dependencies{
		Pool:               pool,
		Auth:               tokenSvc,
		DevMode:            cfg.Auth.DevMode,
		DevIdentity:        devIdentity,
		Validator:          validator,
		SentinelHandler:    sentinelHandler,
		ImageHandler:       imageHandler,
		AuditHandler:       audit.NewHandler(reader),
		StatsHandler:       stats.NewHandler(counter),
		OCREngine:          engine,
		Correction:         corrClient,
		AuditSinks:         sinkNames,
		StatsBackend:       counter.Backend(),
		Version:            version,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORS.Origins,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if engine != nil {
		// Probe OCR in the background so the first upload does not pay for it.
		g.Go(func() error {
			slog.Info("ocr engine probed", "engine", engine.Name(), "available", engine.Available())
			return nil
		})
	}

	slog.Info("server ready", "addr", cfg.Server.Addr(), "auth", tokenSvc != nil, "dev_mode", cfg.Auth.DevMode)
	return g.Wait()
}

// buildCounter returns the Redis counter when configured and reachable,
// otherwise an in-memory one.
func buildCounter(ctx context.Context, cfg config.StatsConfig) (stats.Counter, func()) {
	if cfg.RedisURL != "" {
		retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
		rc, err := stats.OpenRedisCounter(ctx, cfg.RedisURL, retention)
		if err == nil {
			return rc, func() { _ = rc.Close() }
		}
		slog.Warn("statistics cache unavailable, counting in memory", "error", err)
	}
	return stats.NewMemoryCounter(), func() {}
}

// buildAuditSinks opens the JSONL file sink and, with a database, the
// Postgres store. The returned closers must be closed after the logger.
func buildAuditSinks(ctx context.Context, cfg config.AuditConfig, pool *database.Pool) ([]audit.Sink, []string, []io.Closer, error) {
	var (
		sinks   []audit.Sink
		names   []string
		closers []io.Closer
	)
	if cfg.FilePath != "" {
		fs, err := audit.NewFileSink(cfg.FilePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening audit file: %w", err)
		}
		sinks = append(sinks, fs)
		names = append(names, "file")
		closers = append(closers, fs)
	}
	if pool != nil {
		store := audit.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, nil, err
		}
		sinks = append(sinks, store)
		names = append(names, "postgres")
	}
	return sinks, names, closers, nil
}

func buildOCREngine(cfg config.OCRConfig) ocr.Engine {
	if !cfg.Enabled {
		return nil
	}
	return ocr.NewTesseract(cfg.Languages, time.Duration(cfg.TimeoutSecs)*time.Second)
}

func buildCorrection(cfg config.CorrectionConfig) *correction.Client {
	if !cfg.Enabled {
		return nil
	}
	c := correction.New(correction.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxRetries: cfg.MaxRetries,
	})
	if !c.Configured() {
		slog.Warn("ocr correction enabled without an API key; results will be uncorrected")
	}
	return c
}
