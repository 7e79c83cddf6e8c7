package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"soutenance/internal/app"
	"soutenance/internal/config"
	"soutenance/internal/ratelimit"
	"soutenance/internal/server"
	"soutenance/internal/util"
	"soutenance/pkg/ai"
	"soutenance/pkg/notify"
	"soutenance/pkg/storage"
	"soutenance/pkg/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tokenTTL, err := config.ParseTokenTTL(cfg.TokenTTL)
	if err != nil {
		log.Fatalf("failed to parse token TTL: %v", err)
	}
	aiTimeout, err := config.ParseAITimeout(cfg.AITimeout)
	if err != nil {
		log.Fatalf("failed to parse AI timeout: %v", err)
	}
	publishTimeout, err := config.ParsePublishTimeout(cfg.PublishTimeout)
	if err != nil {
		log.Fatalf("failed to parse publish timeout: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	reports, err := newReportStore(cfg)
	if err != nil {
		log.Fatalf("failed to init report storage: %v", err)
	}

	var (
		revoker                       store.TokenRevoker = store.NewMemoryTokenRevoker()
		loginLimiter, registerLimiter *ratelimit.FixedWindowLimiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		revoker = store.NewRedisTokenRevoker(rdb, "soutenance:revoked")
		if cfg.LoginRateLimitPerMinute > 0 {
			loginLimiter, err = ratelimit.NewFixedWindowLimiter(rdb, "soutenance:ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init login rate limiter: %v", err)
			}
		}
		if cfg.RegisterRateLimitPerMinute > 0 {
			registerLimiter, err = ratelimit.NewFixedWindowLimiter(rdb, "soutenance:ratelimit:register", cfg.RegisterRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init register rate limiter: %v", err)
			}
		}
	} else {
		logger.Warn("redis not configured; token revocation is per instance and rate limiting is off")
	}

	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, tokenTTL, revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	advisor, err := ai.NewAdvisorFromConfig(ai.Config{
		Provider:       cfg.AIProvider,
		Model:          cfg.AIModel,
		EmbeddingModel: cfg.AIEmbeddingModel,
		APIKey:         cfg.AIAPIKey,
		BaseURL:        cfg.AIBaseURL,
		Timeout:        aiTimeout,
	})
	if err != nil {
		log.Fatalf("failed to init AI advisor: %v", err)
	}

	publisher, closePublishers, err := newPublisher(cfg)
	if err != nil {
		log.Fatalf("failed to init notifications: %v", err)
	}
	defer closePublishers()

	appCore, err := app.New(app.Config{
		Store:                    db,
		Sessions:                 sessions,
		Reports:                  reports,
		Advisor:                  advisor,
		Publisher:                publisher,
		MaxUploadBytes:           cfg.MaxUploadBytes,
		PublishTimeout:           publishTimeout,
		AllowAnyStatusTransition: cfg.AllowAnyStatusTransition,
		RevealAccountExistence:   cfg.RevealAccountExistence,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if cfg.BootstrapManagerEmail != "" {
		created, err := appCore.EnsureManager(cfg.BootstrapManagerEmail, cfg.BootstrapManagerPassword)
		if err != nil {
			log.Fatalf("failed to bootstrap manager: %v", err)
		}
		if created {
			logger.Info("bootstrap manager created", "email", cfg.BootstrapManagerEmail)
		}
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:             appCore,
		LoginLimiter:    loginLimiter,
		RegisterLimiter: registerLimiter,
		TrustedProxies:  trusted,
		CORS:            util.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr, "storage", cfg.StorageDriver, "ai_provider", cfg.AIProvider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newReportStore(cfg config.FileConfig) (storage.ReportStore, error) {
	if cfg.StorageDriver == config.StorageMinio {
		return storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return storage.NewFileStore(cfg.StorageDir)
}

// newPublisher fans notifications out to every configured channel. The
// returned func closes broker connections.
func newPublisher(cfg config.FileConfig) (notify.Publisher, func(), error) {
	var (
		pubs    notify.Multi
		closers []func() error
	)
	if cfg.AMQPURL != "" {
		p, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		pubs = append(pubs, p)
		closers = append(closers, p.Close)
	}
	if cfg.SMTPHost != "" {
		p, err := notify.NewMailPublisher(notify.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return nil, nil, err
		}
		pubs = append(pubs, p)
	}
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("close publisher", "err", err)
			}
		}
	}
	if len(pubs) == 0 {
		return notify.Nop{}, closeAll, nil
	}
	return pubs, closeAll, nil
}
