package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	adminhub "github.com/MrEthical07/adminhub"
	"github.com/MrEthical07/adminhub/httpd"
	"github.com/MrEthical07/adminhub/mailer"
	"github.com/MrEthical07/adminhub/media"
	promexport "github.com/MrEthical07/adminhub/metrics/export/prometheus"
	"github.com/MrEthical07/adminhub/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	if err := postgres.RunMigrations(ctx, cfg.PostgresDSN); err != nil {
		return err
	}
	pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	engineCfg, err := buildEngineConfig(cfg)
	if err != nil {
		return err
	}

	engine, err := adminhub.New().
		WithConfig(engineCfg).
		WithRedis(redisClient).
		WithAccountProvider(postgres.NewAccountStore(pool)).
		WithAuditSink(adminhub.NewJSONWriterSink(os.Stdout)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	var mediaClient httpd.MediaClient
	if cfg.S3Bucket != "" {
		mc, err := media.NewClient(ctx, media.Config{
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3Endpoint,
			PublicURL:    cfg.S3PublicURL,
		})
		if err != nil {
			return err
		}
		mediaClient = mc
	}

	var mail httpd.MailSender
	if cfg.RabbitURL != "" {
		m, err := mailer.New(cfg.RabbitURL, cfg.MailQueue)
		if err != nil {
			return err
		}
		defer m.Close()
		mail = m
	}

	server := httpd.NewServer(
		engine,
		postgres.NewContentStore(pool),
		mediaClient,
		mail,
		pool,
		promexport.NewPrometheusExporter(engine).Handler(),
		logger,
		httpd.Config{
			RefreshTTL:    engineCfg.JWT.RefreshTTL,
			SecureCookies: engineCfg.Security.RequireSecureCookies,
			SameSite:      engineCfg.Security.SameSitePolicy,
		},
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildEngineConfig(cfg processConfig) (adminhub.Config, error) {
	engineCfg := adminhub.DefaultConfig()

	engineCfg.JWT.AccessTTL = cfg.AccessTTL
	engineCfg.JWT.RefreshTTL = cfg.RefreshTTL
	engineCfg.JWT.Issuer = cfg.JWTIssuer
	engineCfg.JWT.SigningMethod = cfg.SigningMethod
	engineCfg.Account.AllowRegistration = cfg.AllowRegistration
	engineCfg.Audit.Enabled = true
	engineCfg.Security.ProductionMode = cfg.ProductionMode
	if cfg.ProductionMode {
		engineCfg.Security.RequireSecureCookies = true
		engineCfg.Security.SameSitePolicy = http.SameSiteNoneMode
	}

	switch cfg.SigningMethod {
	case "hs256":
		if cfg.JWTSecret == "" {
			return adminhub.Config{}, errors.New("hs256 requires ADMINHUB_JWT_SECRET")
		}
		engineCfg.JWT.PrivateKey = []byte(cfg.JWTSecret)
	case "ed25519":
		priv, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return adminhub.Config{}, err
		}
		pub, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return adminhub.Config{}, err
		}
		engineCfg.JWT.PrivateKey = priv
		engineCfg.JWT.PublicKey = pub
	default:
		return adminhub.Config{}, errors.New("unsupported signing method")
	}

	return engineCfg, nil
}
