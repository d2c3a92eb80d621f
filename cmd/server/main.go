package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"pdfchat/internal/app"
	"pdfchat/internal/config"
	"pdfchat/internal/ratelimit"
	"pdfchat/internal/relay"
	"pdfchat/internal/server"
	"pdfchat/internal/usertoken"
	"pdfchat/internal/util"
	"pdfchat/pkg/ai"
	"pdfchat/pkg/pdftext"
	"pdfchat/pkg/storage"
	"pdfchat/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel)
	if err := util.SetTrustedProxies(cfg.TrustedProxyCidrs); err != nil {
		util.Fatal("failed to parse trusted proxy cidrs", "err", err)
	}

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.JWKSURL,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		Leeway:     time.Duration(cfg.JWTLeeway) * time.Second,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		util.Fatal("failed to init jwks verifier", "err", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to init postgres store", "err", err)
	}

	gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
	if err != nil {
		util.Fatal("failed to init gemini client", "err", err)
	}

	appCore, err := app.New(app.Config{
		Store:     dataStore,
		Extractor: pdftext.NewHTTPExtractor(),
		Generator: ai.NewGeminiGenerator(gemini, cfg.GenerationModel),
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	var files storage.ObjectStore
	var filesDir string
	if cfg.MinioEndpoint != "" {
		files, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			util.Fatal("failed to init minio store", "err", err)
		}
	} else {
		fileStore, err := storage.NewFileStore(cfg.DataDir, cfg.PublicBaseURL)
		if err != nil {
			util.Fatal("failed to init file store", "err", err)
		}
		files = fileStore
		filesDir = fileStore.BasePath()
	}

	var signupLimiter, connectLimiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		signupLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "pdfchat:ratelimit:signup",
			cfg.SignupRateLimitPerMinute, time.Minute)
		if err != nil {
			util.Fatal("failed to init signup limiter", "err", err)
		}
		connectLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "pdfchat:ratelimit:connect",
			cfg.ConnectRateLimitPerMinute, time.Minute)
		if err != nil {
			util.Fatal("failed to init connect limiter", "err", err)
		}
	} else {
		slog.Warn("redis not configured, rate limiting disabled")
	}

	chatRelay := relay.New(relay.NewHub(), tokenVerifier, dataStore, appCore)

	httpServer := server.New(server.Config{
		App:            appCore,
		TokenVerifier:  tokenVerifier,
		Relay:          chatRelay,
		Files:          files,
		FilesDir:       filesDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SignupLimiter:  signupLimiter,
		ConnectLimiter: connectLimiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("pdfchat server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
	}
}
