package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"myride/internal/app"
	"myride/internal/config"
	"myride/internal/server"
	"myride/internal/util"
	"myride/pkg/ai"
	"myride/pkg/mail"
	"myride/pkg/queue"
	"myride/pkg/storage"
	"myride/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	documents, err := store.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to init document store: %v", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	sessions, err := newSessionStore(cfg)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	text, images, err := newGenerators(cfg)
	if err != nil {
		log.Fatalf("failed to init ai clients: %v", err)
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		log.Fatalf("failed to init mailer: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:          documents,
		Sessions:       sessions,
		Objects:        objects,
		Text:           text,
		Images:         images,
		Mailer:         mailer,
		FromEmail:      cfg.FromEmail,
		AICallTimeout:  time.Duration(cfg.AICallTimeoutSeconds) * time.Second,
		PresignExpiry:  time.Duration(cfg.PresignExpiryMinutes) * time.Minute,
		MaxAttachments: cfg.MaxAttachments,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		MaxUploadBytes:           cfg.MaxUploadBytes,
		TrustedProxyCIDRs:        cfg.TrustedProxyCIDRs,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// newMailer builds the outbound mail path. With Redis available, sends are
// queued on a stream and delivered by background workers with retries;
// without it, SMTP is called inline.
func newMailer(cfg config.FileConfig) (mail.Mailer, error) {
	if cfg.SMTPAddr == "" {
		return nil, nil
	}
	smtpMailer, err := mail.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		return smtpMailer, nil
	}
	mailQueue, err := queue.NewRedisMailQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, err
	}
	mailQueue.Start(context.Background(), 2, func(_ context.Context, job queue.MailJob) error {
		return smtpMailer.Send(job.From, job.To, job.Subject, job.Body)
	})
	return mailQueue, nil
}

func newSessionStore(cfg config.FileConfig) (store.SessionStore, error) {
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if cfg.SessionBackend == "jwt" {
		revoker := store.TokenRevoker(store.NewMemoryTokenRevoker())
		if cfg.RedisAddr != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		}
		return store.NewJWTSessionStore(cfg.JWTSecret, ttl, revoker)
	}
	return store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, ttl), nil
}

func newGenerators(cfg config.FileConfig) (ai.TextGenerator, ai.ImageGenerator, error) {
	var text ai.TextGenerator
	switch cfg.AIProvider {
	case "gemini":
		client, err := ai.NewGeminiClient(cfg.AIAPIKey)
		if err != nil {
			return nil, nil, err
		}
		text = ai.NewGeminiGenerator(client, cfg.AIModel, cfg.AIMaxTokens)
	case "openai":
		text = ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AIMaxTokens)
	case "ollama":
		text = ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.AIBaseURL), cfg.AIModel)
	}

	var images ai.ImageGenerator
	if cfg.ImageProviderBaseURL != "" {
		images = ai.NewOpenAICompatImageGenerator(cfg.ImageProviderBaseURL, cfg.ImageProviderAPIKey, cfg.ImageModel)
	}
	return text, images, nil
}
