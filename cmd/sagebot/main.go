package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sagebot/internal/config"
	"sagebot/internal/httpserver"
	"sagebot/internal/llm"
	"sagebot/internal/poll"
	"sagebot/internal/session"
	"sagebot/internal/telegram"
	"sagebot/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	httpClient := transport.NewHTTPClient(cfg.RequestTimeout)

	gigaHTTP, err := gigaHTTPClient(cfg, logger)
	if err != nil {
		return err
	}
	gigaAuth := llm.NewGigaAuth(cfg.Giga.Credentials, cfg.Giga.Scope, cfg.Giga.AuthURL, gigaHTTP)

	backends := map[session.Backend]llm.Responder{
		session.BackendGiga: llm.NewGigaBackend(llm.GigaBackendConfig{
			Client: llm.NewGigaChatClient(cfg.Giga, gigaHTTP, gigaAuth),
			Model:  cfg.Giga.Model,
			Logger: logger.With(slog.String("backend", string(session.BackendGiga))),
		}),
		session.BackendYandex: llm.NewYandexBackend(llm.YandexBackendConfig{
			Client:      llm.NewYandexClient(cfg.Yandex, httpClient, logger),
			Temperature: cfg.Yandex.Temperature,
			Poll: poll.Policy{
				Interval:    cfg.Yandex.PollInterval,
				MaxAttempts: cfg.Yandex.PollMaxAttempts,
				Timeout:     cfg.Yandex.PollTimeout,
			},
			Logger: logger.With(slog.String("backend", string(session.BackendYandex))),
		}),
	}

	bot, err := telegram.NewAPIBotClient(cfg.Telegram, httpClient, logger)
	if err != nil {
		return err
	}
	logger.Info("authorized on telegram", slog.String("username", bot.Username()))

	dispatcher := telegram.NewDispatcher(telegram.DispatcherDeps{
		Store:    session.NewMemoryStore(cfg.SessionCapacity),
		Backends: backends,
		Bot:      bot,
		Logger:   logger,
	})

	if cfg.Telegram.Mode == config.ModeWebhook {
		return serveWebhook(ctx, cfg, bot, dispatcher, logger)
	}

	// Telegram не отдаёт getUpdates, пока установлен вебхук.
	if err := bot.DeleteWebhook(ctx); err != nil {
		return err
	}
	return telegram.NewPoller(bot.API(), dispatcher, logger).Run(ctx)
}

// gigaHTTPClient доверяет корневому сертификату Минцифры, если файл с ним есть рядом.
func gigaHTTPClient(cfg config.Config, logger *slog.Logger) (*http.Client, error) {
	if cfg.Giga.CABundle == "" {
		return transport.NewHTTPClient(cfg.RequestTimeout), nil
	}
	if _, err := os.Stat(cfg.Giga.CABundle); err != nil {
		logger.Warn("gigachat CA bundle not found, using system roots", slog.String("path", cfg.Giga.CABundle))
		return transport.NewHTTPClient(cfg.RequestTimeout), nil
	}
	client, err := transport.NewHTTPClientWithCA(cfg.RequestTimeout, cfg.Giga.CABundle)
	if err != nil {
		return nil, fmt.Errorf("gigachat http client: %w", err)
	}
	return client, nil
}

func serveWebhook(ctx context.Context, cfg config.Config, bot *telegram.APIBotClient, handler telegram.UpdateHandler, logger *slog.Logger) error {
	if err := bot.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
		return err
	}

	webhookHandler := telegram.NewWebhookHandler(telegram.WebhookDeps{
		Handler:       handler,
		Logger:        logger,
		WebhookSecret: cfg.Telegram.WebhookSecret,
	})
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:          logger,
		TelegramHandler: webhookHandler,
	})

	// Ответ YandexGPT может ждать до окончания опроса операции.
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	return nil
}

// writeTimeout 0 означает без ограничения, как и бесконечный опрос.
func writeTimeout(cfg config.Config) time.Duration {
	if cfg.Yandex.PollTimeout == 0 {
		return 0
	}
	return cfg.Yandex.PollTimeout + cfg.RequestTimeout + 15*time.Second
}

func newLogger(level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
