// Команда gigatoken получает access token GigaChat по ключу авторизации
// и пишет в лог, сколько он ещё действует.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"sagebot/internal/config"
	"sagebot/internal/llm"
	"sagebot/internal/transport"
)

const separator = "============================================================"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logFile string
		reveal  bool
	)

	cmd := &cobra.Command{
		Use:          "gigatoken",
		Short:        "Fetch a GigaChat access token and report its lifetime",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sink io.Writer = cmd.OutOrStdout()
			if logFile != "" {
				file := &lumberjack.Logger{Filename: logFile, MaxSize: 1, MaxBackups: 3}
				defer file.Close()
				sink = io.MultiWriter(sink, file)
			}
			logger := slog.New(slog.NewTextHandler(sink, nil))
			return fetchToken(cmd.Context(), logger, reveal)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "token_log.txt", "файл, куда дублируется лог; пусто отключает")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "вывести токен целиком")

	return cmd
}

func fetchToken(ctx context.Context, logger *slog.Logger, reveal bool) error {
	logger.Info("Старт получения токена GigaChat")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Ошибка загрузки настроек", slog.String("error", err.Error()))
		return err
	}

	_, statErr := os.Stat(cfg.Giga.CABundle)
	logger.Info("Настройки",
		slog.String("credentials", mask(cfg.Giga.Credentials)),
		slog.String("model", cfg.Giga.Model),
		slog.String("ca_bundle", cfg.Giga.CABundle),
		slog.Bool("ca_bundle_exists", statErr == nil))

	if err := cfg.Giga.Validate(); err != nil {
		logger.Error("Ошибка в настройках", slog.String("error", err.Error()))
		return err
	}

	httpClient := transport.NewHTTPClient(cfg.RequestTimeout)
	if statErr == nil {
		httpClient, err = transport.NewHTTPClientWithCA(cfg.RequestTimeout, cfg.Giga.CABundle)
		if err != nil {
			logger.Error("Не удалось загрузить сертификат", slog.String("error", err.Error()))
			return err
		}
	}

	logger.Info("Получаем токен...")
	auth := llm.NewGigaAuth(cfg.Giga.Credentials, cfg.Giga.Scope, cfg.Giga.AuthURL, httpClient)
	token, err := auth.Fetch(ctx)
	if err != nil {
		logger.Error("Ошибка при получении access token",
			slog.String("error", err.Error()),
			slog.String("error_type", fmt.Sprintf("%T", err)))
		return err
	}

	remaining := int64(token.TTL(time.Now()) / time.Second)
	value := mask(token.Value)
	if reveal {
		value = token.Value
	}

	logger.Info(separator)
	logger.Info("ACCESS TOKEN ПОЛУЧЕН УСПЕШНО!")
	logger.Info(separator)
	logger.Info("Access Token", slog.String("token", value))
	logger.Info("Секунд до истечения", slog.Int64("seconds", remaining))
	logger.Info("Время до истечения", slog.String("remaining", formatRemaining(remaining)))
	logger.Info(separator)
	return nil
}

// formatRemaining переводит секунды в вид "1ч 2м 3с".
func formatRemaining(seconds int64) string {
	if seconds <= 0 {
		return "Токен истек"
	}
	hours := seconds / 3600
	minutes := seconds % 3600 / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, secs)
	default:
		return fmt.Sprintf("%dс", secs)
	}
}

// mask оставляет видимыми только края секрета.
func mask(secret string) string {
	if secret == "" {
		return "[empty]"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s (%d chars)", secret[:4], secret[len(secret)-4:], len(secret))
}
