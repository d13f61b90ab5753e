// Команда yagpt-deferred задаёт один вопрос YandexGPT через отложенный API
// и печатает ответ. Удобна для проверки ключей без запуска бота.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sagebot/internal/config"
	"sagebot/internal/llm"
	"sagebot/internal/poll"
	"sagebot/internal/transport"
)

const assistantPersona = "Ты — профессиональный умный помощник. Отвечай на вопросы кратко и понятно."

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		question    string
		temperature float64
		interval    time.Duration
		timeout     time.Duration
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:          "yagpt-deferred",
		Short:        "Ask YandexGPT one question via the deferred completion API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Yandex.FolderID == "" || cfg.Yandex.APIKey == "" {
				return fmt.Errorf("Необходимо указать YANDEX_FOLDER_ID и YANDEX_API_KEY в файле .env")
			}

			if question == "" {
				question, err = readQuestion(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			backend := llm.NewYandexBackend(llm.YandexBackendConfig{
				Client:      llm.NewYandexClient(cfg.Yandex, transport.NewHTTPClient(cfg.RequestTimeout), logger),
				Persona:     assistantPersona,
				Temperature: temperature,
				Poll:        poll.Policy{Interval: interval, Timeout: timeout},
				Logger:      logger,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Отправляю запрос к YandexGPT...")
			answer, err := backend.Ask(cmd.Context(), question)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nОтвет:", answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "вопрос; если не задан, читается со стандартного ввода")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.5, "температура генерации")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "пауза между проверками статуса операции")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "сколько ждать операцию, 0 без ограничения")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "подробный лог опроса")

	return cmd
}

func readQuestion(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Введите ваш вопрос: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read question: %w", err)
	}
	question := strings.TrimSpace(line)
	if question == "" {
		return "", fmt.Errorf("вопрос не задан")
	}
	return question, nil
}
