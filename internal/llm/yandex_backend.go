package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sagebot/internal/poll"
)

// DeferredCompleter отложенный API завершений; реализуется YandexClient.
type DeferredCompleter interface {
	RunDeferred(ctx context.Context, messages []YandexMessage, temperature float64) (Operation, error)
	GetOperation(ctx context.Context, id string) (Operation, error)
}

type YandexBackendConfig struct {
	Client      DeferredCompleter
	Persona     string
	Temperature float64
	Poll        poll.Policy
	Logger      *slog.Logger
}

// YandexBackend мудрец YandexGPT: ставит запрос в очередь и опрашивает операцию до готовности.
type YandexBackend struct {
	client      DeferredCompleter
	persona     string
	temperature float64
	poll        poll.Policy
	logger      *slog.Logger
}

func NewYandexBackend(cfg YandexBackendConfig) *YandexBackend {
	persona := cfg.Persona
	if persona == "" {
		persona = YandexPersona
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &YandexBackend{
		client:      cfg.Client,
		persona:     persona,
		temperature: cfg.Temperature,
		poll:        cfg.Poll,
		logger:      logger,
	}
}

func (b *YandexBackend) Complete(ctx context.Context, userMessage string) string {
	b.logger.Info("yandex request", slog.Int("chars", len([]rune(userMessage))))

	text, err := b.Ask(ctx, userMessage)
	switch {
	case err == nil:
		b.logger.Info("yandex answer received", slog.Int("chars", len([]rune(text))))
		return text
	case errors.Is(err, ErrEmptyResult):
		b.logger.Error("yandex returned no alternatives")
		return YandexNoAnswer
	case errors.Is(err, poll.ErrTimeout):
		b.logger.Error("yandex operation timed out", slog.String("error", err.Error()))
		return YandexTimedOut
	default:
		b.logger.Error("yandex request failed", slog.String("error", err.Error()))
		return YandexFailure
	}
}

// Ask выполняет полный цикл отложенного запроса и возвращает текст первой альтернативы.
func (b *YandexBackend) Ask(ctx context.Context, userMessage string) (string, error) {
	messages := []YandexMessage{
		{Role: RoleSystem, Text: b.persona},
		{Role: RoleUser, Text: userMessage},
	}

	op, err := b.client.RunDeferred(ctx, messages, b.temperature)
	if err != nil {
		return "", err
	}
	logger := b.logger.With(slog.String("operation_id", op.ID))

	attempts, err := poll.Until(ctx, b.poll, logger, func(ctx context.Context) (bool, error) {
		if !op.Running() {
			return true, nil
		}
		next, err := b.client.GetOperation(ctx, op.ID)
		if err != nil {
			return false, err
		}
		op = next
		return !op.Running(), nil
	})
	if err != nil {
		return "", fmt.Errorf("wait operation %s: %w", op.ID, err)
	}

	result, err := op.Result()
	if err != nil {
		return "", err
	}
	logger.Debug("yandex operation finished",
		slog.Int("checks", attempts),
		slog.String("model_version", result.ModelVersion),
		slog.String("total_tokens", result.Usage.TotalTokens))

	if len(result.Alternatives) == 0 {
		return "", ErrEmptyResult
	}
	return result.Alternatives[0].Message.Text, nil
}
