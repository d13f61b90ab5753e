package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"sagebot/internal/config"
)

// ChatCompleter синхронный OpenAI-совместимый API; реализуется *openai.Client.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewGigaChatClient настраивает go-openai на GigaChat API: свой base URL и
// авторизация токеном из GigaAuth вместо статического ключа.
func NewGigaChatClient(cfg config.GigaConfig, httpClient *http.Client, auth *GigaAuth) *openai.Client {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	clientCfg := openai.DefaultConfig("")
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{
		Timeout:   httpClient.Timeout,
		Transport: &bearerTransport{auth: auth, base: base},
	}
	return openai.NewClientWithConfig(clientCfg)
}

type GigaBackendConfig struct {
	Client  ChatCompleter
	Model   string
	Persona string
	Logger  *slog.Logger
}

// GigaBackend мудрец GigaChat: один блокирующий запрос без повторов.
type GigaBackend struct {
	client  ChatCompleter
	model   string
	persona string
	logger  *slog.Logger
}

func NewGigaBackend(cfg GigaBackendConfig) *GigaBackend {
	model := cfg.Model
	if model == "" {
		model = config.DefaultGigaModel
	}
	persona := cfg.Persona
	if persona == "" {
		persona = GigaPersona
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GigaBackend{
		client:  cfg.Client,
		model:   model,
		persona: persona,
		logger:  logger,
	}
}

func (b *GigaBackend) Complete(ctx context.Context, userMessage string) string {
	b.logger.Info("giga request", slog.Int("chars", len([]rune(userMessage))))

	text, err := b.Ask(ctx, userMessage)
	if err != nil {
		b.logger.Error("giga request failed", slog.String("error", err.Error()))
		return GigaFailure
	}
	return text
}

// Ask отправляет системный промпт и вопрос пользователя, логирует расход токенов.
func (b *GigaBackend) Ask(ctx context.Context, userMessage string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: b.persona},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		return "", err
	}

	b.logger.Info("giga usage",
		slog.Int("total_tokens", resp.Usage.TotalTokens),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}
	return resp.Choices[0].Message.Content, nil
}
