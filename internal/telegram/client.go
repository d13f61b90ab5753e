package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"sagebot/internal/config"
)

type BotClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard any) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// APIBotClient реализует BotClient поверх telegram-bot-api.
// Все исходящие запросы проходят через общий троттлер, чтобы не упираться в лимиты Bot API.
type APIBotClient struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewAPIBotClient авторизует бота (getMe) и возвращает клиента.
func NewAPIBotClient(cfg config.TelegramConfig, httpClient *http.Client, logger *slog.Logger) (*APIBotClient, error) {
	if err := tgbotapi.SetLogger(botLogger{logger: logger}); err != nil {
		return nil, fmt.Errorf("set telegram logger: %w", err)
	}

	endpoint := cfg.APIBaseURL + "/bot%s/%s"
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	api.Debug = logger.Enabled(context.Background(), slog.LevelDebug)

	return &APIBotClient{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
	}, nil
}

// API возвращает исходный клиент для получения обновлений.
func (c *APIBotClient) API() *tgbotapi.BotAPI {
	return c.api
}

// Username имя бота, полученное при авторизации.
func (c *APIBotClient) Username() string {
	return c.api.Self.UserName
}

func (c *APIBotClient) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	return c.SendMessageWithKeyboard(ctx, chatID, text, nil)
}

func (c *APIBotClient) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

func (c *APIBotClient) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (c *APIBotClient) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackQueryID, text)); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

func (c *APIBotClient) SendTyping(ctx context.Context, chatID int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

// SetWebhook регистрирует адрес вебхука с секретом и нужными типами обновлений.
func (c *APIBotClient) SetWebhook(ctx context.Context, url, secret string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	params["allowed_updates"] = `["` + strings.Join(allowedUpdates, `","`) + `"]`
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook снимает вебхук, иначе getUpdates вернёт конфликт.
func (c *APIBotClient) DeleteWebhook(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// botLogger направляет внутренние сообщения telegram-bot-api в slog.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
