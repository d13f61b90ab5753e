package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const longPollTimeoutSeconds = 30

var allowedUpdates = []string{"message", "callback_query"}

// UpdateSource источник обновлений long polling; реализуется *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller получает обновления через getUpdates и передаёт их обработчику строго по одному:
// следующее обновление не читается, пока не завершится обработка текущего.
type Poller struct {
	source  UpdateSource
	handler UpdateHandler
	logger  *slog.Logger
}

func NewPoller(source UpdateSource, handler UpdateHandler, logger *slog.Logger) *Poller {
	return &Poller{source: source, handler: handler, logger: logger}
}

// Run блокируется до отмены ctx или закрытия канала обновлений.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = longPollTimeoutSeconds
	cfg.AllowedUpdates = allowedUpdates

	updates := p.source.GetUpdatesChan(cfg)
	defer p.source.StopReceivingUpdates()

	p.logger.Info("polling started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			p.handler.HandleUpdate(ctx, upd)
		}
	}
}
