package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sagebot/internal/llm"
	"sagebot/internal/session"
)

const (
	welcomeText = "👋 Приветствую тебя, путник!\n\n" +
		"Я — врата к мудрости двух великих оракулов:\n" +
		"🧙‍♂️ Мудреца GigaChat и 🧙‍♀️ Мудреца YandexGPT.\n\n" +
		"Выбери своего наставника, и да начнется твой путь к познанию!\n\n" +
		"Используй кнопки внизу экрана для управления:" +
		"\n🔄 Сменить мудреца — выбрать другого наставника" +
		"\nℹ️ Помощь — показать это сообщение" +
		"\n🎯 Текущий мудрец — узнать, кто сейчас отвечает"
	choosePrompt      = "Выберите мудреца:"
	chooseFirstPrompt = "Пожалуйста, сначала выберите мудреца:"
	noSageSelected    = "Мудрец еще не выбран. Используйте кнопку 🔄 Сменить мудреца"
	dispatchFailure   = "Извините, произошла ошибка при обработке вашего запроса. Попробуйте позже."
	emptyMessage      = "Пустое сообщение. Используйте /start."
)

// UpdateHandler обрабатывает одно обновление Telegram.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

type DispatcherDeps struct {
	Store    session.Store
	Backends map[session.Backend]llm.Responder
	Bot      BotClient
	Logger   *slog.Logger
}

// Dispatcher маршрутизирует обновления: выбор мудреца, служебные кнопки и вопросы к модели.
type Dispatcher struct {
	store    session.Store
	backends map[session.Backend]llm.Responder
	bot      BotClient
	logger   *slog.Logger
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:    deps.Store,
		backends: deps.Backends,
		bot:      deps.Bot,
		logger:   logger,
	}
}

func (d *Dispatcher) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		d.handleCallbackQuery(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		d.handleMessage(ctx, upd.Message)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// Фото, стикеры и служебные сообщения групп не обрабатываются.
	if msg.Chat == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") && d.handleCommand(ctx, chatID, text) {
		return
	}

	switch {
	case text == "":
		d.reply(ctx, chatID, emptyMessage)
	case text == buttonChangeSage:
		d.promptSelection(ctx, chatID, choosePrompt)
	case text == buttonHelp:
		d.sendWelcome(ctx, chatID)
	case text == buttonCurrentSage:
		d.showCurrent(ctx, chatID)
	default:
		d.handleText(ctx, chatID, text)
	}
}

// handleCommand возвращает false для незнакомой команды: такой текст уходит мудрецу как обычный вопрос.
func (d *Dispatcher) handleCommand(ctx context.Context, chatID int64, text string) bool {
	cmd := strings.Fields(text)[0]
	// В группах команда приходит как /start@bot_name.
	cmd, _, _ = strings.Cut(cmd, "@")

	switch cmd {
	case "/start", "/help":
		d.sendWelcome(ctx, chatID)
	case "/model":
		d.promptSelection(ctx, chatID, choosePrompt)
	case "/current":
		d.showCurrent(ctx, chatID)
	default:
		return false
	}
	return true
}

func (d *Dispatcher) sendWelcome(ctx context.Context, chatID int64) {
	if _, err := d.bot.SendMessageWithKeyboard(ctx, chatID, welcomeText, mainKeyboard()); err != nil {
		d.logger.Error("send welcome failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
	d.promptSelection(ctx, chatID, choosePrompt)
}

func (d *Dispatcher) promptSelection(ctx context.Context, chatID int64, text string) {
	if _, err := d.bot.SendMessageWithKeyboard(ctx, chatID, text, selectionKeyboard()); err != nil {
		d.logger.Error("send selection keyboard failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) showCurrent(ctx context.Context, chatID int64) {
	backend, _ := d.store.Get(chatID)
	if sage, ok := SageByBackend(backend); ok {
		d.reply(ctx, chatID, "Сейчас отвечает "+sage.Name)
		return
	}
	d.reply(ctx, chatID, noSageSelected)
}

func (d *Dispatcher) handleCallbackQuery(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if !strings.HasPrefix(cb.Data, callbackPrefix) {
		d.answerCallback(ctx, cb.ID)
		return
	}
	sage, ok := SageByCallback(cb.Data)
	if !ok || cb.Message == nil || cb.Message.Chat == nil {
		d.logger.Warn("unknown sage selection", slog.String("data", cb.Data))
		d.answerCallback(ctx, cb.ID)
		return
	}

	chatID := cb.Message.Chat.ID
	d.store.Set(chatID, sage.Backend)
	d.logger.Info("sage selected", slog.Int64("chat_id", chatID), slog.String("backend", string(sage.Backend)))

	d.answerCallback(ctx, cb.ID)
	text := fmt.Sprintf("Вы выбрали %s. Можете задавать свои вопросы!", sage.Name)
	if err := d.bot.EditMessage(ctx, chatID, cb.Message.MessageID, text); err != nil {
		d.logger.Error("edit selection message failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) answerCallback(ctx context.Context, id string) {
	if err := d.bot.AnswerCallbackQuery(ctx, id, ""); err != nil {
		d.logger.Error("answer callback failed", slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) handleText(ctx context.Context, chatID int64, text string) {
	backend, _ := d.store.Get(chatID)
	if !backend.Valid() {
		d.promptSelection(ctx, chatID, chooseFirstPrompt)
		return
	}
	responder, ok := d.backends[backend]
	sage, known := SageByBackend(backend)
	if !ok || !known {
		d.logger.Error("backend is not configured", slog.String("backend", string(backend)))
		d.promptSelection(ctx, chatID, chooseFirstPrompt)
		return
	}
	d.answer(ctx, chatID, sage, responder, text)
}

// answer вызывает мудреца и отправляет ответ с подписью.
// Паника в адаптере или ошибка отправки превращаются в общее извинение.
func (d *Dispatcher) answer(ctx context.Context, chatID int64, sage Sage, responder llm.Responder, text string) {
	logger := d.logger.With(slog.Int64("chat_id", chatID), slog.String("backend", string(sage.Backend)))
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("request handling panicked", slog.Any("error", rec))
			d.reply(ctx, chatID, dispatchFailure)
		}
	}()

	if err := d.bot.SendTyping(ctx, chatID); err != nil {
		logger.Warn("send typing failed", slog.String("error", err.Error()))
	}
	logger.Info("new request")

	result := responder.Complete(ctx, text)
	for _, part := range splitText(sage.ReplyPrefix+result, maxMessageRunes) {
		if _, err := d.bot.SendMessage(ctx, chatID, part); err != nil {
			logger.Error("send answer failed", slog.String("error", err.Error()))
			d.reply(ctx, chatID, dispatchFailure)
			return
		}
	}
	logger.Info("answer sent")
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if _, err := d.bot.SendMessage(ctx, chatID, text); err != nil {
		d.logger.Error("send message failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}
