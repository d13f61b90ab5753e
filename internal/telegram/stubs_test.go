package telegram

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sentMessage struct {
	chatID   int64
	text     string
	keyboard any
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
}

// stubBot записывает всё, что бот отправил бы в Telegram.
type stubBot struct {
	mu        sync.Mutex
	sent      []sentMessage
	edits     []editedMessage
	callbacks []string
	typing    int
	failSend  bool
}

func (s *stubBot) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	return s.SendMessageWithKeyboard(ctx, chatID, text, nil)
}

func (s *stubBot) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend {
		return 0, errors.New("telegram unavailable")
	}
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: text, keyboard: keyboard})
	return len(s.sent), nil
}

func (s *stubBot) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, editedMessage{chatID: chatID, messageID: messageID, text: text})
	return nil
}

func (s *stubBot) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callbackQueryID)
	return nil
}

func (s *stubBot) SendTyping(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing++
	return nil
}

func (s *stubBot) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.text)
	}
	return out
}

func (s *stubBot) Last() sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentMessage{}
	}
	return s.sent[len(s.sent)-1]
}

func (s *stubBot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
	s.edits = nil
	s.callbacks = nil
	s.typing = 0
}

// stubResponder считает вызовы и возвращает заданный ответ.
type stubResponder struct {
	mu           sync.Mutex
	answer       string
	completeFunc func(ctx context.Context, userMessage string) string
	prompts      []string
}

func (s *stubResponder) Complete(ctx context.Context, userMessage string) string {
	s.mu.Lock()
	s.prompts = append(s.prompts, userMessage)
	s.mu.Unlock()
	if s.completeFunc != nil {
		return s.completeFunc(ctx, userMessage)
	}
	return s.answer
}

func (s *stubResponder) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID},
		Text:      text,
	}}
}

func callbackUpdate(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
		Data: data,
	}}
}
