package telegram

import (
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Кнопки основной клавиатуры.
const (
	buttonChangeSage  = "🔄 Сменить мудреца"
	buttonHelp        = "ℹ️ Помощь"
	buttonCurrentSage = "🎯 Текущий мудрец"
)

// maxMessageRunes лимит Telegram на длину текста одного сообщения.
const maxMessageRunes = 4096

// selectionKeyboard inline-клавиатура выбора мудреца, все мудрецы в одном ряду.
func selectionKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(Sages))
	for _, s := range Sages {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(s.Name, s.CallbackData()))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonChangeSage)),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonHelp),
			tgbotapi.NewKeyboardButton(buttonCurrentSage),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// splitText режет текст на части не длиннее limit символов,
// по возможности по последнему переводу строки во второй половине части.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		chunk := string(runes[:limit])
		if idx := strings.LastIndex(chunk, "\n"); idx > 0 {
			if n := utf8.RuneCountInString(chunk[:idx]) + 1; n > limit/2 {
				cut = n
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
