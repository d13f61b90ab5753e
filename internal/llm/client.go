package llm

import (
	"context"
	"errors"
)

// Responder минимальный публичный интерфейс мудреца.
// Complete никогда не возвращает ошибку: сбои логируются и заменяются фиксированным текстом извинения.
type Responder interface {
	Complete(ctx context.Context, userMessage string) string
}

// Тексты, которые получает пользователь вместо ответа модели.
const (
	YandexNoAnswer = "Извините, не удалось получить ответ."
	YandexFailure  = "Извините, произошла ошибка при обработке запроса."
	YandexTimedOut = "Извините, YandexGPT не успел ответить. Попробуйте ещё раз позже."
	GigaFailure    = "Извините, не удалось получить ответ от GigaChat."
)

// Системные промпты мудрецов.
const (
	YandexPersona = "Ты — мудрый наставник из древних времен. Отвечай на вопросы мудро, с достоинством, иногда используя метафоры."
	GigaPersona   = "Ты — древний мудрец, обладающий глубокими познаниями. Отвечай на вопросы мудро и с достоинством, используя старославянские обороты речи."
)

var (
	ErrEmptyResult = errors.New("model returned no alternatives")
)

// Роли сообщений в запросах к моделям.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)
