package telegram

import "sagebot/internal/session"

const callbackPrefix = "model_"

// Sages содержит мудрецов, доступных для выбора.
var Sages = []Sage{
	{
		Backend:     session.BackendGiga,
		Name:        "🧙‍♂️ Мудрец GigaChat",
		ReplyPrefix: "🧙‍♂️ Мудрец GigaChat отвечает:\n\n",
	},
	{
		Backend:     session.BackendYandex,
		Name:        "🧙‍♀️ Мудрец YandexGPT",
		ReplyPrefix: "🧙‍♀️ Мудрец YandexGPT отвечает:\n\n",
	},
}

// Sage описывает, как бэкенд представлен пользователю.
type Sage struct {
	Backend     session.Backend
	Name        string // Название на кнопке и в сообщениях
	ReplyPrefix string // Подпись перед ответом
}

// CallbackData возвращает payload inline-кнопки выбора, например "model_giga".
func (s Sage) CallbackData() string {
	return callbackPrefix + string(s.Backend)
}

// SageByBackend возвращает мудреца по идентификатору бэкенда.
func SageByBackend(backend session.Backend) (Sage, bool) {
	for _, s := range Sages {
		if s.Backend == backend {
			return s, true
		}
	}
	return Sage{}, false
}

// SageByCallback разбирает payload кнопки выбора.
func SageByCallback(data string) (Sage, bool) {
	for _, s := range Sages {
		if s.CallbackData() == data {
			return s, true
		}
	}
	return Sage{}, false
}
