package telegram

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sagebot/internal/httpserver"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

type WebhookDeps struct {
	Handler       UpdateHandler
	Logger        *slog.Logger
	WebhookSecret string
}

// WebhookHandler принимает обновления от Telegram по HTTP.
// Обработка сериализована мьютексом, как и в режиме long polling.
type WebhookHandler struct {
	mu            sync.Mutex
	handler       UpdateHandler
	logger        *slog.Logger
	webhookSecret string
}

func NewWebhookHandler(deps WebhookDeps) *WebhookHandler {
	return &WebhookHandler{
		handler:       deps.Handler,
		logger:        deps.Logger,
		webhookSecret: deps.WebhookSecret,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		if secret := r.Header.Get(secretHeader); secret != h.webhookSecret {
			httpserver.WriteJSONError(w, http.StatusForbidden, "forbidden", "invalid webhook secret")
			return
		}
	}

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot parse update")
		return
	}

	// Ответ модели не должен обрываться, если Telegram закроет соединение раньше.
	ctx := context.WithoutCancel(r.Context())

	h.dispatch(ctx, upd)

	httpserver.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// dispatch отпускает мьютекс и при панике обработчика, которую затем ловит Recover.
func (h *WebhookHandler) dispatch(ctx context.Context, upd tgbotapi.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler.HandleUpdate(ctx, upd)
}
