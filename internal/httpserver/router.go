package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sagebot/internal/middleware"
)

// WebhookPath адрес, на который Telegram присылает обновления.
const WebhookPath = "/telegram/webhook"

type RouterDeps struct {
	Logger          *slog.Logger
	TelegramHandler http.Handler
}

// NewRouter собирает chi-роутер для режима вебхука.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Post(WebhookPath, deps.TelegramHandler.ServeHTTP)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "no such endpoint")
	})

	return r
}
