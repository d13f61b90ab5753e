package telegram

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sagebot/internal/httpserver"
)

type recordingHandler struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
	ctxErr  error
}

func (h *recordingHandler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, upd)
	h.ctxErr = ctx.Err()
}

func (h *recordingHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates)
}

func newWebhook(handler UpdateHandler, secret string) *WebhookHandler {
	return NewWebhookHandler(WebhookDeps{
		Handler:       handler,
		Logger:        slog.New(slog.NewTextHandler(os.Stdout, nil)),
		WebhookSecret: secret,
	})
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	handler := &recordingHandler{}
	wh := newWebhook(handler, "s3cret")

	body := `{"update_id":10,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"привет"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set(secretHeader, "s3cret")
	rr := httptest.NewRecorder()

	wh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if handler.Count() != 1 {
		t.Fatalf("expected 1 update, got %d", handler.Count())
	}
	upd := handler.updates[0]
	if upd.UpdateID != 10 || upd.Message.Chat.ID != 42 || upd.Message.Text != "привет" {
		t.Fatalf("unexpected update %+v", upd.Message)
	}
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	handler := &recordingHandler{}
	wh := newWebhook(handler, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(secretHeader, "wrong")
	rr := httptest.NewRecorder()

	wh.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if handler.Count() != 0 {
		t.Fatalf("update must not be dispatched")
	}
}

func TestWebhookBadJSON(t *testing.T) {
	handler := &recordingHandler{}
	wh := newWebhook(handler, "")

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{not json`))
	rr := httptest.NewRecorder()

	wh.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"bad_request"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestWebhookSurvivesClientDisconnect(t *testing.T) {
	handler := &recordingHandler{}
	wh := newWebhook(handler, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":2}`)).WithContext(ctx)
	rr := httptest.NewRecorder()

	wh.ServeHTTP(rr, req)

	if handler.ctxErr != nil {
		t.Fatalf("handler context must not be cancelled, got %v", handler.ctxErr)
	}
}

// panicOnceHandler падает на первом обновлении и запоминает остальные.
type panicOnceHandler struct {
	recordingHandler
	panicked bool
}

func (h *panicOnceHandler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if !h.panicked {
		h.panicked = true
		panic("handler exploded")
	}
	h.recordingHandler.HandleUpdate(ctx, upd)
}

func TestWebhookKeepsServingAfterPanic(t *testing.T) {
	handler := &panicOnceHandler{}
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:          slog.New(slog.NewTextHandler(os.Stdout, nil)),
		TelegramHandler: newWebhook(handler, ""),
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, httpserver.WebhookPath, strings.NewReader(`{"update_id":1}`)))
	if first.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for panicking update, got %d", first.Code)
	}

	done := make(chan int, 1)
	go func() {
		second := httptest.NewRecorder()
		router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, httpserver.WebhookPath, strings.NewReader(`{"update_id":2}`)))
		done <- second.Code
	}()

	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Fatalf("expected 200 for second update, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second webhook request blocked after recovered panic")
	}
	if handler.Count() != 1 || handler.updates[0].UpdateID != 2 {
		t.Fatalf("expected second update to be handled, got %+v", handler.updates)
	}
}
