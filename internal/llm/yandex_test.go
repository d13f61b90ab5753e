package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"sagebot/internal/config"
	"sagebot/internal/poll"
)

// fakeYandex эмулирует completionAsync и operations; операция завершается после pending опросов.
type fakeYandex struct {
	mu           sync.Mutex
	pending      int
	response     string
	statusGets   int
	lastRequest  completionRequest
	lastAuth     string
	lastFolder   string
	submitStatus int
}

func (f *fakeYandex) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/foundationModels/v1/completionAsync", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastFolder = r.Header.Get("x-folder-id")
		if err := json.NewDecoder(r.Body).Decode(&f.lastRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if f.submitStatus != 0 {
			w.WriteHeader(f.submitStatus)
			_, _ = w.Write([]byte(`{"error":"denied"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"op-1","done":false}`))
	})
	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.statusGets++
		if f.statusGets <= f.pending {
			_, _ = w.Write([]byte(`{"id":"op-1","done":false}`))
			return
		}
		_, _ = w.Write([]byte(f.response))
	})
	return mux
}

func newTestYandex(t *testing.T, fake *fakeYandex, policy poll.Policy) *YandexBackend {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client := NewYandexClient(config.YandexConfig{
		FolderID:     "folder",
		APIKey:       "secret",
		Model:        "yandexgpt",
		BaseURL:      server.URL,
		OperationURL: server.URL,
	}, server.Client(), nil)

	return NewYandexBackend(YandexBackendConfig{
		Client:      client,
		Temperature: 0.6,
		Poll:        policy,
		Logger:      slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

const doneResponse = `{"id":"op-1","done":true,"response":{"@type":"type.googleapis.com/yandex.cloud.ai.foundation_models.v1.CompletionResponse","alternatives":[{"message":{"role":"assistant","text":"Терпение — ключ к мудрости."},"status":"ALTERNATIVE_STATUS_FINAL"},{"message":{"role":"assistant","text":"второй"},"status":"ALTERNATIVE_STATUS_FINAL"}],"usage":{"inputTextTokens":"30","completionTokens":"8","totalTokens":"38"},"modelVersion":"23.10.2024"}}`

func TestYandexBackend_ImmediatelyDone(t *testing.T) {
	fake := &fakeYandex{response: doneResponse}
	backend := newTestYandex(t, fake, poll.Policy{Interval: time.Second, Sleep: noSleep})

	answer := backend.Complete(context.Background(), "Что есть истина?")
	if answer != "Терпение — ключ к мудрости." {
		t.Fatalf("expected first alternative verbatim, got %q", answer)
	}
	if fake.statusGets != 1 {
		t.Fatalf("expected single status check, got %d", fake.statusGets)
	}

	req := fake.lastRequest
	if req.ModelURI != "gpt://folder/yandexgpt/latest" {
		t.Fatalf("unexpected model uri: %s", req.ModelURI)
	}
	if req.CompletionOptions.Temperature != 0.6 || req.CompletionOptions.Stream {
		t.Fatalf("unexpected options: %+v", req.CompletionOptions)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem || req.Messages[0].Text != YandexPersona {
		t.Fatalf("expected persona as system message, got %+v", req.Messages)
	}
	if req.Messages[1].Role != RoleUser || req.Messages[1].Text != "Что есть истина?" {
		t.Fatalf("unexpected user message: %+v", req.Messages[1])
	}
	if fake.lastAuth != "Api-Key secret" || fake.lastFolder != "folder" {
		t.Fatalf("unexpected auth headers: %q %q", fake.lastAuth, fake.lastFolder)
	}
}

func TestYandexBackend_PollsUntilDone(t *testing.T) {
	fake := &fakeYandex{pending: 3, response: doneResponse}
	var sleeps int
	backend := newTestYandex(t, fake, poll.Policy{
		Interval: time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps++
			return nil
		},
	})

	answer := backend.Complete(context.Background(), "вопрос")
	if !strings.HasPrefix(answer, "Терпение") {
		t.Fatalf("unexpected answer %q", answer)
	}
	if fake.statusGets != 4 {
		t.Fatalf("expected 4 status checks, got %d", fake.statusGets)
	}
	if sleeps != 3 {
		t.Fatalf("expected 3 sleeps, got %d", sleeps)
	}
}

func TestYandexBackend_NoAlternatives(t *testing.T) {
	fake := &fakeYandex{response: `{"id":"op-1","done":true,"response":{"alternatives":[]}}`}
	backend := newTestYandex(t, fake, poll.Policy{Sleep: noSleep})

	if answer := backend.Complete(context.Background(), "вопрос"); answer != "Извините, не удалось получить ответ." {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestYandexBackend_OperationError(t *testing.T) {
	fake := &fakeYandex{response: `{"id":"op-1","done":true,"error":{"code":3,"message":"bad request"}}`}
	backend := newTestYandex(t, fake, poll.Policy{Sleep: noSleep})

	if answer := backend.Complete(context.Background(), "вопрос"); answer != YandexFailure {
		t.Fatalf("unexpected answer %q", answer)
	}

	_, err := backend.Ask(context.Background(), "вопрос")
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Code != 3 {
		t.Fatalf("expected OperationError, got %v", err)
	}
}

func TestYandexBackend_SubmitRejected(t *testing.T) {
	fake := &fakeYandex{submitStatus: http.StatusUnauthorized}
	backend := newTestYandex(t, fake, poll.Policy{Sleep: noSleep})

	_, err := backend.Ask(context.Background(), "вопрос")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected APIError 401, got %v", err)
	}
	if answer := backend.Complete(context.Background(), "вопрос"); answer != YandexFailure {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestYandexBackend_TimesOut(t *testing.T) {
	fake := &fakeYandex{pending: 1000, response: doneResponse}
	backend := newTestYandex(t, fake, poll.Policy{Interval: time.Second, MaxAttempts: 5, Sleep: noSleep})

	if answer := backend.Complete(context.Background(), "вопрос"); answer != YandexTimedOut {
		t.Fatalf("expected timeout apology, got %q", answer)
	}
	if fake.statusGets != 5 {
		t.Fatalf("expected 5 status checks, got %d", fake.statusGets)
	}
}

func TestModelURI(t *testing.T) {
	cases := map[string]string{
		"yandexgpt":                   "gpt://f/yandexgpt/latest",
		"yandexgpt-lite/rc":           "gpt://f/yandexgpt-lite/rc",
		"gpt://other/yandexgpt/latest": "gpt://other/yandexgpt/latest",
	}
	for model, want := range cases {
		if got := ModelURI("f", model); got != want {
			t.Errorf("ModelURI(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestOperationResult(t *testing.T) {
	running := Operation{ID: "op-1"}
	if !running.Running() {
		t.Fatalf("operation without done flag must be running")
	}
	if _, err := running.Result(); err == nil {
		t.Fatalf("expected error for running operation")
	}

	failed := Operation{ID: "op-2", Done: true, Error: &OperationError{Code: 3, Message: "bad"}}
	var opErr *OperationError
	if _, err := failed.Result(); !errors.As(err, &opErr) || opErr.Code != 3 {
		t.Fatalf("expected OperationError, got %v", err)
	}

	empty := Operation{ID: "op-3", Done: true}
	if empty.Running() {
		t.Fatalf("done operation must not be running")
	}
	if res, err := empty.Result(); err != nil || len(res.Alternatives) != 0 {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
}
