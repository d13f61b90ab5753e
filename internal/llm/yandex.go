package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"log/slog"

	"sagebot/internal/config"
)

const yandexMaxTokens = 2000

// YandexClient обращается к асинхронному API Yandex Foundation Models:
// запрос ставится в очередь, а результат забирается через операцию.
type YandexClient struct {
	apiKey       string
	folderID     string
	modelURI     string
	baseURL      string
	operationURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

func NewYandexClient(cfg config.YandexConfig, httpClient *http.Client, logger *slog.Logger) *YandexClient {
	return &YandexClient{
		apiKey:       cfg.APIKey,
		folderID:     cfg.FolderID,
		modelURI:     ModelURI(cfg.FolderID, cfg.Model),
		baseURL:      cfg.BaseURL,
		operationURL: cfg.OperationURL,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// ModelURI строит gpt://<folder>/<model>/latest; готовый URI возвращается как есть.
func ModelURI(folderID, model string) string {
	if strings.Contains(model, "://") {
		return model
	}
	if strings.Contains(model, "/") {
		return fmt.Sprintf("gpt://%s/%s", folderID, model)
	}
	return fmt.Sprintf("gpt://%s/%s/latest", folderID, model)
}

// YandexMessage сообщение в формате Foundation Models.
type YandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Operation описывает состояние отложенного запроса.
type Operation struct {
	ID       string            `json:"id"`
	Done     bool              `json:"done"`
	Response *CompletionResult `json:"response,omitempty"`
	Error    *OperationError   `json:"error,omitempty"`
}

// Running сообщает, что результат ещё не готов.
func (o Operation) Running() bool {
	return !o.Done
}

// Result возвращает результат завершённой операции.
func (o Operation) Result() (CompletionResult, error) {
	if !o.Done {
		return CompletionResult{}, fmt.Errorf("operation %s is still running", o.ID)
	}
	if o.Error != nil {
		return CompletionResult{}, o.Error
	}
	if o.Response == nil {
		return CompletionResult{}, nil
	}
	return *o.Response, nil
}

type CompletionResult struct {
	Alternatives []Alternative `json:"alternatives"`
	Usage        YandexUsage   `json:"usage"`
	ModelVersion string        `json:"modelVersion"`
}

type Alternative struct {
	Message YandexMessage `json:"message"`
	Status  string        `json:"status"`
}

// YandexUsage счётчики токенов; API отдаёт их строками.
type YandexUsage struct {
	InputTextTokens  string `json:"inputTextTokens"`
	CompletionTokens string `json:"completionTokens"`
	TotalTokens      string `json:"totalTokens"`
}

type OperationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation failed with code %d: %s", e.Code, e.Message)
}

// APIError ответ API с неуспешным HTTP-статусом.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []YandexMessage   `json:"messages"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

// RunDeferred ставит запрос в очередь и возвращает операцию.
func (c *YandexClient) RunDeferred(ctx context.Context, messages []YandexMessage, temperature float64) (Operation, error) {
	body := completionRequest{
		ModelURI: c.modelURI,
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: temperature,
			MaxTokens:   strconv.Itoa(yandexMaxTokens),
		},
		Messages: messages,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return Operation{}, fmt.Errorf("marshal request: %w", err)
	}

	var op Operation
	endpoint := c.baseURL + "/foundationModels/v1/completionAsync"
	if err := c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(buf), &op); err != nil {
		return Operation{}, fmt.Errorf("submit completion: %w", err)
	}
	if op.ID == "" {
		return Operation{}, fmt.Errorf("submit completion: empty operation id")
	}
	return op, nil
}

// GetOperation запрашивает текущее состояние операции.
func (c *YandexClient) GetOperation(ctx context.Context, id string) (Operation, error) {
	var op Operation
	endpoint := c.operationURL + "/operations/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &op); err != nil {
		return Operation{}, fmt.Errorf("get operation %s: %w", id, err)
	}
	return op, nil
}

func (c *YandexClient) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("x-folder-id", c.folderID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("yandex response",
			slog.String("method", method),
			slog.String("url", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.Int("bytes", len(bodyBytes)))
	}

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
