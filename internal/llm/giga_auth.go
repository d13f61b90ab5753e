package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// tokenRefreshMargin сколько времени до истечения токен считается уже непригодным.
const tokenRefreshMargin = time.Minute

// AccessToken токен доступа GigaChat.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// TTL возвращает оставшееся время жизни токена относительно now.
func (t AccessToken) TTL(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// GigaAuth получает OAuth-токены по ключу авторизации и кэширует их до истечения.
type GigaAuth struct {
	credentials string
	scope       string
	authURL     string
	httpClient  *http.Client
	now         func() time.Time

	mu     sync.Mutex
	cached AccessToken
}

func NewGigaAuth(credentials, scope, authURL string, httpClient *http.Client) *GigaAuth {
	return &GigaAuth{
		credentials: credentials,
		scope:       scope,
		authURL:     authURL,
		httpClient:  httpClient,
		now:         time.Now,
	}
}

// Token возвращает действующий токен, при необходимости запрашивая новый.
func (a *GigaAuth) Token(ctx context.Context) (AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached.Value != "" && a.cached.TTL(a.now()) > tokenRefreshMargin {
		return a.cached, nil
	}
	token, err := a.Fetch(ctx)
	if err != nil {
		return AccessToken{}, err
	}
	a.cached = token
	return token, nil
}

// Fetch всегда запрашивает новый токен, минуя кэш.
func (a *GigaAuth) Fetch(ctx context.Context) (AccessToken, error) {
	form := url.Values{"scope": {a.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+a.credentials)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("execute token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessToken{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return AccessToken{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return AccessToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return AccessToken{}, fmt.Errorf("token response without access_token")
	}
	return AccessToken{
		Value:     parsed.AccessToken,
		ExpiresAt: time.UnixMilli(parsed.ExpiresAt),
	}, nil
}

// bearerTransport подставляет актуальный токен GigaAuth в каждый запрос.
type bearerTransport struct {
	auth *GigaAuth
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.auth.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("gigachat auth: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token.Value)
	return t.base.RoundTrip(clone)
}
