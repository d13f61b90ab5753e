package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Режимы получения обновлений от Telegram.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// DefaultGigaModel используется, если GIGACHAT_MODEL не задан.
const DefaultGigaModel = "GigaChat:latest"

type Config struct {
	HTTPAddr        string
	LogLevel        string
	RequestTimeout  time.Duration
	SessionCapacity int
	Telegram        TelegramConfig
	Yandex          YandexConfig
	Giga            GigaConfig
}

type TelegramConfig struct {
	BotToken      string
	APIBaseURL    string
	Mode          string
	WebhookURL    string
	WebhookSecret string
	RPS           int
}

type YandexConfig struct {
	FolderID        string
	APIKey          string
	Model           string
	Temperature     float64
	BaseURL         string
	OperationURL    string
	PollInterval    time.Duration
	PollMaxAttempts int
	PollTimeout     time.Duration
}

type GigaConfig struct {
	Credentials string
	Model       string
	Scope       string
	AuthURL     string
	BaseURL     string
	CABundle    string
}

// MissingError перечисляет обязательные переменные окружения, которые не заданы.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required settings: " + strings.Join(e.Keys, ", ")
}

// Load читает .env (если есть) и переменные окружения.
// Обязательные значения не проверяются: для этого есть Validate у каждой секции.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	reqTimeout, err := parseDuration(getEnv("HTTP_CLIENT_TIMEOUT", "90s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = reqTimeout

	capacity, err := parseIntDefault(getEnv("SESSION_CAPACITY", ""), 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse SESSION_CAPACITY: %w", err)
	}
	cfg.SessionCapacity = capacity

	rps, err := parseIntDefault(getEnv("TELEGRAM_RPS", ""), 25)
	if err != nil {
		return Config{}, fmt.Errorf("parse TELEGRAM_RPS: %w", err)
	}
	cfg.Telegram = TelegramConfig{
		BotToken:      getEnv("TELEGRAM_TOKEN", ""),
		APIBaseURL:    strings.TrimSuffix(getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"), "/"),
		Mode:          strings.ToLower(getEnv("TELEGRAM_MODE", ModePolling)),
		WebhookURL:    getEnv("TELEGRAM_WEBHOOK_URL", ""),
		WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		RPS:           rps,
	}

	temperature, err := strconv.ParseFloat(getEnv("YANDEX_TEMPERATURE", "0.6"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse YANDEX_TEMPERATURE: %w", err)
	}
	pollInterval, err := parseDuration(getEnv("YANDEX_POLL_INTERVAL", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse YANDEX_POLL_INTERVAL: %w", err)
	}
	pollMax, err := parseIntDefault(getEnv("YANDEX_POLL_MAX_ATTEMPTS", ""), 300)
	if err != nil {
		return Config{}, fmt.Errorf("parse YANDEX_POLL_MAX_ATTEMPTS: %w", err)
	}
	// "0" отключает ограничение по времени.
	pollTimeout, err := parseDuration(getEnv("YANDEX_POLL_TIMEOUT", "5m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse YANDEX_POLL_TIMEOUT: %w", err)
	}
	cfg.Yandex = YandexConfig{
		FolderID:        getEnv("YANDEX_FOLDER_ID", ""),
		APIKey:          getEnv("YANDEX_API_KEY", ""),
		Model:           getEnv("YANDEX_MODEL", "yandexgpt"),
		Temperature:     temperature,
		BaseURL:         strings.TrimSuffix(getEnv("YANDEX_BASE_URL", "https://llm.api.cloud.yandex.net"), "/"),
		OperationURL:    strings.TrimSuffix(getEnv("YANDEX_OPERATION_URL", "https://operation.api.cloud.yandex.net"), "/"),
		PollInterval:    pollInterval,
		PollMaxAttempts: pollMax,
		PollTimeout:     pollTimeout,
	}

	cfg.Giga = GigaConfig{
		Credentials: getEnv("GIGACHAT_CREDENTIALS", ""),
		Model:       getEnv("GIGACHAT_MODEL", DefaultGigaModel),
		Scope:       getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
		AuthURL:     getEnv("GIGACHAT_AUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
		BaseURL:     strings.TrimSuffix(getEnv("GIGACHAT_BASE_URL", "https://gigachat.devices.sberbank.ru/api/v1"), "/"),
		CABundle:    getEnv("GIGACHAT_CA_BUNDLE", "russian_trusted_root_ca.cer"),
	}

	return cfg, nil
}

// Validate проверяет всё, что нужно боту для старта.
func (c Config) Validate() error {
	var missing []string
	if c.Telegram.BotToken == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	missing = append(missing, c.Yandex.missing()...)
	missing = append(missing, c.Giga.missing()...)
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return &MissingError{Keys: []string{"TELEGRAM_WEBHOOK_URL"}}
		}
	default:
		return fmt.Errorf("unknown TELEGRAM_MODE %q", c.Telegram.Mode)
	}
	if c.Telegram.RPS <= 0 {
		return fmt.Errorf("TELEGRAM_RPS must be positive, got %d", c.Telegram.RPS)
	}
	if c.SessionCapacity < 0 {
		return fmt.Errorf("SESSION_CAPACITY must not be negative, got %d", c.SessionCapacity)
	}
	return c.Yandex.Validate()
}

// Validate проверяет настройки YandexGPT.
func (c YandexConfig) Validate() error {
	if missing := c.missing(); len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("YANDEX_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.PollMaxAttempts < 0 {
		return fmt.Errorf("YANDEX_POLL_MAX_ATTEMPTS must not be negative, got %d", c.PollMaxAttempts)
	}
	return nil
}

// Validate проверяет настройки GigaChat.
func (c GigaConfig) Validate() error {
	if missing := c.missing(); len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return nil
}

func (c YandexConfig) missing() []string {
	var keys []string
	if c.FolderID == "" {
		keys = append(keys, "YANDEX_FOLDER_ID")
	}
	if c.APIKey == "" {
		keys = append(keys, "YANDEX_API_KEY")
	}
	return keys
}

func (c GigaConfig) missing() []string {
	if c.Credentials == "" {
		return []string{"GIGACHAT_CREDENTIALS"}
	}
	return nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	if value == "0" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// parseIntDefault parses optional integer with default value.
func parseIntDefault(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}
