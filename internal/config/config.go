package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the Grisha bot service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	TelegramToken       string
	TelegramAPIBaseURL  string
	TelegramPollTimeout time.Duration

	ModelAdapterMode string
	ModelHTTPURL     string
	SystemPrompt     string

	UsersFile          string
	PatternsFile       string
	DatasetPath        string
	CommentHistoryFile string

	MaxContextMessages int

	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64

	CommentGroups       []int64
	MinPostLength       int
	MaxCommentsPerHour  int
	CommentMediaPosts   bool
	CommentHistoryLimit int

	DatabaseURL string
}

const defaultSystemPrompt = "Ты Гриша, дружелюбный чат-бот. Отвечай по-русски, кратко и по делу."

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "grisha"),
		AllowAnyOrigin:     false,
		TelegramToken:      stringsTrimSpace("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBaseURL: envOrDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		ModelAdapterMode:   envOrDefault("MODEL_ADAPTER_MODE", "auto"),
		ModelHTTPURL:       stringsTrimSpace("MODEL_HTTP_URL"),
		SystemPrompt:       envOrDefault("GRISHA_SYSTEM_PROMPT", defaultSystemPrompt),
		UsersFile:          envOrDefault("GRISHA_USERS_FILE", "grisha_users.json"),
		PatternsFile:       envOrDefault("GRISHA_PATTERNS_FILE", "grisha_learned_patterns.json"),
		DatasetPath:        envOrDefault("GRISHA_DATASET_PATH", "data/full_dataset.jsonl"),
		CommentHistoryFile: envOrDefault("GRISHA_COMMENT_HISTORY_FILE", "comment_history.json"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),

		TelegramPollTimeout: 50 * time.Second,
		ShutdownTimeout:     15 * time.Second,
		MaxContextMessages:  20,

		MaxNewTokens:      100,
		Temperature:       0.8,
		TopP:              0.9,
		RepetitionPenalty: 1.1,

		MinPostLength:       3,
		MaxCommentsPerHour:  20,
		CommentMediaPosts:   true,
		CommentHistoryLimit: 500,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TelegramPollTimeout, err = durationFromEnv("TELEGRAM_POLL_TIMEOUT", cfg.TelegramPollTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxContextMessages, err = intFromEnv("GRISHA_MAX_CONTEXT_MESSAGES", cfg.MaxContextMessages)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxNewTokens, err = intFromEnv("MODEL_MAX_NEW_TOKENS", cfg.MaxNewTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("MODEL_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}
	cfg.TopP, err = floatFromEnv("MODEL_TOP_P", cfg.TopP)
	if err != nil {
		return Config{}, err
	}
	cfg.RepetitionPenalty, err = floatFromEnv("MODEL_REPETITION_PENALTY", cfg.RepetitionPenalty)
	if err != nil {
		return Config{}, err
	}
	cfg.MinPostLength, err = intFromEnv("GRISHA_MIN_POST_LENGTH", cfg.MinPostLength)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxCommentsPerHour, err = intFromEnv("GRISHA_MAX_COMMENTS_PER_HOUR", cfg.MaxCommentsPerHour)
	if err != nil {
		return Config{}, err
	}
	cfg.CommentMediaPosts, err = boolFromEnv("GRISHA_COMMENT_MEDIA_POSTS", cfg.CommentMediaPosts)
	if err != nil {
		return Config{}, err
	}
	cfg.CommentHistoryLimit, err = intFromEnv("GRISHA_COMMENT_HISTORY_LIMIT", cfg.CommentHistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.CommentGroups, err = int64ListFromEnv("GRISHA_COMMENT_GROUPS")
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxContextMessages <= 0 {
		return Config{}, fmt.Errorf("GRISHA_MAX_CONTEXT_MESSAGES must be positive")
	}
	if cfg.MaxNewTokens <= 0 {
		return Config{}, fmt.Errorf("MODEL_MAX_NEW_TOKENS must be positive")
	}
	if cfg.Temperature <= 0 {
		return Config{}, fmt.Errorf("MODEL_TEMPERATURE must be positive")
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		return Config{}, fmt.Errorf("MODEL_TOP_P must be in (0, 1]")
	}
	if cfg.TelegramPollTimeout < time.Second {
		return Config{}, fmt.Errorf("TELEGRAM_POLL_TIMEOUT must be at least 1s")
	}
	if cfg.CommentHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("GRISHA_COMMENT_HISTORY_LIMIT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

// int64ListFromEnv parses a comma-separated list of chat ids.
func int64ListFromEnv(key string) ([]int64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s parse error: %w", key, err)
		}
		out = append(out, id)
	}
	return out, nil
}
