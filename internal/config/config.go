package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every section of the service configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	AI        AIConfig
	Embedding EmbeddingConfig
	Store     StoreConfig
	Memory    MemoryConfig
	Trend     TrendConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	memoryCfg, err := loadMemoryConfig()
	if err != nil {
		return nil, err
	}

	trendCfg, err := loadTrendConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Auth:      loadAuthConfig(),
		AI:        ai,
		Embedding: loadEmbeddingConfig(),
		Store:     StoreConfig{DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL"))},
		Memory:    memoryCfg,
		Trend:     trendCfg,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AuthConfig holds token-signing settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTLH int
}

func loadAuthConfig() AuthConfig {
	ttl := 24
	if raw := strings.TrimSpace(os.Getenv("JWT_TTL_HOURS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			ttl = v
		}
	}
	return AuthConfig{
		JWTSecret: getEnvOrDefault("JWT_SECRET", "a-seed-secret-key-dev"),
		TokenTTLH: ttl,
	}
}

// AIConfig describes the chat model used for response generation.
type AIConfig struct {
	APIKey           string
	AccessKey        string
	SecretKey        string
	Model            string
	BaseURL          string
	Region           string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	StreamResponse   bool
	SystemPromptPath string
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark credentials: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:           strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:        strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:        strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:            strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:          getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:           getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:      temperature,
		TopP:             topP,
		MaxTokens:        maxTokens,
		StreamResponse:   stream,
		SystemPromptPath: strings.TrimSpace(os.Getenv("SYSTEM_PROMPT_PATH")),
	}, nil
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Region   string
}

func loadEmbeddingConfig() EmbeddingConfig {
	apiKey := strings.TrimSpace(os.Getenv("EMBED_API_KEY"))
	if apiKey == "" {
		// Fall back to the generation credentials for single-key setups.
		apiKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
	}
	return EmbeddingConfig{
		Provider: getEnvOrDefault("EMBED_PROVIDER", "ark"),
		APIKey:   apiKey,
		Model:    strings.TrimSpace(os.Getenv("EMBED_MODEL")),
		BaseURL:  getEnvOrDefault("EMBED_BASE_URL", ""),
		Region:   getEnvOrDefault("EMBED_REGION", "cn-beijing"),
	}
}

// Enabled reports whether an embedding provider can be constructed.
func (c EmbeddingConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// StoreConfig selects the persistence backend. An empty DatabaseURL falls
// back to the in-memory store.
type StoreConfig struct {
	DatabaseURL string
}

// MemoryConfig tunes retrieval.
type MemoryConfig struct {
	TopK          int
	HistoryWindow int
}

func loadMemoryConfig() (MemoryConfig, error) {
	topK := 5
	if override, err := parseOptionalIntEnv("MEMORY_TOP_K"); err != nil {
		return MemoryConfig{}, err
	} else if override != nil && *override > 0 {
		topK = *override
	}

	window := 10
	if override, err := parseOptionalIntEnv("MEMORY_HISTORY_WINDOW"); err != nil {
		return MemoryConfig{}, err
	} else if override != nil && *override > 0 {
		window = *override
	}

	return MemoryConfig{TopK: topK, HistoryWindow: window}, nil
}

// TrendConfig tunes the mood-trend analyzer. EscalateAfter is deliberately a
// knob: the source material never pins the threshold down.
type TrendConfig struct {
	WindowDays    int
	EscalateAfter int
}

func loadTrendConfig() (TrendConfig, error) {
	days := 5
	if override, err := parseOptionalIntEnv("TREND_WINDOW_DAYS"); err != nil {
		return TrendConfig{}, err
	} else if override != nil && *override > 0 {
		days = *override
	}

	after := 3
	if override, err := parseOptionalIntEnv("TREND_ESCALATE_AFTER"); err != nil {
		return TrendConfig{}, err
	} else if override != nil && *override > 0 {
		after = *override
	}

	return TrendConfig{WindowDays: days, EscalateAfter: after}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
