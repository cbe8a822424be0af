package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the adventure server configuration. Non-secret values come
// from environment variables; secrets are read from docker-secret files with
// an environment fallback for local development.
type Config struct {
	Port        string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// PostgreSQL (game results / leaderboard)
	DBHost     string        `envconfig:"DB_HOST" required:"true"`
	DBPort     string        `envconfig:"DB_PORT" default:"5432"`
	DBUser     string        `envconfig:"DB_USER" required:"true"`
	DBName     string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int32         `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTime time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Secret field, loaded separately
	DBPassword string

	// Redis (session store)
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	// Secret field, loaded separately (may be empty)
	RedisPassword string

	// Narrative generation service
	AIProvider       string        `envconfig:"AI_PROVIDER" default:"openai"` // openai | ollama
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://inference-api.nousresearch.com/v1"`
	AIModel          string        `envconfig:"AI_MODEL" default:"Hermes-3-Llama-3.1-70B"`
	AIMaxTokens      int           `envconfig:"AI_MAX_TOKENS" default:"1000"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"300s"`
	AIRateLimitDelay time.Duration `envconfig:"AI_RATE_LIMIT_DELAY" default:"5s"`
	OllamaHost       string        `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
	// Secret field, loaded separately
	AIAPIKey string

	// Turn orchestration
	MaxParseRetries   int `envconfig:"MAX_PARSE_RETRIES" default:"3"`
	PromptTokenBudget int `envconfig:"PROMPT_TOKEN_BUDGET" default:"3000"`

	// JWT (owner identification in middleware)
	// Secret field, loaded separately
	JWTSecret string
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads configuration from environment variables and secrets.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load adventure-server config: %w", err)
	}

	var err error
	if cfg.DBPassword, err = readSecret("db_password", "DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.JWTSecret, err = readSecret("jwt_secret", "JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.AIAPIKey, err = readSecret("ai_api_key", "AI_API_KEY"); err != nil {
		// Ollama runs without a key.
		if cfg.AIProvider != "ollama" {
			return nil, err
		}
		cfg.AIAPIKey = ""
	}
	// Redis auth is optional.
	cfg.RedisPassword, _ = readSecret("redis_password", "REDIS_PASSWORD")

	return &cfg, nil
}

// readSecret reads a secret from the docker-secrets path, falling back to the
// given environment variable.
func readSecret(secretName, envName string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret != "" {
			return secret, nil
		}
	}
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s not found (checked %s and $%s)", secretName, filePath, envName)
}
