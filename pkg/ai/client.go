// Package ai talks to the narrative generation service and turns its
// free-form replies into typed payloads.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the service answers without content.
var ErrEmptyResponse = errors.New("empty response from generation service")

// Generator produces free-form text for a prompt. Implementations retry
// rate-limit responses internally and indefinitely; every other error
// propagates to the caller.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds generation client settings.
type Config struct {
	Provider       string // openai | ollama
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	Timeout        time.Duration
	RateLimitDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "Hermes-3-Llama-3.1-70B"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1000
	}
	if c.Timeout <= 0 {
		c.Timeout = 300 * time.Second
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = 5 * time.Second
	}
}

// NewGenerator builds the Generator for the configured provider.
func NewGenerator(cfg Config, logger *zap.Logger) (Generator, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("generation service API key is not set")
		}
		return newOpenAIGenerator(cfg, logger), nil
	case "ollama":
		return newOllamaGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// --- OpenAI-compatible implementation ---

type openAIGenerator struct {
	client         *openai.Client
	model          string
	maxTokens      int
	rateLimitDelay time.Duration
	logger         *zap.Logger
}

func newOpenAIGenerator(cfg Config, logger *zap.Logger) *openAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &openAIGenerator{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		maxTokens:      cfg.MaxTokens,
		rateLimitDelay: cfg.RateLimitDelay,
		logger:         logger.Named("OpenAIGenerator"),
	}
}

// Generate sends the prompt as a chat completion. The system message pins
// the reply format to JSON. HTTP 429 responses are waited out and retried
// until the context is cancelled; any other error returns immediately.
func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "JSON"},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   g.maxTokens,
	}

	for {
		start := time.Now()
		resp, err := g.client.CreateChatCompletion(ctx, req)
		aiRequestDuration.With(prometheus.Labels{"provider": "openai", "model": g.model}).
			Observe(time.Since(start).Seconds())

		if err != nil {
			if isRateLimited(err) {
				aiRateLimitWaits.With(prometheus.Labels{"provider": "openai", "model": g.model}).Inc()
				g.logger.Warn("Rate limit exceeded, waiting before retrying",
					zap.Duration("delay", g.rateLimitDelay))
				select {
				case <-time.After(g.rateLimitDelay):
					continue
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}
			aiRequestsTotal.With(prometheus.Labels{
				"provider": "openai", "model": g.model, "status": "error",
			}).Inc()
			return "", fmt.Errorf("chat completion failed: %w", err)
		}

		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			aiRequestsTotal.With(prometheus.Labels{
				"provider": "openai", "model": g.model, "status": "empty",
			}).Inc()
			return "", ErrEmptyResponse
		}

		aiRequestsTotal.With(prometheus.Labels{
			"provider": "openai", "model": g.model, "status": "success",
		}).Inc()
		return resp.Choices[0].Message.Content, nil
	}
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// --- Ollama implementation (local models) ---

type ollamaGenerator struct {
	client    *ollamaapi.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

func newOllamaGenerator(cfg Config, logger *zap.Logger) (*ollamaGenerator, error) {
	// The native client wants the base host without the /v1 suffix.
	base := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", base, err)
	}

	return &ollamaGenerator{
		client:    ollamaapi.NewClient(parsed, &http.Client{Timeout: cfg.Timeout}),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger.Named("OllamaGenerator"),
	}, nil
}

func (g *ollamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &ollamaapi.ChatRequest{
		Model: g.model,
		Messages: []ollamaapi.Message{
			{Role: "system", Content: "JSON"},
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": 0.7,
			"num_predict": g.maxTokens,
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	var content strings.Builder
	err := g.client.Chat(requestCtx, req, func(r ollamaapi.ChatResponse) error {
		content.WriteString(r.Message.Content)
		return nil
	})
	aiRequestDuration.With(prometheus.Labels{"provider": "ollama", "model": g.model}).
		Observe(time.Since(start).Seconds())

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{
			"provider": "ollama", "model": g.model, "status": "error",
		}).Inc()
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	if content.Len() == 0 {
		aiRequestsTotal.With(prometheus.Labels{
			"provider": "ollama", "model": g.model, "status": "empty",
		}).Inc()
		return "", ErrEmptyResponse
	}

	aiRequestsTotal.With(prometheus.Labels{
		"provider": "ollama", "model": g.model, "status": "success",
	}).Inc()
	return content.String(), nil
}
