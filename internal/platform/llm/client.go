package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

// ProviderConfig describes one OpenAI-compatible chat endpoint.
type ProviderConfig struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
	// Extra headers, e.g. OpenRouter attribution.
	Headers map[string]string
}

type Observer interface {
	ObserveProviderRequest(provider, operation, status string, dur time.Duration)
}

// Client writes text through a single chat completion endpoint.
type Client struct {
	name        string
	model       string
	temperature float32
	maxTokens   int
	api         *openai.Client
	log         *logger.Logger
	obs         Observer
}

func New(cfg ProviderConfig, log *logger.Logger, obs Observer) (*Client, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, errors.New("llm provider name required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("llm provider %s: base url required", name)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm provider %s: model required", name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	oc := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	oc.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	oc.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &headerTransport{headers: cfg.Headers, base: http.DefaultTransport},
	}

	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.9
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Client{
		name:        name,
		model:       strings.TrimSpace(cfg.Model),
		temperature: temp,
		maxTokens:   maxTokens,
		api:         openai.NewClientWithConfig(oc),
		log:         log.With("client", "LLM", "provider", name),
		obs:         obs,
	}, nil
}

func (c *Client) Name() string { return c.name }

// Complete sends one system+user exchange and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.observe(statusOf(err), start)
		return "", fmt.Errorf("%s chat completion: %w", c.name, err)
	}
	c.observe("200", start)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no choices returned", c.name)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%s chat completion: empty content", c.name)
	}
	c.log.Debug("Prompt written", "model", c.model, "chars", len(text), "duration", time.Since(start).String())
	return text, nil
}

func (c *Client) observe(status string, start time.Time) {
	if c.obs == nil {
		return
	}
	c.obs.ObserveProviderRequest(c.name, "chat_completion", status, time.Since(start))
}

func statusOf(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return fmt.Sprintf("%d", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return fmt.Sprintf("%d", reqErr.HTTPStatusCode)
	}
	return "error"
}

type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}
