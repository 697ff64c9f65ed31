package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/artforge-backend/internal/platform/httpx"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type ImageGeneration struct {
	Bytes         []byte
	MimeType      string
	RevisedPrompt string
}

// Client is the subset of the OpenAI API used for artifact generation.
type Client interface {
	GenerateImage(ctx context.Context, prompt string) (ImageGeneration, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	ImageModel string
	ImageSize  string
	Timeout    time.Duration
	MaxRetries int
}

// Observer receives one call per logical request, after retries.
type Observer interface {
	ObserveProviderRequest(provider, operation, status string, dur time.Duration)
}

type client struct {
	log        *logger.Logger
	obs        Observer
	api        *goopenai.Client
	baseURL    string
	apiKey     string
	imageModel string
	imageSize  string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

func NewClient(cfg Config, log *logger.Logger, obs Observer) (Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	model := strings.TrimSpace(cfg.ImageModel)
	if model == "" {
		model = goopenai.CreateImageModelDallE3
	}
	httpClient := &http.Client{Timeout: timeout}

	oc := goopenai.DefaultConfig(apiKey)
	oc.BaseURL = apiBase(baseURL)
	oc.HTTPClient = httpClient

	return &client{
		log:        log.With("client", "OpenAIImages"),
		obs:        obs,
		api:        goopenai.NewClientWithConfig(oc),
		baseURL:    baseURL,
		apiKey:     apiKey,
		imageModel: model,
		imageSize:  strings.TrimSpace(cfg.ImageSize),
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}, nil
}

// apiBase accepts both the host root and the versioned API root.
func apiBase(baseURL string) string {
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL
	}
	return baseURL + "/v1"
}

func (c *client) createImage(ctx context.Context, req goopenai.ImageRequest) (goopenai.ImageResponse, error) {
	backoff := c.backoff
	start := time.Now()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return goopenai.ImageResponse{}, err
		}

		resp, err := c.api.CreateImage(ctx, req)
		if err == nil {
			c.observe("200", start)
			return resp, nil
		}

		if !isRetryable(err) || attempt >= c.maxRetries {
			c.observe(statusOf(err), start)
			return goopenai.ImageResponse{}, fmt.Errorf("openai create image: %w", err)
		}

		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("OpenAI request retrying",
			"operation", "images.generate",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return goopenai.ImageResponse{}, err
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
}

func (c *client) observe(status string, start time.Time) {
	if c.obs == nil {
		return
	}
	c.obs.ObserveProviderRequest("openai", "images.generate", status, time.Since(start))
}

func httpStatus(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func statusOf(err error) string {
	if code := httpStatus(err); code > 0 {
		return strconv.Itoa(code)
	}
	return "error"
}

func isRetryable(err error) bool {
	if code := httpStatus(err); code > 0 {
		return httpx.IsRetryableHTTPStatus(code)
	}
	return httpx.IsRetryableError(err)
}

func isUnknownResponseFormatParam(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown parameter") && strings.Contains(msg, "response_format")
}

func (c *client) GenerateImage(ctx context.Context, prompt string) (ImageGeneration, error) {
	var out ImageGeneration
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}

	// gpt-image models always return b64 and reject the parameter.
	responseFormat := goopenai.CreateImageResponseFormatB64JSON
	if strings.HasPrefix(strings.ToLower(c.imageModel), "gpt-image-") {
		responseFormat = ""
	}
	req := goopenai.ImageRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           c.imageSize,
		ResponseFormat: responseFormat,
	}

	resp, err := c.createImage(ctx, req)
	if err != nil {
		if !isUnknownResponseFormatParam(err) {
			return out, err
		}
		req.ResponseFormat = ""
		if resp, err = c.createImage(ctx, req); err != nil {
			return out, err
		}
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	item := resp.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)

	b64 := strings.TrimSpace(item.B64JSON)
	if b64 == "" {
		u := strings.TrimSpace(item.URL)
		if u == "" {
			return out, errors.New("image response missing b64_json and url")
		}
		b, ct, err := c.downloadBytes(ctx, u)
		if err != nil {
			return out, fmt.Errorf("download generated image: %w", err)
		}
		out.Bytes = b
		out.MimeType = strings.TrimSpace(strings.Split(ct, ";")[0])
		if out.MimeType == "" {
			out.MimeType = "image/png"
		}
		return out, nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return out, fmt.Errorf("decode image base64: %w", err)
	}
	if len(raw) == 0 {
		return out, errors.New("decode image base64: empty payload")
	}
	out.Bytes = raw
	out.MimeType = "image/png"
	return out, nil
}

func (c *client) downloadBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	// Signed blob URLs break when sent an unrelated Authorization header.
	if shouldAttachOpenAIAuth(c.baseURL, rawURL) {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &httpx.StatusError{Service: "openai", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, strings.TrimSpace(resp.Header.Get("Content-Type")), nil
}

func shouldAttachOpenAIAuth(baseURL, rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u == nil {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return false
	}
	if bu, err := url.Parse(strings.TrimSpace(baseURL)); err == nil && bu != nil {
		baseHost := strings.ToLower(strings.TrimSpace(bu.Hostname()))
		if baseHost != "" && host == baseHost {
			return true
		}
	}
	return host == "openai.com" || strings.HasSuffix(host, ".openai.com")
}
