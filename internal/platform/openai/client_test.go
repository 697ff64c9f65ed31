package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type countingObserver struct{ calls atomic.Int32 }

func (o *countingObserver) ObserveProviderRequest(string, string, string, time.Duration) {
	o.calls.Add(1)
}

func newTestClient(t *testing.T, cfg Config, obs Observer) *client {
	t.Helper()
	c, err := NewClient(cfg, logger.Nop(), obs)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	cc := c.(*client)
	cc.backoff = time.Millisecond
	return cc
}

func writeImages(w http.ResponseWriter, items ...map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"created": 1, "data": items})
}

func TestGenerateImageDecodesBase64(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeImages(w, map[string]any{"b64_json": base64.StdEncoding.EncodeToString(png), "revised_prompt": " neon city "})
	}))
	defer srv.Close()

	obs := &countingObserver{}
	c := newTestClient(t, Config{BaseURL: srv.URL, APIKey: "sk-test"}, obs)

	img, err := c.GenerateImage(context.Background(), "a neon city")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(img.Bytes) != string(png) {
		t.Fatalf("bytes = %q, want %q", img.Bytes, png)
	}
	if img.MimeType != "image/png" || img.RevisedPrompt != "neon city" {
		t.Fatalf("unexpected image: mime=%q revised=%q", img.MimeType, img.RevisedPrompt)
	}
	if got["model"] != "dall-e-3" || got["response_format"] != "b64_json" || got["prompt"] != "a neon city" {
		t.Fatalf("unexpected request body: %v", got)
	}
	if n := obs.calls.Load(); n != 1 {
		t.Fatalf("observer calls = %d, want 1", n)
	}
}

func TestGenerateImageOmitsResponseFormatForGPTImage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeImages(w, map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte("img"))})
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL + "/v1", APIKey: "k", ImageModel: "gpt-image-1"}, nil)
	if _, err := c.GenerateImage(context.Background(), "x"); err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if _, ok := got["response_format"]; ok {
		t.Fatalf("response_format sent for gpt-image model: %v", got)
	}
}

func TestGenerateImageRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeImages(w, map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte("img"))})
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 1}, nil)
	img, err := c.GenerateImage(context.Background(), "x")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(img.Bytes) != "img" {
		t.Fatalf("bytes = %q", img.Bytes)
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("hits = %d, want 2", n)
	}
}

func TestGenerateImageDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"content policy","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 3}, nil)
	_, err := c.GenerateImage(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "content policy") {
		t.Fatalf("error = %v", err)
	}
	if statusOf(err) != "400" {
		t.Fatalf("statusOf = %q, want 400", statusOf(err))
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("hits = %d, want 1", n)
	}
}

func TestGenerateImageDownloadsURLResponse(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/img.webp" {
			if auth := r.Header.Get("Authorization"); auth != "Bearer k" {
				t.Errorf("download Authorization = %q", auth)
			}
			w.Header().Set("Content-Type", "image/webp; charset=binary")
			_, _ = w.Write([]byte("webp"))
			return
		}
		writeImages(w, map[string]any{"url": srv.URL + "/files/img.webp"})
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL, APIKey: "k"}, nil)
	img, err := c.GenerateImage(context.Background(), "x")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(img.Bytes) != "webp" || img.MimeType != "image/webp" {
		t.Fatalf("unexpected image: %q %q", img.Bytes, img.MimeType)
	}
}

func TestGenerateImageRejectsEmptyPrompt(t *testing.T) {
	c := newTestClient(t, Config{APIKey: "k"}, nil)
	if _, err := c.GenerateImage(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}, logger.Nop(), nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestAPIBase(t *testing.T) {
	cases := map[string]string{
		"https://api.openai.com":    "https://api.openai.com/v1",
		"https://api.openai.com/v1": "https://api.openai.com/v1",
		"http://proxy.local:9000":   "http://proxy.local:9000/v1",
	}
	for in, want := range cases {
		if got := apiBase(in); got != want {
			t.Fatalf("apiBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShouldAttachOpenAIAuth(t *testing.T) {
	if !shouldAttachOpenAIAuth("https://api.openai.com", "https://files.openai.com/x.png") {
		t.Fatalf("expected auth for openai.com subdomain")
	}
	if !shouldAttachOpenAIAuth("http://proxy.local:9000", "http://proxy.local:9000/img") {
		t.Fatalf("expected auth for base host")
	}
	if shouldAttachOpenAIAuth("https://api.openai.com", "https://blob.core.windows.net/x.png") {
		t.Fatalf("unexpected auth for foreign host")
	}
}
