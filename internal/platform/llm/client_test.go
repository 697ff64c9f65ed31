package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "artforge", r.Header.Get("X-Title"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(ProviderConfig{
		Name:    "local",
		BaseURL: baseURL + "/v1",
		Model:   "test-model",
		Headers: map[string]string{"X-Title": "artforge"},
	}, logger.Nop(), nil)
	require.NoError(t, err)
	return c
}

func TestCompleteReturnsTrimmedContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "  A neon koi drifting through rain.  ")
	out, err := newTestClient(t, srv.URL).Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "A neon koi drifting through rain.", out)
}

func TestCompleteSurfacesProviderErrors(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "")
	_, err := newTestClient(t, srv.URL).Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local chat completion")
}

func TestCompleteRejectsEmptyContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "   ")
	_, err := newTestClient(t, srv.URL).Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty content")
}

func TestNewValidates(t *testing.T) {
	_, err := New(ProviderConfig{Name: "x", Model: "m"}, logger.Nop(), nil)
	assert.Error(t, err)
	_, err = New(ProviderConfig{BaseURL: "http://x", Model: "m"}, logger.Nop(), nil)
	assert.Error(t, err)
}
