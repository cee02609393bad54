package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOpenAI(t *testing.T, status int, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-2024-08-06",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestOpenAIClient_GenerateJSONFromParts(t *testing.T) {
	var body map[string]any
	srv := newFakeOpenAI(t, http.StatusOK, "```json\n{\"company_name\": \"Acme\"}\n```", &body)
	defer srv.Close()

	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = srv.URL + "/v1"
	client, err := NewOpenAIClient(cfg, "test-key")
	require.NoError(t, err)
	defer client.Close()

	out, err := client.GenerateJSONFromParts(context.Background(), "extract", []Part{
		{MIMEType: "image/png", Data: []byte("png-bytes")},
		{Text: "page two text"},
	}, TierStandard)
	require.NoError(t, err)
	assert.Equal(t, `{"company_name": "Acme"}`, out)

	assert.Equal(t, "gpt-4o-2024-08-06", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 3)
	image := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(image["url"].(string), "data:image/png;base64,"))
	assert.Equal(t, "high", image["detail"])
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := newFakeOpenAI(t, http.StatusTooManyRequests, "", nil)
	defer srv.Close()

	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = srv.URL + "/v1"
	client, err := NewOpenAIClient(cfg, "test-key")
	require.NoError(t, err)

	_, err = client.GenerateJSON(context.Background(), "extract", TierStandard)
	var apiErr *APICallError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ProviderOpenAI, apiErr.Provider)
}

func TestOpenAIClient_EmptyContent(t *testing.T) {
	srv := newFakeOpenAI(t, http.StatusOK, "  ", nil)
	defer srv.Close()

	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = srv.URL + "/v1"
	client, err := NewOpenAIClient(cfg, "test-key")
	require.NoError(t, err)

	_, err = client.GenerateContent(context.Background(), "hello", TierLite)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestNewClient(t *testing.T) {
	_, err := NewOpenAIClient(nil, "")
	assert.Error(t, err)

	c, err := NewClient(context.Background(), DefaultOpenAIConfig(), "key")
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = NewClient(context.Background(), &Config{Provider: "anthropic"}, "key")
	assert.Error(t, err)
}
