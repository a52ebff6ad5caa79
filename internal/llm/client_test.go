package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visara/reading-engine/internal/config"
)

func mockConfig(endpoint string) config.ModelConfig {
	return config.ModelConfig{
		Model:        "test-model",
		VisionModel:  "test-vision-model",
		MaxTokens:    1024,
		Temperature:  0.5,
		MockMode:     true,
		MockEndpoint: endpoint,
	}
}

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestNewHTTPClientRequiresCredentialOrMock(t *testing.T) {
	_, err := NewHTTPClient(config.ModelConfig{}, nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestInvokeSuccess(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("generated text")))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(mockConfig(srv.URL), nil)
	require.NoError(t, err)

	ctx, counter := WithCallCounter(context.Background())
	result, err := client.Invoke(ctx, Request{
		Prompt:       "write something",
		SystemPrompt: "be helpful",
	})
	require.NoError(t, err)

	assert.Equal(t, "generated text", result.Content)
	assert.Equal(t, 30, result.Usage.TotalTokens)
	assert.Equal(t, 1, counter.Count())

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
}

func TestInvokeImageRequestUsesVisionModelAndParts(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(completionBody("described")))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(mockConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), Request{
		Prompt:         "describe the photo",
		ImageURL:       "https://example.com/photo.jpg",
		UseImage:       true,
		ResponseFormat: "json_object",
	})
	require.NoError(t, err)

	assert.Equal(t, "test-vision-model", captured["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, captured["response_format"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	assert.Equal(t, "image_url", parts[1].(map[string]any)["type"])
}

func TestInvokeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(mockConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
}

func TestInvokeEmbeddedProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"message": "model overloaded"}, "choices": []}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(mockConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), Request{Prompt: "hi"})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, upstream.Body, "model overloaded")
}

func TestInvokeMalformedResponse(t *testing.T) {
	cases := map[string]string{
		"not json":     "plain text body",
		"no choices":   `{"choices": []}`,
		"null content": `{"choices": [{"message": {}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			client, err := NewHTTPClient(mockConfig(srv.URL), nil)
			require.NoError(t, err)

			_, err = client.Invoke(context.Background(), Request{Prompt: "hi"})
			var malformed *MalformedResponseError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}

func TestInvokeNetworkError(t *testing.T) {
	client, err := NewHTTPClient(mockConfig("http://127.0.0.1:1"), nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), Request{Prompt: "hi"})
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestInvokeSendsBearerWhenNotMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(config.ModelConfig{
		Endpoint: srv.URL,
		APIKey:   "secret",
		Model:    "test-model",
	}, nil)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
}
