package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PhoneVerse/internal/config"
)

func TestCohereClientComplete(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)
		assert.Equal(t, "Bearer co-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"# Title\n\nBody","generation_id":"g1"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewCohereClient(config.CohereConfig{
		APIKey:      "co-key",
		BaseURL:     srv.URL,
		Model:       "command-r",
		Temperature: 0.9,
		MaxTokens:   2000,
		Timeout:     5 * time.Second,
	})

	out, err := client.Complete(context.Background(), "rewrite this")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody", out)

	assert.Equal(t, "rewrite this", got["message"])
	assert.Equal(t, defaultSystemPrompt, got["preamble"])
	assert.Equal(t, "command-r", got["model"])
	assert.InDelta(t, 0.9, got["temperature"], 1e-9)
	assert.InDelta(t, 2000, got["max_tokens"], 1e-9)
	assert.Equal(t, false, got["stream"])
}

func TestCohereClientErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "Bearer bad-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid api token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"text":"   "}`))
	}))
	t.Cleanup(srv.Close)

	empty := NewCohereClient(config.CohereConfig{APIKey: "ok", BaseURL: srv.URL})
	_, err := empty.Complete(context.Background(), "x")
	assert.EqualError(t, err, "cohere chat returned no text")

	unauthorized := NewCohereClient(config.CohereConfig{APIKey: "bad-key", BaseURL: srv.URL})
	_, err = unauthorized.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cohere chat")

	var nilClient *CohereClient
	_, err = nilClient.Complete(context.Background(), "x")
	assert.Error(t, err)
}
