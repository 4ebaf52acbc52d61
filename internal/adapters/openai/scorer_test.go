package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phishguard/phishguard/internal/utils"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScorer(t *testing.T, handler http.HandlerFunc) *Scorer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	client := openai.NewClientWithConfig(cfg)

	logger := zap.NewNop()
	return NewScorer(client, "gpt-4o-mini", 200, 4096, logger, utils.NewTextProcessor(logger))
}

func completion(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			},
		},
	}
}

func TestScorer_Score(t *testing.T) {
	var got openai.ChatCompletionRequest
	var raw map[string]json.RawMessage
	s := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))
		assert.NoError(t, json.Unmarshal(body, &raw))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"score": 0.91, "explanation": "credential harvesting"}`))
	})

	score, err := s.Score(context.Background(), "Your mailbox is full, verify your password")
	require.NoError(t, err)
	assert.InDelta(t, 0.91, score, 1e-9)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Contains(t, raw, "temperature")
	var temperature float64
	require.NoError(t, json.Unmarshal(raw["temperature"], &temperature))
	assert.Greater(t, temperature, 0.0)
	assert.InDelta(t, 0, temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "verify your password")
	assert.Equal(t, "openai:gpt-4o-mini", s.ModelVersion())
}

func TestScorer_Errors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(completion("I am not sure"))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestScorer(t, handler)
			_, err := s.Score(context.Background(), "hello")
			assert.Error(t, err)
		})
	}
}
