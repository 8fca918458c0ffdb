package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func TestNormalizer_Correct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"corrected_ingredients":["아세클로페낙"]}`))
	}))
	defer srv.Close()

	n := NewNormalizer("test-key", srv.URL, "", time.Second, nil)
	got, err := n.Correct(context.Background(), []string{"아세클로페닉"})
	require.NoError(t, err)
	assert.Equal(t, []string{"아세클로페낙"}, got)
}

func TestNormalizer_Correct_OffSchemaContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"answer":"sure"}`))
	}))
	defer srv.Close()

	_, err := NewNormalizer("k", srv.URL, "", time.Second, nil).Correct(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, analysis.ErrNormalizationService)
}

func TestNormalizer_Correct_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	_, err := NewNormalizer("k", srv.URL, "", time.Second, nil).Correct(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, analysis.ErrNormalizationService)
}
