package correction

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

func TestClient_Correct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"아세클로페닉", "정제수"}, body.Ingredients)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"corrected_ingredients": []string{"아세클로페낙", "정제수"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, srv.Client(), nil)
	got, err := c.Correct(context.Background(), []string{"아세클로페닉", "정제수"})
	require.NoError(t, err)
	assert.Equal(t, []string{"아세클로페낙", "정제수"}, got)
}

func TestClient_Correct_EmptyInputSendsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{}, body["ingredients"])
		_, _ = w.Write([]byte(`{"corrected_ingredients": []}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, time.Second, srv.Client(), nil).Correct(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestClient_Correct_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{"corrected_ingredients": []}`},
		{"missing key", http.StatusOK, `{"ingredients": ["a"]}`},
		{"wrong item type", http.StatusOK, `{"corrected_ingredients": [1, 2]}`},
		{"not json", http.StatusOK, `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, srv.Client(), nil).Correct(context.Background(), []string{"a"})
			assert.ErrorIs(t, err, analysis.ErrNormalizationService)
		})
	}
}

func TestClient_Correct_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 50*time.Millisecond, srv.Client(), nil).Correct(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, analysis.ErrNormalizationService)
}
