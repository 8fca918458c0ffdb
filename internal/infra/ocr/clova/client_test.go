package clova

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

const sampleResponse = `{
  "version": "V2",
  "requestId": "abc",
  "timestamp": 1722225600000,
  "images": [{
    "uid": "u1",
    "name": "ingredient_label",
    "inferResult": "SUCCESS",
    "fields": [
      {"inferText": "아세클로페낙", "inferConfidence": 0.99,
       "boundingPoly": {"vertices": [{"x": 1, "y": 2}, {"x": 30, "y": 2}, {"x": 30, "y": 12}, {"x": 1, "y": 12}]}},
      {"boundingPoly": {"vertices": [{"x": 5.5, "y": 20}]}}
    ]
  }]
}`

func TestClient_Scan_SendsEnvelope(t *testing.T) {
	fixed := time.Date(2024, 7, 29, 4, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "s3cret", r.Header.Get("X-OCR-SECRET"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte("img-bytes"), data)
		assert.Equal(t, "image.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))

		var msg message
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("message")), &msg))
		assert.Equal(t, "v2", msg.Version)
		assert.Equal(t, "ko", msg.Lang)
		assert.NotEmpty(t, msg.RequestID)
		assert.Equal(t, fixed.UnixMilli(), msg.Timestamp)
		require.Len(t, msg.Images, 1)
		assert.Equal(t, "png", msg.Images[0].Format)
		assert.Equal(t, "ingredient_label", msg.Images[0].Name)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Secret: "s3cret"}, srv.Client(), nil)
	c.now = func() time.Time { return fixed }

	res, err := c.Scan(context.Background(), analysis.Image{Data: []byte("img-bytes"), Format: "png"})
	require.NoError(t, err)

	fields := res.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "아세클로페낙", fields[0].InferText)
	assert.Len(t, fields[0].BoundingPoly.Vertices, 4)
	assert.Equal(t, "", fields[1].InferText)
	assert.Equal(t, 5.5, fields[1].BoundingPoly.Vertices[0].X)
}

func TestClient_Scan_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
		{"no images", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"images": []}`))
		}},
		{"wrong field shape", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"images": [{"fields": [{"inferText": 3, "boundingPoly": {"vertices": []}}]}]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			c := NewClient(Config{URL: srv.URL}, srv.Client(), nil)
			_, err := c.Scan(context.Background(), analysis.Image{Data: []byte("x"), Format: "jpeg"})
			assert.ErrorIs(t, err, analysis.ErrOCRService)
			assert.Equal(t, int32(1), calls.Load(), "no retries")
		})
	}
}

func TestClient_Scan_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client(), nil)
	_, err := c.Scan(context.Background(), analysis.Image{Data: []byte("x"), Format: "png"})
	assert.ErrorIs(t, err, analysis.ErrOCRService)
}

func TestClient_Scan_Unreachable(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:1/ocr", Timeout: time.Second}, nil, nil)
	_, err := c.Scan(context.Background(), analysis.Image{Data: []byte("x"), Format: "png"})
	assert.ErrorIs(t, err, analysis.ErrOCRService)
}
