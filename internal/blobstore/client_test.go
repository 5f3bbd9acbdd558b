package blobstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, baseURL string, maxBytes int64) *Client {
	t.Helper()
	c, err := NewClient(&Config{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		MaxBlobBytes:   maxBytes,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestClient_Upload(t *testing.T) {
	t.Run("uploads and returns the content id", func(t *testing.T) {
		payload := []byte("encrypted deliverable")

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/v1/blobs", r.URL.Path)
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, payload, body)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"content_id": "cid-1",
				"size":       len(body),
			})
		}))
		defer srv.Close()

		contentID, err := testClient(t, srv.URL, 0).Upload(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, "cid-1", contentID)
	})

	t.Run("rejects empty payload without a request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		}))
		defer srv.Close()

		_, err := testClient(t, srv.URL, 0).Upload(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("rejects oversized payload without a request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		}))
		defer srv.Close()

		_, err := testClient(t, srv.URL, 4).Upload(context.Background(), []byte("too large"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds limit")
	})

	t.Run("store failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := testClient(t, srv.URL, 0).Upload(context.Background(), []byte("data"))
		require.Error(t, err)
	})

	t.Run("empty content id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"size": 4})
		}))
		defer srv.Close()

		_, err := testClient(t, srv.URL, 0).Upload(context.Background(), []byte("data"))
		require.Error(t, err)
	})
}
