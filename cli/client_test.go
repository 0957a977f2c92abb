package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/compozy/docqa/engine/infra/server"
	"github.com/compozy/docqa/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.CLI.BaseURL = baseURL
	cfg.CLI.APIKey = "secret-token"
	cfg.CLI.Timeout = 5 * time.Second
	return cfg
}

func TestAPIClient_Run(t *testing.T) {
	t.Run("Should send the bearer token and decode answers", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, server.RouteRun, r.URL.Path)
			assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
			var req server.RunRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "https://example.com/doc.pdf", req.Documents)
			assert.Equal(t, []string{"q1", "q2"}, req.Questions)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(server.RunResponse{Answers: []string{"a1", "a2"}})
		}))
		defer srv.Close()

		client, err := NewAPIClient(clientConfig(srv.URL))
		require.NoError(t, err)

		answers, err := client.Run(context.Background(), "https://example.com/doc.pdf", []string{"q1", "q2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, answers)
	})

	t.Run("Should retry on service unavailable", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(server.RunResponse{Answers: []string{"ok"}})
		}))
		defer srv.Close()

		client, err := NewAPIClient(clientConfig(srv.URL))
		require.NoError(t, err)

		answers, err := client.Run(context.Background(), "https://example.com/doc.pdf", []string{"q"})
		require.NoError(t, err)
		assert.Equal(t, []string{"ok"}, answers)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("Should surface the problem detail on client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":401,"error":"Unauthorized","code":"unauthorized","details":"invalid token"}`))
		}))
		defer srv.Close()

		client, err := NewAPIClient(clientConfig(srv.URL))
		require.NoError(t, err)

		_, err = client.Run(context.Background(), "https://example.com/doc.pdf", []string{"q"})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Contains(t, err.Error(), "invalid token")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should reject a mismatched answer count", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(server.RunResponse{Answers: []string{"only one"}})
		}))
		defer srv.Close()

		client, err := NewAPIClient(clientConfig(srv.URL))
		require.NoError(t, err)

		_, err = client.Run(context.Background(), "https://example.com/doc.pdf", []string{"q1", "q2"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 answers for 2 questions")
	})
}

func TestNewAPIClient(t *testing.T) {
	t.Run("Should require a base URL", func(t *testing.T) {
		_, err := NewAPIClient(clientConfig(" "))
		require.Error(t, err)
	})
}
