package edge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/mission-control/pkg/logger"
)

func newTestClient(t *testing.T, serverURL string, maxAttempts int) *Client {
	t.Helper()
	c := NewClient(serverURL, "test-token", maxAttempts, logger.NewNop())
	// Keep test retries fast.
	c.httpClient.Timeout = 2 * time.Second
	return c
}

func TestInvokeSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Result{Success: true, Data: json.RawMessage(`{"ok":1}`)})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	result, err := client.Invoke(context.Background(), "chat-completion", "summarize",
		map[string]any{"conversation_id": "abc"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.JSONEq(t, `{"ok":1}`, string(result.Data))
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "/functions/v1/chat-completion", gotPath)
	assert.Equal(t, "summarize", gotBody["action"])
	assert.Equal(t, "abc", gotBody["conversation_id"])
}

func TestInvokePlainBodyCountsAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows": 3}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	result, err := client.Invoke(context.Background(), "fn", "go", nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.JSONEq(t, `{"rows": 3}`, string(result.Data))
}

func TestInvokeReportedFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(Result{Success: false, Error: "unknown action"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	result, err := client.Invoke(context.Background(), "fn", "go", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "unknown action", result.Error)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvokeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Result{Success: true})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	result, err := client.Invoke(context.Background(), "fn", "go", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvokeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(Result{Success: true})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	result, err := client.Invoke(context.Background(), "fn", "go", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvokeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"bad action"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 4)
	result, err := client.Invoke(context.Background(), "fn", "go", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "422")
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestInvokeBoundsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)
	result, err := client.Invoke(context.Background(), "fn", "go", nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "503")
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvokeContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, server.URL, 4)
	_, err := client.Invoke(ctx, "fn", "go", nil)
	assert.Error(t, err)
}
