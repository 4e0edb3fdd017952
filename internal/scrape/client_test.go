package scrape

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetReturnsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept-Language"), "uk-UA")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{MaxConcurrent: 1}, nil)
	body, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
}

func TestClientGetNon200IsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{MaxConcurrent: 1}, nil)
	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestClientGetJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"count":7}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{MaxConcurrent: 1}, nil)
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, 7, out.Count)
}

func TestClientPostJSONSendsBodyAndHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "https://auto.ria.com", r.Header.Get("Origin"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "abc", payload["hash"])

		_, _ = w.Write([]byte(`{"phone":"(063) 123 45 67"}`))
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Origin", "https://auto.ria.com")

	client := NewClient(ClientConfig{MaxConcurrent: 1}, nil)
	raw, err := client.PostJSON(context.Background(), srv.URL, map[string]any{"hash": "abc"}, headers)
	require.NoError(t, err)
	assert.JSONEq(t, `{"phone":"(063) 123 45 67"}`, string(raw))
}

func TestClientPostJSONNon200IsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{MaxConcurrent: 1}, nil)
	_, err := client.PostJSON(context.Background(), srv.URL, map[string]any{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestClientGateBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		current := atomic.AddInt64(&inFlight, 1)
		for {
			oldPeak := atomic.LoadInt64(&peak)
			if current <= oldPeak || atomic.CompareAndSwapInt64(&peak, oldPeak, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{MaxConcurrent: 2}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), srv.URL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestClientContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{MaxConcurrent: 1}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, srv.URL)
	require.Error(t, err)
}
