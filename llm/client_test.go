package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/mathcheck/model"
)

// stubProvider speaks a trivial JSON protocol for tests.
type stubProvider struct{}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) BuildURL(baseURL, _ string) string { return baseURL }

func (s *stubProvider) SetHeaders(req *http.Request) {
	req.Header.Set("X-Stub", "1")
}

func (s *stubProvider) BuildRequestBody(m string, messages []Message, _ *float64, _ int) ([]byte, error) {
	return json.Marshal(map[string]any{"model": m, "messages": messages})
}

func (s *stubProvider) ParseResponse(body []byte, m string) (*Response, error) {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if parsed.Text == "" {
		return nil, fmt.Errorf("empty stub response")
	}
	return &Response{Content: parsed.Text, Model: m}, nil
}

func init() {
	RegisterProvider(&stubProvider{})
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	reg, err := model.NewRegistry(map[string]*model.Endpoint{
		"test": {Provider: "stub", URL: url, Model: "test-model"},
	}, "test")
	require.NoError(t, err)
	return NewClient(reg, WithRetryConfig(fastRetry()))
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.Header.Get("X-Stub"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		fmt.Fprint(w, `{"text":"\\boxed{42}"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "answer"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `\boxed{42}`, resp.Content)
	assert.NotEmpty(t, resp.RequestID)
}

func TestCompleteRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "q"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompleteFatalStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "q"}},
	})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "q"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompleteValidation(t *testing.T) {
	c := newTestClient(t, "http://unused")

	_, err := c.Complete(context.Background(), Request{})
	assert.Error(t, err, "messages required")

	_, err = c.Complete(context.Background(), Request{
		Model:    "ghost",
		Messages: []Message{{Role: "user", Content: "q"}},
	})
	assert.ErrorContains(t, err, "unknown model")
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	tr := NewTransientError(base)
	assert.True(t, IsTransient(tr))
	assert.False(t, IsFatal(tr))
	assert.ErrorIs(t, tr, base)

	fa := NewFatalError(base)
	assert.True(t, IsFatal(fa))
	assert.False(t, IsTransient(fa))

	wrapped := fmt.Errorf("context: %w", tr)
	assert.True(t, IsTransient(wrapped))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        3 * time.Second,
	}
	// Jitter keeps each wait within 25% of the exponential schedule.
	within := func(want, got time.Duration) {
		t.Helper()
		assert.InDelta(t, float64(want), float64(got), float64(want)*0.25)
	}
	within(time.Second, cfg.backoff(1))
	within(2*time.Second, cfg.backoff(2))
	within(3*time.Second, cfg.backoff(3))
	within(3*time.Second, cfg.backoff(10))
}
