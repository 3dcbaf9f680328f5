package gsheets

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestTitleRange(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Sheet1", "'Sheet1'"},
		{"Example 1", "'Example 1'"},
		{"it's here", "'it''s here'"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, titleRange(tt.title))
	}
}

func TestTranslate_RecordsBackoff(t *testing.T) {
	limiter := newRateLimiter()
	client := &serviceClient{limiter: limiter}

	err := client.translate(&googleapi.Error{
		Code:   http.StatusTooManyRequests,
		Header: http.Header{"Retry-After": []string{"30"}},
	})
	assert.ErrorIs(t, err, ErrTransport)

	limiter.mu.Lock()
	retryAt := limiter.retryAt
	limiter.mu.Unlock()
	assert.WithinDuration(t, time.Now().Add(30*time.Second), retryAt, 2*time.Second)
}

func TestTranslate_NoBackoffForOtherCodes(t *testing.T) {
	limiter := newRateLimiter()
	client := &serviceClient{limiter: limiter}

	err := client.translate(&googleapi.Error{Code: http.StatusNotFound})
	assert.ErrorIs(t, err, ErrNotFound)

	limiter.mu.Lock()
	retryAt := limiter.retryAt
	limiter.mu.Unlock()
	assert.True(t, retryAt.IsZero())
}

func TestRateLimiter_BackoffDelaysWait(t *testing.T) {
	limiter := newRateLimiter()
	limiter.backoff(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The backoff window outlives the context, so the wait is cancelled.
	err := limiter.wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_DefaultBackoffWindow(t *testing.T) {
	limiter := newRateLimiter()
	limiter.backoff(0)

	limiter.mu.Lock()
	retryAt := limiter.retryAt
	limiter.mu.Unlock()
	assert.WithinDuration(t, time.Now().Add(defaultBackoffSeconds*time.Second), retryAt, 2*time.Second)
}

func TestRateLimiter_WaitWithinBurst(t *testing.T) {
	limiter := newRateLimiter()

	start := time.Now()
	for i := 0; i < defaultBurst; i++ {
		require.NoError(t, limiter.wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}
