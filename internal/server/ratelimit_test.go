// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func limited(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	return rateLimitMiddleware(cfg, done)(okHandler())
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp/", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	h := limited(t, RateLimitConfig{RequestsPerSecond: 0, Burst: 10})

	for i := 0; i < 100; i++ {
		w := hit(h, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	}
}

func TestRateLimitMiddleware_ExceedsLimit(t *testing.T) {
	// A very low rate keeps refill out of the picture.
	h := limited(t, RateLimitConfig{RequestsPerSecond: 0.001, Burst: 3})
	ip := "192.168.1.1:12345"

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, ip).Code, "request %d should succeed", i)
	}

	w := hit(h, ip)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimitMiddleware_PerIPIsolation(t *testing.T) {
	h := limited(t, RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:12345").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.1:12345").Code)

	// Same IP on another port shares the bucket.
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.1:54321").Code)

	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.2:12345").Code)
}

func TestRateLimitMiddleware_TokenRefill(t *testing.T) {
	h := limited(t, RateLimitConfig{RequestsPerSecond: 20, Burst: 1})
	ip := "10.0.0.1:1000"

	require.Equal(t, http.StatusOK, hit(h, ip).Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, ip).Code)

	assert.Eventually(t, func() bool {
		return hit(h, ip).Code == http.StatusOK
	}, time.Second, 20*time.Millisecond)
}

func TestRateLimitMiddleware_Concurrent(t *testing.T) {
	h := limited(t, RateLimitConfig{RequestsPerSecond: 0.001, Burst: 10})

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if hit(h, "172.16.0.1:80").Code == http.StatusOK {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, ok)
}

func TestVisitors_Cleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v := newVisitors(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, MaxVisitors: 2})
	v.nowFn = func() time.Time { return now }

	v.allow("stale")
	now = now.Add(visitorStaleAfter + time.Minute)
	for i := 0; i < 3; i++ {
		v.allow(fmt.Sprintf("10.0.0.%d", i))
		now = now.Add(time.Second)
	}
	require.Equal(t, 4, v.len())

	v.cleanup()

	assert.Equal(t, 2, v.len())
	v.mu.Lock()
	defer v.mu.Unlock()
	assert.NotContains(t, v.byIP, "stale")
	assert.NotContains(t, v.byIP, "10.0.0.0", "oldest live visitor is evicted over the cap")
	assert.Contains(t, v.byIP, "10.0.0.2")
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr string
	}{
		{name: "disabled", cfg: RateLimitConfig{}},
		{name: "valid", cfg: RateLimitConfig{RequestsPerSecond: 5, Burst: 10}},
		{name: "negative rate", cfg: RateLimitConfig{RequestsPerSecond: -1}, wantErr: "must not be negative"},
		{name: "zero burst", cfg: RateLimitConfig{RequestsPerSecond: 5}, wantErr: "burst must be positive"},
		{name: "negative visitors", cfg: RateLimitConfig{MaxVisitors: -1}, wantErr: "max visitors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, defaultMaxVisitors, cfg.MaxVisitors)
				return
			}
			require.Error(t, err)
			assert.True(t, quarryerr.HasCode(err, quarryerr.CodeServerConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
