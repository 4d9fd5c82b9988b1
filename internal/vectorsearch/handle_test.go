// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package vectorsearch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/quarry/internal/vectorsearch"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id     int
	closed atomic.Bool
}

func (s *fakeSession) Search(context.Context, vectorsearch.SearchRequest) (*vectorsearch.SearchResult, error) {
	if s.closed.Load() {
		return nil, errors.New("use of closed session")
	}
	return &vectorsearch.SearchResult{Records: []map[string]any{{"session": s.id, "score": 1.0}}}, nil
}

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeClient struct {
	mu       sync.Mutex
	connects int
	failFrom int // connect attempts >= failFrom fail; 0 never fails
	sessions []*fakeSession
}

func (c *fakeClient) Connect(context.Context) (vectorsearch.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.failFrom > 0 && c.connects >= c.failFrom {
		return nil, errors.New("dial tcp: connection refused")
	}
	s := &fakeSession{id: c.connects}
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeClient) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func connected(t *testing.T, c *fakeClient) *vectorsearch.Handle {
	t.Helper()
	h := vectorsearch.NewHandle(c)
	require.NoError(t, h.Connect(context.Background()))
	require.True(t, h.Enabled())
	return h
}

func TestInvoke_Success(t *testing.T) {
	c := &fakeClient{}
	h := connected(t, c)

	out, err := h.Invoke(context.Background(), func(ctx context.Context, s vectorsearch.Session) (any, error) {
		return s.Search(ctx, vectorsearch.SearchRequest{Question: "q", TopK: 1})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.(*vectorsearch.SearchResult).Records[0]["session"])
	assert.Equal(t, 1, c.connectCount())
}

func TestInvoke_ExpiredRefreshesOnceAndRetries(t *testing.T) {
	c := &fakeClient{}
	h := connected(t, c)

	var calls []int
	out, err := h.Invoke(context.Background(), func(_ context.Context, s vectorsearch.Session) (any, error) {
		id := s.(*fakeSession).id
		calls = append(calls, id)
		if id == 1 {
			return nil, errors.New("Session expired")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []int{1, 2}, calls, "retry must use the refreshed session")
	assert.Equal(t, 2, c.connectCount())
	assert.True(t, c.sessions[0].closed.Load())
}

func TestInvoke_RefreshWaitsForInFlightCalls(t *testing.T) {
	c := &fakeClient{}
	h := connected(t, c)
	first := c.sessions[0]
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	type outcome struct {
		out any
		err error
	}
	slow := make(chan outcome, 1)
	go func() {
		out, err := h.Invoke(ctx, func(ctx context.Context, s vectorsearch.Session) (any, error) {
			close(started)
			<-release
			res, err := s.Search(ctx, vectorsearch.SearchRequest{Question: "q", TopK: 1})
			if err != nil {
				return nil, err
			}
			return res.Records[0]["session"], nil
		})
		slow <- outcome{out, err}
	}()
	<-started

	expired := make(chan outcome, 1)
	go func() {
		out, err := h.Invoke(ctx, func(ctx context.Context, s vectorsearch.Session) (any, error) {
			if s.(*fakeSession).id == 1 {
				return nil, errors.New("session expired")
			}
			return s.(*fakeSession).id, nil
		})
		expired <- outcome{out, err}
	}()

	select {
	case <-expired:
		t.Fatal("refresh completed while a call on the old session was still running")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, first.closed.Load())

	close(release)
	a := <-slow
	require.NoError(t, a.err)
	assert.Equal(t, 1, a.out)

	b := <-expired
	require.NoError(t, b.err)
	assert.Equal(t, 2, b.out)
	assert.True(t, first.closed.Load())
	assert.Equal(t, 2, c.connectCount())
}

func TestInvoke_ConcurrentExpiryRefreshesOnce(t *testing.T) {
	c := &fakeClient{}
	h := connected(t, c)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.Invoke(context.Background(), func(_ context.Context, s vectorsearch.Session) (any, error) {
				if s.(*fakeSession).id == 1 {
					return nil, errors.New("401")
				}
				return "ok", nil
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, c.connectCount())
}

func TestInvoke_SecondExpiryDoesNotLoop(t *testing.T) {
	c := &fakeClient{}
	h := connected(t, c)

	calls := 0
	_, err := h.Invoke(context.Background(), func(context.Context, vectorsearch.Session) (any, error) {
		calls++
		return nil, errors.New("HTTP 401 Unauthorized")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, c.connectCount(), "exactly one refresh")
	assert.Contains(t, err.Error(), "after refresh, still failed")
	assert.Contains(t, err.Error(), "401")
}

func TestInvoke_OtherFailureNotRetried(t *testing.T) {
	c := &fakeClient{}
	h := connected(t, c)

	calls := 0
	_, err := h.Invoke(context.Background(), func(context.Context, vectorsearch.Session) (any, error) {
		calls++
		return nil, errors.New("index not found")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.connectCount())
	assert.Equal(t, "index not found", err.Error())
}

func TestInvoke_RefreshFailure(t *testing.T) {
	c := &fakeClient{failFrom: 2}
	h := connected(t, c)

	calls := 0
	_, err := h.Invoke(context.Background(), func(context.Context, vectorsearch.Session) (any, error) {
		calls++
		return nil, errors.New("session expired")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "no retry without a fresh session")
	assert.Equal(t, int64(1), h.Metrics().FailureCount)
}

func TestDisabled_NoIO(t *testing.T) {
	c := &fakeClient{failFrom: 1}
	h := vectorsearch.NewHandle(c)

	err := h.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, h.Enabled())
	assert.Equal(t, 1, c.connectCount())

	for _, q := range []string{"", "what is DBC?", "401"} {
		ran := false
		_, err := h.Invoke(context.Background(), func(context.Context, vectorsearch.Session) (any, error) {
			ran = true
			return q, nil
		})
		require.Error(t, err)
		assert.False(t, ran)
		assert.Equal(t, vectorsearch.UnavailableMessage, err.Error())
		assert.True(t, quarryerr.IsUnavailable(err))
	}

	// Connect is attempted once per process; later calls do not retry.
	require.NoError(t, h.Connect(context.Background()))
	assert.Equal(t, 1, c.connectCount())
}

func TestNilClientIsDisabled(t *testing.T) {
	h := vectorsearch.NewHandle(nil)
	require.NoError(t, h.Connect(context.Background()))
	assert.False(t, h.Enabled())

	_, err := h.Invoke(context.Background(), func(context.Context, vectorsearch.Session) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	c := &fakeClient{}
	h := connected(t, c)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.True(t, c.sessions[0].closed.Load())
	assert.False(t, h.Enabled())
}

func TestIsSessionExpired(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("status 401"), true},
		{errors.New("Session expired"), true},
		{errors.New("SESSION EXPIRED at 10:00"), true},
		{quarryerr.New(quarryerr.CodeVectorSessionExpired, "token rejected"), true},
		{errors.New("timeout"), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vectorsearch.IsSessionExpired(tt.err), "%v", tt.err)
	}
}

func TestProject(t *testing.T) {
	recs := []map[string]any{{"kb_id": 7, "question": "q", "score": 0.9}}
	got := vectorsearch.Project(recs, []string{"kb_id"})
	assert.Equal(t, []map[string]any{{"kb_id": 7, "score": 0.9}}, got)
	assert.Equal(t, recs, vectorsearch.Project(recs, nil))
}

func TestNewClient_UnknownBackend(t *testing.T) {
	_, err := vectorsearch.NewClient("nope", vectorsearch.Config{})
	require.Error(t, err)
	assert.True(t, quarryerr.IsNotFound(err))
}
