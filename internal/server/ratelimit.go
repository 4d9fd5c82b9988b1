// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

const (
	visitorStaleAfter   = 10 * time.Minute
	visitorCleanupEvery = 5 * time.Minute
	defaultMaxVisitors  = 10000
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps the number of tracked IPs; the least recently seen
	// are evicted during cleanup. Default: 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return quarryerr.Errorf(quarryerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return quarryerr.Errorf(quarryerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return quarryerr.Errorf(quarryerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors tracks one token bucket per client IP.
type visitors struct {
	mu    sync.Mutex
	cfg   RateLimitConfig
	byIP  map[string]*visitor
	nowFn func() time.Time
}

func newVisitors(cfg RateLimitConfig) *visitors {
	return &visitors{cfg: cfg, byIP: make(map[string]*visitor), nowFn: time.Now}
}

func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.byIP[ip]
	if !ok {
		entry = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.byIP[ip] = entry
	}
	entry.lastSeen = v.nowFn()
	return entry.limiter.Allow()
}

// cleanup drops stale visitors and enforces MaxVisitors.
func (v *visitors) cleanup() {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.nowFn()
	type seen struct {
		ip       string
		lastSeen time.Time
	}
	live := make([]seen, 0, len(v.byIP))
	for ip, entry := range v.byIP {
		if now.Sub(entry.lastSeen) > visitorStaleAfter {
			delete(v.byIP, ip)
			continue
		}
		live = append(live, seen{ip: ip, lastSeen: entry.lastSeen})
	}

	if v.cfg.MaxVisitors > 0 && len(live) > v.cfg.MaxVisitors {
		slices.SortFunc(live, func(a, b seen) int { return a.lastSeen.Compare(b.lastSeen) })
		evict := len(live) - v.cfg.MaxVisitors
		for _, s := range live[:evict] {
			delete(v.byIP, s.ip)
		}
		slog.Warn("rate limiter visitor map cap enforced",
			"evicted", evict, "max_visitors", v.cfg.MaxVisitors, "remaining", len(v.byIP))
	}
}

func (v *visitors) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.byIP)
}

// rateLimitMiddleware returns middleware that enforces per-IP rate limits.
// Returns a pass-through middleware when cfg.RequestsPerSecond is zero.
// The done channel signals the cleanup goroutine to exit on shutdown.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	v := newVisitors(cfg)

	go func() {
		ticker := time.NewTicker(visitorCleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				v.cleanup()
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by IP, not by connection.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !v.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
