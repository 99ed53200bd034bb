package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter 按客户端 IP 的固定窗口计数限流
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	counts    map[string]int
	lastReset map[string]time.Time
}

// NewRateLimiter limit <= 0 表示不限流
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		limit:     limit,
		window:    window,
		now:       time.Now,
		counts:    make(map[string]int),
		lastReset: make(map[string]time.Time),
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Allow 记录一次请求，超过窗口内的阈值返回 false
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	// 如果该 IP 不存在记录，或者上次记录的时间已经超过了窗口，则重置计数
	if last, ok := rl.lastReset[ip]; !ok || now.Sub(last) > rl.window {
		rl.counts[ip] = 0
		rl.lastReset[ip] = now
	}
	rl.counts[ip]++
	return rl.counts[ip] <= rl.limit
}

// Wrap 超过阈值返回 429 Too Many Requests
func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cleanup 删除两个窗口内没有请求的 IP
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, last := range rl.lastReset {
		if now.Sub(last) > 2*rl.window {
			delete(rl.lastReset, ip)
			delete(rl.counts, ip)
		}
	}
}

// StartCleanup 定时清理不活跃的 IP 记录，ctx 结束时退出
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()
}
