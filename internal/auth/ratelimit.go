package auth

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter locks out a client address and login pair after repeated
// failed logins within a window.
type RateLimiter struct {
	mu          sync.Mutex
	failures    map[string]*failureWindow
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

type failureWindow struct {
	count       int
	start       time.Time
	lockedUntil time.Time
}

type RateLimitConfig struct {
	MaxAttempts     int
	Window          time.Duration
	Lockout         time.Duration
	CleanupInterval time.Duration
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		failures:    make(map[string]*failureWindow),
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Window,
		lockout:     cfg.Lockout,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go rl.cleanupLoop(cfg.CleanupInterval)
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func limiterKey(ip, login string) string {
	return ip + ":" + strings.ToLower(strings.TrimSpace(login))
}

// Allow reports whether a login attempt may proceed, and if not, how long
// the caller must wait.
func (rl *RateLimiter) Allow(ip, login string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	f, ok := rl.failures[limiterKey(ip, login)]
	if !ok {
		return true, 0
	}
	now := rl.now()
	if now.Before(f.lockedUntil) {
		return false, f.lockedUntil.Sub(now)
	}
	return true, 0
}

// RecordFailure counts a failed attempt and reports whether it triggered a
// lockout.
func (rl *RateLimiter) RecordFailure(ip, login string) (bool, time.Duration) {
	key := limiterKey(ip, login)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	f, ok := rl.failures[key]
	if !ok || now.Sub(f.start) > rl.window {
		f = &failureWindow{start: now}
		rl.failures[key] = f
	}
	f.count++
	if f.count >= rl.maxAttempts {
		f.lockedUntil = now.Add(rl.lockout)
		return true, rl.lockout
	}
	return false, 0
}

// RecordSuccess forgets earlier failures for the pair.
func (rl *RateLimiter) RecordSuccess(ip, login string) {
	rl.mu.Lock()
	delete(rl.failures, limiterKey(ip, login))
	rl.mu.Unlock()
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, f := range rl.failures {
		if now.Sub(f.start) > rl.window && !now.Before(f.lockedUntil) {
			delete(rl.failures, key)
		}
	}
}
