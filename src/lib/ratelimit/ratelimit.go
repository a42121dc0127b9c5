package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/blaxel-ai/filehunter/src/lib/config"
)

// Limiter is a per-client-IP token bucket. Entries are created on first
// sight and evicted by the cleanup loop once idle.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client

	rps   rate.Limit
	burst int

	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New builds a limiter from config. The config is validated at startup, so
// requests_per_second and burst_size are known to be positive.
func New(cfg *config.RateLimitConfig) *Limiter {
	return &Limiter{
		clients:         make(map[string]*client),
		rps:             rate.Limit(cfg.RequestsPerSecond),
		burst:           int(cfg.BurstSize),
		cleanupInterval: time.Duration(cfg.CleanupInterval) * time.Second,
		stop:            make(chan struct{}),
	}
}

// Check reports whether a request from ip may proceed. On denial it returns
// the number of seconds the client should wait before retrying, never less
// than one.
func (l *Limiter) Check(ip string) (allowed bool, retryAfter int) {
	l.mu.Lock()
	entry, ok := l.clients[ip]
	if !ok {
		entry = &client{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	reservation := entry.limiter.Reserve()
	delay := reservation.Delay()
	if delay == 0 {
		return true, 0
	}

	// Denied: hand the token back so the client is not double-charged.
	reservation.Cancel()
	retryAfter = int(math.Ceil(delay.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

// StartCleanup launches the background loop that evicts clients idle for
// longer than the cleanup interval. Call Stop to terminate it.
func (l *Limiter) StartCleanup() {
	if l.cleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-l.stop:
				return
			}
		}
	}()
	logrus.WithField("interval", l.cleanupInterval).Info("rate limiter cleanup task started")
}

// Stop terminates the cleanup loop.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup() {
	cutoff := time.Now().Add(-l.cleanupInterval)

	l.mu.Lock()
	before := len(l.clients)
	for ip, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
	after := len(l.clients)
	l.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"before": before,
		"after":  after,
	}).Debug("rate limiter cleanup completed")
}
