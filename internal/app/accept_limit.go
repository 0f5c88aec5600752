package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thushan/conduit/internal/logger"
)

// AcceptLimiter is a token-bucket rate limiter applied to inbound
// connections before they're handed to the endpoint engine, adapted
// from the teacher's HTTP request rate limiter (internal/app's old
// server_rate_limit.go): a global bucket plus one per-remote-IP
// bucket, both refilled at requestsPerMinute/60 tokens per second.
type AcceptLimiter struct {
	globalPerMinute int
	perIPPerMinute  int
	burstSize       int
	logger          *logger.StyledLogger

	globalTokens     int64
	lastGlobalRefill int64
	ipBuckets        sync.Map

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

type acceptBucket struct {
	tokens     int64
	lastRefill int64
	lastAccess int64
}

// NewAcceptLimiter builds a limiter. A non-positive globalPerMinute or
// perIPPerMinute disables that bucket (always allowed).
func NewAcceptLimiter(globalPerMinute, perIPPerMinute, burstSize int, log *logger.StyledLogger) *AcceptLimiter {
	initialGlobal := int64(0)
	if globalPerMinute > 0 {
		initialGlobal = int64(burstSize)
	}
	al := &AcceptLimiter{
		globalPerMinute:  globalPerMinute,
		perIPPerMinute:   perIPPerMinute,
		burstSize:        burstSize,
		logger:           log,
		globalTokens:     initialGlobal,
		lastGlobalRefill: time.Now().UnixNano(),
		stopCleanup:      make(chan struct{}),
	}
	al.cleanupTicker = time.NewTicker(5 * time.Minute)
	go al.cleanupRoutine()
	return al
}

func (al *AcceptLimiter) Stop() {
	al.cleanupTicker.Stop()
	close(al.stopCleanup)
}

// Allow reports whether a new connection from remoteIP may proceed. A
// rejected connection should be closed by the caller without ever
// being handed to the endpoint engine.
func (al *AcceptLimiter) Allow(remoteIP string) bool {
	now := time.Now().UnixNano()

	if al.globalPerMinute > 0 && !al.takeGlobal(now) {
		al.logger.Warn("connection rejected: global accept rate exceeded", "remote", remoteIP)
		return false
	}
	if al.perIPPerMinute <= 0 {
		return true
	}

	value, _ := al.ipBuckets.LoadOrStore(remoteIP, &acceptBucket{
		tokens:     int64(min(al.perIPPerMinute, al.burstSize)),
		lastRefill: now,
		lastAccess: now,
	})
	bucket := value.(*acceptBucket)
	al.refill(&bucket.tokens, &bucket.lastRefill, al.perIPPerMinute, now)

	for {
		tokens := atomic.LoadInt64(&bucket.tokens)
		if tokens <= 0 {
			al.logger.Warn("connection rejected: per-IP accept rate exceeded", "remote", remoteIP)
			return false
		}
		if atomic.CompareAndSwapInt64(&bucket.tokens, tokens, tokens-1) {
			atomic.StoreInt64(&bucket.lastAccess, now)
			return true
		}
	}
}

func (al *AcceptLimiter) takeGlobal(now int64) bool {
	al.refill(&al.globalTokens, &al.lastGlobalRefill, al.globalPerMinute, now)
	for {
		tokens := atomic.LoadInt64(&al.globalTokens)
		if tokens <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&al.globalTokens, tokens, tokens-1) {
			return true
		}
	}
}

func (al *AcceptLimiter) refill(tokens, lastRefill *int64, perMinute int, now int64) {
	last := atomic.LoadInt64(lastRefill)
	elapsed := now - last
	if elapsed < 1e9 {
		return
	}
	if !atomic.CompareAndSwapInt64(lastRefill, last, now) {
		return
	}
	toAdd := elapsed * int64(perMinute) / (60 * 1e9)
	if toAdd <= 0 {
		return
	}
	for {
		current := atomic.LoadInt64(tokens)
		next := current + toAdd
		if next > int64(al.burstSize) {
			next = int64(al.burstSize)
		}
		if atomic.CompareAndSwapInt64(tokens, current, next) {
			return
		}
	}
}

func (al *AcceptLimiter) cleanupRoutine() {
	for {
		select {
		case <-al.stopCleanup:
			return
		case <-al.cleanupTicker.C:
			cutoff := time.Now().Add(-10 * time.Minute).UnixNano()
			al.ipBuckets.Range(func(key, value interface{}) bool {
				b := value.(*acceptBucket)
				if atomic.LoadInt64(&b.lastAccess) < cutoff {
					al.ipBuckets.Delete(key)
				}
				return true
			})
		}
	}
}
