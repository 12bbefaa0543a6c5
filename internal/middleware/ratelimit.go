package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long a caller's bucket survives without requests.
	limiterIdleTTL = 10 * time.Minute
	// maxTrackedCallers bounds the limiter map when many distinct IPs show up
	// inside one TTL window.
	maxTrackedCallers = 10000
)

// RateLimit returns per-caller rate limiting middleware using token buckets.
// Callers are identified by the API key auth stored in the context, or by
// client IP when no key is present.
//
// Token bucket algorithm: each caller gets a bucket that fills at `rps`
// tokens/sec up to `burst` tokens. Each request consumes one token. If the
// bucket is empty, the request is rejected with 429 and a Retry-After hint.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	limits := newCallerLimits(rps, burst, limiterIdleTTL, maxTrackedCallers, time.Now)

	return func(c *gin.Context) {
		if rps <= 0 {
			c.Next()
			return
		}

		caller := "ip:" + c.ClientIP()
		if key := c.GetString(ContextKeyAPIKey); key != "" {
			caller = "key:" + key
		}

		if !limits.allow(caller) {
			retryAfter := int(math.Ceil(1 / rps))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimits holds one token bucket per caller. Buckets idle for longer
// than idle are dropped, and the map never grows past maxSize entries.
// sync.Mutex protects the map from concurrent goroutine access.
type callerLimits struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	idle      time.Duration
	maxSize   int
	now       func() time.Time
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newCallerLimits(rps float64, burst int, idle time.Duration, maxSize int, now func() time.Time) *callerLimits {
	if burst < 1 {
		burst = 1
	}
	return &callerLimits{
		rps:       rate.Limit(rps),
		burst:     burst,
		idle:      idle,
		maxSize:   maxSize,
		now:       now,
		visitors:  make(map[string]*visitor),
		lastSweep: now(),
	}
}

func (l *callerLimits) allow(caller string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweepLocked(now)
	}

	v, ok := l.visitors[caller]
	if !ok {
		if len(l.visitors) >= l.maxSize {
			l.evictOldestLocked()
		}
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[caller] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *callerLimits) sweepLocked(now time.Time) {
	for caller, v := range l.visitors {
		if now.Sub(v.lastSeen) >= l.idle {
			delete(l.visitors, caller)
		}
	}
	l.lastSweep = now
}

func (l *callerLimits) evictOldestLocked() {
	var (
		oldest string
		seen   time.Time
	)
	for caller, v := range l.visitors {
		if oldest == "" || v.lastSeen.Before(seen) {
			oldest, seen = caller, v.lastSeen
		}
	}
	delete(l.visitors, oldest)
}
