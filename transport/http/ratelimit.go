package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/storefront/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters
type RateLimitConfig struct {
	RequestsPerWindow int           // Sustained number of requests per Window
	Window            time.Duration // Window over which RequestsPerWindow is measured
	Burst             int           // Requests allowed above the sustained rate
}

// DefaultAuthLimit applies to the challenge/verify endpoint
var DefaultAuthLimit = RateLimitConfig{
	RequestsPerWindow: 30,
	Window:            time.Minute,
	Burst:             10,
}

// clientBucket is the token bucket of one client IP
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientBuckets tracks a bucket per client IP. A bucket idle long enough to
// have refilled is indistinguishable from a new one, so it is dropped.
type clientBuckets struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
}

func newClientBuckets(config RateLimitConfig) *clientBuckets {
	limit := rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds())
	burst := max(config.Burst, 1)

	// Time for an empty bucket to refill completely
	refill := time.Duration(math.Ceil(float64(burst) / float64(limit) * float64(time.Second)))

	return &clientBuckets{
		buckets:   make(map[string]*clientBucket),
		limit:     limit,
		burst:     burst,
		idleAfter: max(refill, time.Minute),
	}
}

// take spends one token for ip. When the bucket is empty it reports how long
// until the next token.
func (cb *clientBuckets) take(ip string, now time.Time) (bool, time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.sweep(now)

	bucket, ok := cb.buckets[ip]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(cb.limit, cb.burst)}
		cb.buckets[ip] = bucket
	}
	bucket.lastSeen = now

	if bucket.limiter.AllowN(now, 1) {
		return true, 0
	}

	// Peek at the wait without holding on to the token
	reservation := bucket.limiter.ReserveN(now, 1)
	wait := reservation.DelayFrom(now)
	reservation.CancelAt(now)

	return false, wait
}

// sweep drops idle buckets, at most once per idle period
func (cb *clientBuckets) sweep(now time.Time) {
	if now.Sub(cb.lastSweep) < cb.idleAfter {
		return
	}
	cb.lastSweep = now

	for ip, bucket := range cb.buckets {
		if now.Sub(bucket.lastSeen) >= cb.idleAfter {
			delete(cb.buckets, ip)
		}
	}
}

// RateLimit limits requests per client IP. A zero config disables limiting.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	if config.RequestsPerWindow <= 0 || config.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	buckets := newClientBuckets(config)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		allowed, wait := buckets.take(ip, time.Now())
		if !allowed {
			retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			slogx.FromContext(c.Request.Context()).Warn("rate limit exceeded",
				"client_ip", ip,
				"endpoint", c.Request.URL.Path,
				"retry_after", retryAfter,
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}

		c.Next()
	}
}
