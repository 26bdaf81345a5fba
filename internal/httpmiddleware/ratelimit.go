package httpmiddleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// PerIPLimiter throttles request bursts per client address with a token
// bucket per source. Counters are in-process; with multiple replicas
// each instance enforces its own share of the limit.
type PerIPLimiter struct {
	capacity int
	perMin   int
	nowFunc  func() time.Time

	mu      sync.Mutex
	buckets map[string]*ipBucket
}

type ipBucket struct {
	tokens int
	last   time.Time
}

// NewPerIPLimiter allows perMinute requests per client address, with a
// burst allowance of the same size.
func NewPerIPLimiter(perMinute int) *PerIPLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &PerIPLimiter{
		capacity: perMinute,
		perMin:   perMinute,
		nowFunc:  time.Now,
		buckets:  make(map[string]*ipBucket),
	}
}

// Middleware rejects over-limit clients with 429 and a Retry-After hint
// so well-behaved scanners can back off instead of hammering.
func (l *PerIPLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.Header("Retry-After", strconv.Itoa(l.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// retryAfter is how long until one token refills, in whole seconds.
func (l *PerIPLimiter) retryAfter() int {
	secs := 60 / l.perMin
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (l *PerIPLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[ip]
	if !ok {
		l.buckets[ip] = &ipBucket{tokens: l.capacity - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.perMin))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
