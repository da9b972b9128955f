package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

type WindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles one surface per client IP.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

func (p RateLimitPolicy) name() string {
	if n := strings.ToLower(strings.TrimSpace(p.Name)); n != "" {
		return n
	}
	return "default"
}

// RateLimit counts requests in a Redis fixed window when store is set. Without
// Redis, or while Redis is failing, a per-IP token bucket in this process
// takes over with the same average rate.
func RateLimit(policy RateLimitPolicy, store WindowStore, log *logger.Logger) gin.HandlerFunc {
	if !policy.enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	if log == nil {
		log = logger.Nop()
	}
	local := newLocalLimiter(rate.Limit(float64(policy.Limit)/policy.Window.Seconds()), policy.Limit)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ip := c.ClientIP()

		var allowed bool
		if store != nil {
			ok, count, err := store.FixedWindowAllow(ctx, policy.name()+":"+ip, int64(policy.Limit), policy.Window)
			if err != nil {
				log.Warn(log.WithField(ctx, "error", err.Error()), "rate limit store unavailable; using local limiter")
				allowed = local.allow(ip)
			} else {
				allowed = ok
				if !ok {
					ctx = log.WithField(ctx, "attempts", count)
				}
			}
		} else {
			allowed = local.allow(ip)
		}

		if !allowed {
			log.Warn(log.WithFields(ctx, map[string]any{
				"policy": policy.name(),
				"ip":     ip,
				"limit":  policy.Limit,
			}), "rate_limit.blocked")
			c.Header("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
			response.Message(c, http.StatusTooManyRequests, "Too many requests, please try again later", gin.H{"code": "RATE_LIMITED"})
			c.Abort()
			return
		}
		c.Next()
	}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*ipLimiter
	swept    time.Time
}

func newLocalLimiter(limit rate.Limit, burst int) *localLimiter {
	return &localLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*ipLimiter),
		swept:    time.Now(),
	}
}

func (l *localLimiter) allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > limiterIdleTTL {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.swept = now
	}

	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = il
	}
	il.lastSeen = now
	return il.limiter.AllowN(now, 1)
}
