package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/socialbbs/utils"
)

const limiterIdleTTL = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiter
	limit    rate.Limit
	burst    int
}

// RateLimit applies a per client IP token bucket allowing perMinute requests.
// Each call owns its own set of buckets, so routes can be limited independently.
func RateLimit(perMinute int) gin.HandlerFunc {
	perMinute = max(perMinute, 1)
	set := &limiterSet{
		limiters: map[string]*rateLimiter{},
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
	}

	return func(ctx *gin.Context) {
		if !set.allow(ctx.ClientIP(), time.Now()) {
			utils.Error(ctx, http.StatusTooManyRequests, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, l := range s.limiters {
		if now.After(l.expires) {
			delete(s.limiters, k)
		}
	}

	l, ok := s.limiters[key]
	if !ok {
		l = &rateLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = l
	}
	l.expires = now.Add(limiterIdleTTL)
	return l.limiter.AllowN(now, 1)
}
