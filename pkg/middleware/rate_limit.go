package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/sharevault/pkg/configs"
)

const (
	cleanupInterval   = 10 * time.Minute
	maxLimiterEntries = 10000
)

// RateLimitMiddleware limits the API by the configured key: global, ip or header:<Name>.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	if keyMode == "global" || keyMode == "" {
		limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)

		return func(c *gin.Context) {
			if !limiter.Allow() {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
				return
			}

			c.Next()
		}
	}

	return keyedLimit(cfg.RPS, cfg.Burst, func(c *gin.Context) string {
		if h, ok := strings.CutPrefix(keyMode, "header:"); ok {
			if key := c.GetHeader(h); key != "" {
				return key
			}
		}

		return clientIP(c)
	})
}

// CapabilityRateLimit limits /u, /d and /s per client IP. Password guesses go
// through these routes.
func CapabilityRateLimit(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.CapabilityRPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return keyedLimit(cfg.CapabilityRPS, cfg.CapabilityBurst, clientIP)
}

func keyedLimit(rps float64, burst int, keyFn func(*gin.Context) string) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = map[string]*rate.Limiter{}
	)

	getLimiter := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if l, ok := limiters[key]; ok {
			return l
		}

		l := rate.NewLimiter(rate.Limit(rps), burst)
		limiters[key] = l

		return l
	}

	// crude bound on memory: drop every limiter once the map grows too large
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			mu.Lock()
			if len(limiters) > maxLimiterEntries {
				limiters = map[string]*rate.Limiter{}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = "unknown"
		}

		if !getLimiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded, please try again later"})

			return
		}

		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = c.Request.RemoteAddr
		}
	}

	return ip
}
