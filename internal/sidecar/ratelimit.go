package sidecar

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ceyewan/eureka/clog"
)

// RateLimitConfig 按客户端 IP 的令牌桶限流，Rate 或 Burst 不大于 0 时关闭
type RateLimitConfig struct {
	// Rate 每秒生成的令牌数
	Rate float64 `mapstructure:"rate" yaml:"rate" json:"rate"`

	// Burst 令牌桶容量
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`

	// IdleTimeout 客户端限流器闲置多久后回收，默认 5m
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
}

func (c RateLimitConfig) enabled() bool {
	return c.Rate > 0 && c.Burst > 0
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter 每个客户端一个 rate.Limiter，回收在访问时顺带进行
type ipLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	return &ipLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

func (l *ipLimiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.cfg.IdleTimeout {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > l.cfg.IdleTimeout {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// rateLimit 超出配额时返回 429，/healthz 与 /metrics 不受限
func (s *Server) rateLimit(l *ipLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.FullPath() {
		case "/healthz", "/metrics":
			c.Next()
			return
		}

		key := c.ClientIP()
		if key == "" || l.allow(key) {
			c.Next()
			return
		}

		s.logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			clog.String("client", key),
			clog.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}
