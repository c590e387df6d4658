package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/devnolife/sakti-dashboard-sub012/pkg/httputil"
)

// idleLimiterTTL を超えて使われていないクライアントのリミッタは破棄する。
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter はクライアントIPごとのトークンバケットでリクエストを制限する。
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewIPRateLimiter は1秒あたり rps 件、最大 burst 件まで許可するリミッタを生成する。
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow はクライアントのリクエストを許可するかを返す。
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.limiters[ip]
	if !ok {
		l.evictIdle(now)
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *IPRateLimiter) evictIdle(now time.Time) {
	for ip, c := range l.limiters {
		if now.Sub(c.lastSeen) > idleLimiterTTL {
			delete(l.limiters, ip)
		}
	}
}

// Middleware は制限を超えたリクエストに429を返すミドルウェア。
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			retry := 1
			if l.rate > 0 {
				retry = max(1, int(1/float64(l.rate)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httputil.Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP はリクエスト元のIPを返す。プロキシ経由なら X-Forwarded-For の先頭を使う。
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
