// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

const keyPrefix = "pitchfork:rl:"

// RateLimitConfig describes one named policy. Name keeps the buckets of
// different policies apart when they share a key such as the user id.
type RateLimitConfig struct {
	Name     string
	Limit    redis_rate.Limit
	KeyFunc  func(*http.Request) string
	FailOpen bool
}

type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

// NewRateLimiter builds a limiter backed by redis. A nil client keeps all
// buckets in process, which is what a single api replica without redis
// gets; redis errors fall back to the same local buckets.
func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Name == "" {
		cfg.Name = "global"
	}

	rl := &RateLimiter{
		fallback: newLocalLimiter(),
		config:   cfg,
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyPrefix + rl.config.Name + ":" + rl.config.KeyFunc(r)

		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if rl.config.FailOpen {
				slog.Warn("rate limiter error, failing open",
					"policy", rl.config.Name,
					"key", key,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.NewAppError(
				"BUSY", "please try again shortly", http.StatusServiceUnavailable, err,
			))
			return
		}

		setRateLimitHeaders(w, res, rl.config.Limit)

		if res.Allowed == 0 {
			writeRateLimited(w, rl.config.Name, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	if rl.limiter == nil {
		return rl.fallback.allow(key, rl.config.Limit), nil
	}

	res, err := rl.limiter.Allow(ctx, key, rl.config.Limit)
	if err != nil {
		slog.Debug("redis rate limit unavailable, using local bucket", "error", err)
		return rl.fallback.allow(key, rl.config.Limit), nil
	}
	return res, nil
}

// ClientIP uses the last X-Forwarded-For hop, which is the address the
// reverse proxy saw.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func KeyByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// KeyByUser buckets authenticated members by account and falls back to
// the client address before Authenticator has run.
func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	return KeyByIP(r)
}

func setRateLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
}

func writeRateLimited(w http.ResponseWriter, policy string, res *redis_rate.Result) {
	retryAfter := int(res.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	message := fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter)
	if policy == "purchase" {
		message = fmt.Sprintf("Purchase limit reached. Try again in %d seconds.", retryAfter)
	}
	core.JSONError(w, core.NewAppError("RATE_LIMITED", message, http.StatusTooManyRequests, nil))
}

const localEntryTTL = 10 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter keeps token buckets in process. Idle buckets are pruned
// lazily on access instead of by a background goroutine.
type localLimiter struct {
	mu        sync.Mutex
	entries   map[string]*localEntry
	lastPrune time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{entries: map[string]*localEntry{}}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSecond)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > localEntryTTL {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > localEntryTTL {
				delete(l.entries, k)
			}
		}
		l.lastPrune = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst)}
		l.entries[key] = e
	}
	e.lastSeen = now

	res := &redis_rate.Result{
		Limit:      limit,
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if e.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = max(int(e.limiter.TokensAt(now)), 0)
	return res
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: time.Minute}
}

func PerHour(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: time.Hour}
}
