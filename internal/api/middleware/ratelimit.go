package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/tweets/internal/ids"
	"github.com/eldtechnologies/tweets/internal/metrics"
)

// rule limits requests whose method matches and whose path starts with prefix.
type rule struct {
	method   string
	prefix   string
	requests int
	window   time.Duration
}

func (ru rule) name() string { return ru.method + " " + ru.prefix }

func (ru rule) matches(r *http.Request) bool {
	return r.Method == ru.method && strings.HasPrefix(r.URL.Path, ru.prefix)
}

// rules are checked in order, so /tweets/stream precedes /tweets.
var rules = []rule{
	{http.MethodPost, "/tweet", 30, time.Minute},
	{http.MethodGet, "/tweets/stream", 10, time.Minute},
	{http.MethodGet, "/tweets", 120, time.Minute},
	{http.MethodGet, "/hello/", 60, time.Minute},
	{http.MethodGet, "/stats", 60, time.Minute},
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist        []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool     // Block clients after repeated violations
}

// RateLimiter is a per-client sliding window limiter backed by Redis sorted
// sets. Clients are identified by clientIP.
type RateLimiter struct {
	client    *redis.Client
	rules     []rule
	exempt    ipSet
	offenders *offenders // nil unless auto-blocking is enabled
	logger    zerolog.Logger
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	exempt, errs := parseIPSet(cfg.Whitelist)
	for _, err := range errs {
		logger.Warn().Err(err).Msg("ignoring rate limit whitelist entry")
	}
	if exempt.len() > 0 {
		logger.Info().Int("entries", exempt.len()).Msg("rate limit whitelist configured")
	}

	rl := &RateLimiter{
		client: client,
		rules:  rules,
		exempt: exempt,
		logger: logger,
	}
	if cfg.AutoBlockEnabled {
		rl.offenders = newOffenders(client)
	}
	return rl
}

// ruleFor returns the first rule matching r, or nil.
func (rl *RateLimiter) ruleFor(r *http.Request) *rule {
	for i := range rl.rules {
		if rl.rules[i].matches(r) {
			return &rl.rules[i]
		}
	}
	return nil
}

// decision is the outcome of one rate limit check.
type decision struct {
	allowed   bool
	remaining int
	reset     time.Time
}

// take records one request for ip under ru and decides whether it may pass.
// A Redis failure lets the request through.
func (rl *RateLimiter) take(ctx context.Context, ip string, ru *rule) decision {
	now := time.Now()
	key := "tweets:ratelimit:" + ru.name() + ":" + ip
	d := decision{allowed: true, remaining: ru.requests, reset: now.Add(ru.window)}

	start := time.Now()
	var card *redis.IntCmd
	_, err := rl.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Add(-ru.window).UnixMilli(), 10))
		card = pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: ids.NewSortable()})
		pipe.PExpire(ctx, key, ru.window)
		return nil
	})
	if err != nil {
		rl.logger.Warn().Err(err).Str("rule", ru.name()).Msg("rate limit check failed, allowing request")
		return d
	}
	metrics.RedisLatency.Observe(time.Since(start).Seconds())

	seen := int(card.Val())
	d.allowed = seen < ru.requests
	d.remaining = max(ru.requests-seen-1, 0)
	return d
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if rl.exempt.contains(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.offenders != nil && rl.offenders.blocked(r.Context(), ip) {
			metrics.BlockedRequests.WithLabelValues("ip_blocked").Inc()
			rl.securityEvent("blocked_request", ip, r).Msg("blocked client attempted request")
			jsonError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		ru := rl.ruleFor(r)
		if ru == nil {
			next.ServeHTTP(w, r)
			return
		}

		d := rl.take(r.Context(), ip, ru)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(ru.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))

		if d.allowed {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Retry-After", strconv.Itoa(max(int(time.Until(d.reset).Seconds()), 1)))
		metrics.RateLimitHits.WithLabelValues(ru.name()).Inc()
		rl.securityEvent("rate_limit_exceeded", ip, r).Str("rule", ru.name()).Msg("rate limit exceeded")
		rl.recordStrike(r, ip)

		jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

func (rl *RateLimiter) recordStrike(r *http.Request, ip string) {
	if rl.offenders == nil {
		return
	}
	count, blocked, err := rl.offenders.strike(r.Context(), ip)
	if err != nil {
		rl.logger.Warn().Err(err).Str("ip", ip).Msg("recording rate limit strike failed")
		return
	}
	if blocked {
		metrics.BlockedRequests.WithLabelValues("auto_block").Inc()
		rl.securityEvent("ip_auto_blocked", ip, r).Int64("strikes", count).Msg("client blocked after repeated violations")
	}
}

func (rl *RateLimiter) securityEvent(event, ip string, r *http.Request) *zerolog.Event {
	return rl.logger.Warn().
		Str("type", "security").
		Str("event", event).
		Str("ip", ip).
		Str("endpoint", r.URL.Path)
}
