package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/reviewbot/core/config"
	tghelpers "github.com/m3rciful/reviewbot/core/telegram/helpers"
	"github.com/m3rciful/reviewbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions customize DefaultMiddlewares.
type MiddlewareOptions struct {
	// Enrich runs on every update before logging and rate limiting.
	Enrich []tghelpers.Enricher
	// ExemptChats bypass the rate limit.
	ExemptChats []int64
	OnLimited   tele.HandlerFunc
}

// DefaultMiddlewares builds the chain recover, context, rate_limit, logger,
// metrics. rate_limit is left out when the configured interval is zero.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "context", Use: tghelpers.ContextMiddleware(opts.Enrich...)},
	}
	if rl, ok := rateLimitOptions(cfg, opts); ok {
		mws = append(mws, Middleware{Name: "rate_limit", Use: middleware.RateLimitMiddleware(rl)})
	}
	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimitOptions(cfg *coreconfig.Config, opts MiddlewareOptions) (middleware.RateLimitOptions, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return middleware.RateLimitOptions{}, false
	}
	rl := middleware.RateLimitOptions{
		Interval:    time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:       cfg.RateLimit.Burst,
		Exclude:     make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates)),
		ExemptChats: make(map[int64]struct{}, len(opts.ExemptChats)),
		OnLimited:   opts.OnLimited,
	}
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		rl.Exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	for _, id := range opts.ExemptChats {
		if id != 0 {
			rl.ExemptChats[id] = struct{}{}
		}
	}
	return rl, true
}
