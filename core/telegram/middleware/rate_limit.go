package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/core/metrics"
	tghelpers "github.com/m3rciful/reviewbot/core/telegram/helpers"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	Burst    int
	Exclude  map[string]struct{}
	// ExemptChats are never limited, e.g. the moderators' group.
	ExemptChats map[int64]struct{}
	OnLimited   tele.HandlerFunc
}

func (o RateLimitOptions) exempt(c tele.Context) bool {
	if _, skip := o.Exclude[UpdateKind(c.Update())]; skip {
		return true
	}
	if chat := c.Chat(); chat != nil {
		if _, skip := o.ExemptChats[chat.ID]; skip {
			return true
		}
	}
	return false
}

// userLimiters hands out one token bucket per user id.
type userLimiters struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	limiters map[int64]*rate.Limiter
}

func newUserLimiters(interval time.Duration, burst int) *userLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &userLimiters{
		every:    rate.Every(interval),
		burst:    burst,
		limiters: make(map[int64]*rate.Limiter),
	}
}

func (u *userLimiters) allow(userID int64, now time.Time) bool {
	u.mu.Lock()
	l, ok := u.limiters[userID]
	if !ok {
		l = rate.NewLimiter(u.every, u.burst)
		u.limiters[userID] = l
	}
	u.mu.Unlock()
	return l.AllowN(now, 1)
}

// UpdateKind classifies an update for rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiters := newUserLimiters(opts.Interval, opts.Burst)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}

			if opts.exempt(c) {
				return next(c)
			}

			if limiters.allow(user.ID, time.Now()) {
				return next(c)
			}

			metrics.RateLimited.Inc()
			attrs := []slog.Attr{slog.Int64("user_id", user.ID)}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
