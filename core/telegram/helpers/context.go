package helpers

import (
	"context"

	"github.com/m3rciful/reviewbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	updateCtxKey = "update_ctx"
	ridKey       = "rid"
)

// Enricher adds fields an application can read off the update, such as the
// record a button refers to, to the per-update context.
type Enricher func(c tele.Context, ctx context.Context) context.Context

// StoreContext replaces the per-update context kept on c.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(updateCtxKey, ctx)
}

// ContextFrom returns the per-update context if one was built for c.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(updateCtxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// NewContext builds the per-update context: rid, update/user/chat ids and a
// "tg" logger, followed by the enrichers in order. The result is stored on c.
func NewContext(c tele.Context, enrich ...Enricher) context.Context {
	var chatID, userID int64
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get(ridKey).(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
		c.Set(ridKey, rid)
	}

	ctx := logger.WithRID(logger.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	for _, fn := range enrich {
		if fn != nil {
			ctx = fn(c, ctx)
		}
	}
	StoreContext(c, ctx)
	return ctx
}

// BuildContext returns the per-update context, building a plain one when no
// middleware did.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	return NewContext(c)
}

// Amend applies fn to the per-update context and stores the result, so later
// log lines of the same update carry what fn added.
func Amend(c tele.Context, fn func(context.Context) context.Context) context.Context {
	ctx := BuildContext(c)
	if fn == nil {
		return ctx
	}
	ctx = fn(ctx)
	StoreContext(c, ctx)
	return ctx
}

// WithHandler records the resolved handler name on the per-update context.
func WithHandler(c tele.Context, handler string) context.Context {
	if handler == "" {
		return BuildContext(c)
	}
	return Amend(c, func(ctx context.Context) context.Context {
		return logger.WithHandler(ctx, handler)
	})
}

// ContextMiddleware builds the per-update context with enrich before the
// rest of the chain runs.
func ContextMiddleware(enrich ...Enricher) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			NewContext(c, enrich...)
			return next(c)
		}
	}
}
