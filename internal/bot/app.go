package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/m3rciful/reviewbot/core/bootstrap"
	corecmd "github.com/m3rciful/reviewbot/core/cmd"
	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/core/metrics"
	coretelegram "github.com/m3rciful/reviewbot/core/telegram"
	tghelpers "github.com/m3rciful/reviewbot/core/telegram/helpers"
	"github.com/m3rciful/reviewbot/core/telegram/router"
	"github.com/m3rciful/reviewbot/core/telegram/sender"
	"github.com/m3rciful/reviewbot/internal/config"
	"github.com/m3rciful/reviewbot/internal/dialogue"
	"github.com/m3rciful/reviewbot/internal/i18n"
	"github.com/m3rciful/reviewbot/internal/moderation"
	"github.com/m3rciful/reviewbot/internal/review"
	"github.com/m3rciful/reviewbot/internal/session"
	"github.com/m3rciful/reviewbot/internal/storage/sqlstore"

	tele "gopkg.in/telebot.v4"
)

// App is the wired review bot.
type App struct {
	cfg      *config.Config
	res      *bootstrap.Result
	sessions session.Store
	disp     *sender.Dispatcher
	msgr     *Messenger
	handlers *Handlers
}

// Bootstrap initializes logging, the database, the session backend and every
// service. It is the Bootstrap hook of core/cmd.Run.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}
	cat, err := i18n.Default()
	if err != nil {
		return nil, fmt.Errorf("bot: load translations: %w", err)
	}

	var sessions session.Store = session.NewMemoryStore()
	var resources []bootstrap.Resource
	if cfg.Session.Backend == config.SessionRedis {
		resources = append(resources, bootstrap.Resource{
			Name: "sessions",
			Open: func(ctx context.Context) (io.Closer, error) {
				rs, err := openRedisSessions(ctx, cfg.Session)
				if err != nil {
					return nil, err
				}
				sessions = rs
				return rs, nil
			},
		})
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:    cfg.CoreConfig(),
		Database:  cfg.Database,
		Resources: resources,
	})
	if err != nil {
		return nil, err
	}

	app := New(cfg, sqlstore.New(res.DB), sessions, cat)
	app.res = res
	return app, nil
}

// New wires the services over an already opened store.
func New(cfg *config.Config, store review.Store, sessions session.Store, cat *i18n.Catalog) *App {
	disp := sender.NewDispatcher(sender.Options{
		QueueSize:    cfg.Sender.QueueSize,
		Workers:      cfg.Sender.Workers,
		MaxRetries:   cfg.Sender.MaxRetries,
		RetryBackoff: time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
	})
	msgr := NewMessenger(disp)

	mod := moderation.New(store, msgr, cat, moderation.Config{
		ChatID:   cfg.Moderation.ChatID,
		Language: cfg.Moderation.Language,
		PageSize: cfg.Moderation.PageSize,
	})
	dlg := dialogue.New(dialogue.Deps{
		Store:          store,
		Sessions:       sessions,
		Searcher:       review.NewSearcher(store, cfg.Search.MinScore),
		Moderator:      mod,
		Messenger:      msgr,
		Catalog:        cat,
		SearchPageSize: cfg.Search.PageSize,
	})

	return &App{
		cfg:      cfg,
		sessions: sessions,
		disp:     disp,
		msgr:     msgr,
		handlers: NewHandlers(dlg, mod, cat),
	}
}

func openRedisSessions(ctx context.Context, cfg config.SessionConfig) (*session.RedisStore, error) {
	rs := session.NewRedisStore(session.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.TTL,
	})
	if err := rs.Ping(ctx); err != nil {
		_ = rs.Close()
		return nil, fmt.Errorf("bot: redis sessions: %w", err)
	}
	logger.Info(ctx, "session", "backend.ready",
		slog.String("backend", config.SessionRedis),
		slog.String("addr", cfg.Redis.Addr),
	)
	return rs, nil
}

// TelegramRunOptions builds routes, middleware and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.TextRoutes(a.handlers.FSM(), reg, router.TextOptions{
		UnknownDocument: a.handlers.UnknownDocument(),
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: a.handlers.UnknownCallback(),
	}))

	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Dispatcher:  a.disp,
		Middlewares: coretelegram.DefaultMiddlewares(core, coretelegram.MiddlewareOptions{
			Enrich:      []tghelpers.Enricher{reviewContext},
			ExemptChats: []int64{a.cfg.Moderation.ChatID},
		}),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.msgr.Attach(rt.Bot)
			logger.Info(ctx, "tg", "bot.attached",
				slog.Int64("moderation_chat_id", a.cfg.Moderation.ChatID),
				slog.String("session_backend", a.cfg.Session.Backend),
			)
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.msgr.Attach(nil)
			return a.Close()
		},
	}, nil
}

// Services runs the metrics and health listener next to the bot.
func (a *App) Services() []func(ctx context.Context) error {
	if a.cfg.Metrics.Listen == "" {
		return nil
	}
	handler := metrics.NewRouter(metrics.NewRegistry(), a.cfg.Metrics.Path)
	return []func(ctx context.Context) error{
		func(ctx context.Context) error {
			return metrics.Serve(ctx, a.cfg.Metrics.Listen, handler)
		},
	}
}

// Close releases what Bootstrap opened. Apps built with New only close a
// closable session store.
func (a *App) Close() error {
	if a.res != nil {
		return a.res.Close()
	}
	if c, ok := a.sessions.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ API = (*tele.Bot)(nil)
