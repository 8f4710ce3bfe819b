// Package dialogue drives the per-user conversation: language and city
// selection, the review form and employer search.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/internal/action"
	"github.com/m3rciful/reviewbot/internal/chat"
	"github.com/m3rciful/reviewbot/internal/i18n"
	"github.com/m3rciful/reviewbot/internal/review"
	"github.com/m3rciful/reviewbot/internal/session"
)

// DefaultSearchPageSize is the number of reviews per search result page.
const DefaultSearchPageSize = 5

// Moderator receives stored pending reviews.
type Moderator interface {
	Submit(ctx context.Context, r review.Review) (int, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store     review.Store
	Sessions  session.Store
	Searcher  *review.Searcher
	Moderator Moderator
	Messenger chat.Messenger
	Catalog   *i18n.Catalog
	// SearchPageSize defaults to DefaultSearchPageSize.
	SearchPageSize int
	Now            func() time.Time
}

// Orchestrator routes user input to state transitions. Work for one user is
// serialized; different users proceed in parallel.
type Orchestrator struct {
	store    review.Store
	sessions session.Store
	locks    *session.Locker
	search   *review.Searcher
	mod      Moderator
	msgr     chat.Messenger
	cat      *i18n.Catalog
	pageSize int
	now      func() time.Time
}

// New builds an Orchestrator.
func New(d Deps) *Orchestrator {
	if d.SearchPageSize <= 0 {
		d.SearchPageSize = DefaultSearchPageSize
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Searcher == nil {
		d.Searcher = review.NewSearcher(d.Store, 0)
	}
	return &Orchestrator{
		store:    d.Store,
		sessions: d.Sessions,
		locks:    session.NewLocker(),
		search:   d.Searcher,
		mod:      d.Moderator,
		msgr:     d.Messenger,
		cat:      d.Catalog,
		pageSize: d.SearchPageSize,
		now:      d.Now,
	}
}

// turn is the state of one handled update.
type turn struct {
	in   chat.Incoming
	sess session.Session
}

func (t *turn) lang() string { return t.sess.Language }

// withSession loads the user's session under the per-user lock, runs fn and
// saves the session afterwards, also when fn failed half way.
func (o *Orchestrator) withSession(ctx context.Context, in chat.Incoming, fn func(*turn) error) error {
	unlock := o.locks.Lock(in.UserID)
	defer unlock()

	sess, err := o.sessions.Get(ctx, in.UserID)
	if err != nil {
		logger.Error(ctx, "session", "session.load_failed", slog.String("err", err.Error()))
		o.reply(ctx, in.ChatID, chat.Message{Text: o.cat.T(o.cat.DefaultLanguage(), "generic_error")})
		return err
	}
	t := &turn{in: in, sess: sess}
	before := sess.State
	runErr := fn(t)

	if err := o.sessions.Save(ctx, t.sess); err != nil {
		logger.Error(ctx, "session", "session.save_failed", slog.String("err", err.Error()))
		if runErr == nil {
			runErr = err
		}
	}
	if before != t.sess.State {
		logger.Debug(ctx, "session", "state.change",
			slog.String("from", string(before)),
			slog.String("state", string(t.sess.State)),
		)
	}
	return runErr
}

// Start resets the conversation and asks for the language.
func (o *Orchestrator) Start(ctx context.Context, in chat.Incoming) error {
	return o.withSession(ctx, in, func(t *turn) error {
		if err := o.store.SaveUser(ctx, review.User{ID: in.UserID, DisplayName: in.DisplayName}); err != nil {
			logger.Warn(ctx, "service.users", "user.save_failed", slog.String("err", err.Error()))
		}
		return o.enterLanguage(ctx, t)
	})
}

// Cancel leaves any sub-flow and shows the menu.
func (o *Orchestrator) Cancel(ctx context.Context, in chat.Incoming) error {
	return o.withSession(ctx, in, func(t *turn) error {
		ok, err := o.requireLanguageAndCity(ctx, t)
		if !ok || err != nil {
			return err
		}
		t.sess.FinishFlow()
		return o.sendMenu(ctx, t, "cancelled")
	})
}

// Help lists the commands.
func (o *Orchestrator) Help(ctx context.Context, in chat.Incoming) error {
	return o.withSession(ctx, in, func(t *turn) error {
		lang := o.resolveLanguage(ctx, t)
		return o.send(ctx, t, chat.Message{Text: o.cat.T(lang, "help")})
	})
}

// Unsupported answers content the bot cannot read, in the user's language.
// The current step is kept.
func (o *Orchestrator) Unsupported(ctx context.Context, in chat.Incoming) error {
	return o.withSession(ctx, in, func(t *turn) error {
		lang := o.resolveLanguage(ctx, t)
		return o.send(ctx, t, chat.Message{Text: o.cat.T(lang, "unsupported_content")})
	})
}

// InProgress reports whether the user is inside a step that consumes text.
func (o *Orchestrator) InProgress(ctx context.Context, userID int64) bool {
	sess, err := o.sessions.Get(ctx, userID)
	if err != nil {
		return false
	}
	return sess.InProgress()
}

// HandleText processes a plain text message. Menu buttons are honoured in
// every state; anything else is interpreted by the current step.
func (o *Orchestrator) HandleText(ctx context.Context, in chat.Incoming) error {
	in.Text = strings.TrimSpace(in.Text)
	return o.withSession(ctx, in, func(t *turn) error {
		switch {
		case o.cat.IsButton(in.Text, "change_settings"):
			return o.enterLanguage(ctx, t)
		case o.cat.IsButton(in.Text, "leave_review"):
			return o.startReview(ctx, t)
		case o.cat.IsButton(in.Text, "find_reviews"):
			return o.startSearch(ctx, t)
		}

		switch t.sess.State {
		case session.StateNew:
			if err := o.store.SaveUser(ctx, review.User{ID: in.UserID, DisplayName: in.DisplayName}); err != nil {
				logger.Warn(ctx, "service.users", "user.save_failed", slog.String("err", err.Error()))
			}
			o.restoreFromProfile(ctx, t)
			switch {
			case t.sess.State == session.StateIdle:
				return o.send(ctx, t, o.menuMessage(t.lang(), o.cat.T(t.lang(), "unknown_input")))
			case t.sess.Language != "":
				return o.enterCity(ctx, t)
			}
			return o.enterLanguage(ctx, t)
		case session.StateLanguage:
			return o.chooseLanguage(ctx, t)
		case session.StateCity:
			return o.chooseCity(ctx, t)
		case session.StateReviewEmployer:
			return o.reviewEmployer(ctx, t)
		case session.StateReviewRating:
			return o.reviewRating(ctx, t)
		case session.StateReviewComment:
			return o.reviewComment(ctx, t)
		case session.StateSearchEmployer:
			return o.searchEmployer(ctx, t)
		default:
			lang := o.resolveLanguage(ctx, t)
			return o.send(ctx, t, o.menuMessage(lang, o.cat.T(lang, "unknown_input")))
		}
	})
}

// Callback handles the search navigation buttons.
func (o *Orchestrator) Callback(ctx context.Context, in chat.Incoming, a action.Action) (chat.Answer, error) {
	var ans chat.Answer
	err := o.withSession(ctx, in, func(t *turn) error {
		var target int
		switch v := a.(type) {
		case action.SearchPrev:
			target = v.Page - 1
		case action.SearchNext:
			target = v.Page + 1
		default:
			ans = chat.Answer{Text: o.cat.T(t.lang(), "malformed_action")}
			return fmt.Errorf("%w: %s is not a search action", action.ErrMalformed, a.Kind())
		}
		var err error
		ans, err = o.navigateSearch(ctx, t, target)
		return err
	})
	return ans, err
}

func (o *Orchestrator) send(ctx context.Context, t *turn, msg chat.Message) error {
	if _, err := o.msgr.Send(ctx, t.in.ChatID, msg); err != nil {
		return fmt.Errorf("send to %d: %w", t.in.ChatID, err)
	}
	return nil
}

// reply is send without a turn, for failures before the session is loaded.
func (o *Orchestrator) reply(ctx context.Context, chatID int64, msg chat.Message) {
	if _, err := o.msgr.Send(ctx, chatID, msg); err != nil {
		logger.Warn(ctx, "tg", "reply.failed", slog.String("err", err.Error()))
	}
}

func (o *Orchestrator) fail(ctx context.Context, t *turn, err error) error {
	o.reply(ctx, t.in.ChatID, chat.Message{Text: o.cat.T(o.resolveLanguage(ctx, t), "generic_error")})
	return err
}
