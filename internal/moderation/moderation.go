// Package moderation posts submitted reviews to the moderators' chat and
// applies their approve and reject decisions.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/core/metrics"
	"github.com/m3rciful/reviewbot/core/telegram/format"
	"github.com/m3rciful/reviewbot/internal/action"
	"github.com/m3rciful/reviewbot/internal/chat"
	"github.com/m3rciful/reviewbot/internal/i18n"
	"github.com/m3rciful/reviewbot/internal/pagination"
	"github.com/m3rciful/reviewbot/internal/review"
)

const component = "service.moderation"

// DefaultPageSize is the number of reviews shown per page of a user's history.
const DefaultPageSize = 2

// ErrForeignChat is returned for moderation actions pressed outside the
// moderators' chat.
var ErrForeignChat = errors.New("moderation: action outside moderation chat")

// Config selects the moderators' chat and how it is rendered.
type Config struct {
	ChatID   int64
	Language string
	PageSize int
}

// Workflow implements the moderation lifecycle of a review:
// pending -> approved, or pending -> deleted.
type Workflow struct {
	store review.Store
	msgr  chat.Messenger
	cat   *i18n.Catalog
	cfg   Config
}

// New builds a Workflow. Zero PageSize and empty Language fall back to
// defaults.
func New(store review.Store, msgr chat.Messenger, cat *i18n.Catalog, cfg Config) *Workflow {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if !cat.Has(cfg.Language) {
		cfg.Language = cat.DefaultLanguage()
	}
	return &Workflow{store: store, msgr: msgr, cat: cat, cfg: cfg}
}

// ChatID returns the moderators' chat id.
func (w *Workflow) ChatID() int64 { return w.cfg.ChatID }

func (w *Workflow) t(key string, args ...any) string {
	return w.cat.T(w.cfg.Language, key, args...)
}

// Submit posts the moderation card of a stored pending review and returns the
// card's message id.
func (w *Workflow) Submit(ctx context.Context, r review.Review) (int, error) {
	msg := chat.Message{
		Text: w.t("moderation_card",
			r.ID, r.UserID, format.MD(r.UserName), format.MD(r.Employer), r.Rating,
			format.MD(r.Comment), w.cat.CityName(w.cfg.Language, r.City),
			r.SubmittedAt.Format("2006-01-02 15:04:05"),
		),
		Markdown: true,
		Inline: [][]chat.Button{
			{
				{Text: w.cat.Button(w.cfg.Language, "approve"), Action: action.Approve{City: r.City, ID: r.ID}},
				{Text: w.cat.Button(w.cfg.Language, "reject"), Action: action.Reject{City: r.City, ID: r.ID}},
			},
			{
				{Text: w.cat.Button(w.cfg.Language, "user_reviews"), Action: action.UserReviews{User: r.UserID}},
			},
		},
	}
	ctx = logger.WithReview(ctx, r.ID)
	id, err := w.msgr.Send(ctx, w.cfg.ChatID, msg)
	if err != nil {
		logger.Error(ctx, component, "card.send_failed", slog.String("err", err.Error()))
		return 0, fmt.Errorf("post review %d for moderation: %w", r.ID, err)
	}
	logger.Info(ctx, component, "card.posted",
		slog.String("city", r.City),
		slog.Int("message_id", id),
	)
	return id, nil
}

// Handle dispatches a moderation action pressed on message in.MessageID of
// chat in.ChatID.
func (w *Workflow) Handle(ctx context.Context, in chat.Incoming, a action.Action) (chat.Answer, error) {
	if in.ChatID != w.cfg.ChatID {
		logger.Warn(ctx, component, "action.foreign_chat",
			slog.Int64("chat_id", in.ChatID),
			slog.String("action", string(a.Kind())),
		)
		return chat.Answer{Text: w.t("malformed_action")}, ErrForeignChat
	}
	switch v := a.(type) {
	case action.Approve:
		return w.Approve(ctx, in, v)
	case action.Reject:
		return w.Reject(ctx, in, v)
	case action.UserReviews:
		return w.ViewUserReviews(ctx, in, v)
	case action.Navigate:
		return w.Navigate(ctx, in, v)
	case action.HideReviews:
		return w.Hide(ctx, in)
	default:
		return chat.Answer{Text: w.t("malformed_action")}, fmt.Errorf("%w: %s is not a moderation action", action.ErrMalformed, a.Kind())
	}
}

// Approve publishes the review, notifies its author and removes the card.
func (w *Workflow) Approve(ctx context.Context, in chat.Incoming, a action.Approve) (chat.Answer, error) {
	return w.decide(ctx, in, "approve", a.City, a.ID, w.store.ApproveReview, "review_approved", "moderation_approved")
}

// Reject deletes the review, notifies its author and removes the card. The
// author is resolved before the row disappears.
func (w *Workflow) Reject(ctx context.Context, in chat.Incoming, a action.Reject) (chat.Answer, error) {
	return w.decide(ctx, in, "reject", a.City, a.ID, w.store.RejectReview, "review_rejected", "moderation_rejected")
}

func (w *Workflow) decide(
	ctx context.Context, in chat.Incoming, decision, city string, id int64,
	apply func(context.Context, string, int64) error, notifyKey, ackKey string,
) (chat.Answer, error) {
	ctx = logger.WithReview(ctx, id)
	attrs := []slog.Attr{
		slog.String("decision", decision),
		slog.String("city", city),
	}

	userID, found, err := w.store.GetUserIDByReview(ctx, city, id)
	if err != nil {
		metrics.ObserveModeration(decision, "error")
		return chat.Answer{Text: w.t("generic_error"), Alert: true}, err
	}
	if found {
		err = apply(ctx, city, id)
	} else {
		err = review.ErrNotFound
	}
	if errors.Is(err, review.ErrNotFound) {
		metrics.ObserveModeration(decision, "stale")
		logger.Info(ctx, component, "review.stale", attrs...)
		w.removeCard(ctx, in)
		return chat.Answer{Text: w.t("moderation_already_processed")}, nil
	}
	if err != nil {
		metrics.ObserveModeration(decision, "error")
		return chat.Answer{Text: w.t("generic_error"), Alert: true}, err
	}

	metrics.ObserveModeration(decision, "ok")
	event := "review.approved"
	if decision == "reject" {
		event = "review.rejected"
	}
	logger.Info(ctx, component, event, append(attrs, slog.Int64("target_user_id", userID))...)

	lang, err := w.store.GetUserLanguage(ctx, userID, w.cat.DefaultLanguage())
	if err != nil {
		logger.Warn(ctx, component, "notify.language_lookup_failed",
			slog.Int64("target_user_id", userID),
			slog.String("err", err.Error()),
		)
		lang = w.cat.DefaultLanguage()
	}
	w.msgr.Notify(ctx, userID, chat.Message{Text: w.cat.T(lang, notifyKey)})
	w.removeCard(ctx, in)
	return chat.Answer{Text: w.t(ackKey)}, nil
}

func (w *Workflow) removeCard(ctx context.Context, in chat.Incoming) {
	if in.MessageID == 0 {
		return
	}
	if err := w.msgr.Delete(ctx, in.ChatID, in.MessageID); err != nil {
		logger.Warn(ctx, component, "card.delete_failed",
			slog.Int("message_id", in.MessageID),
			slog.String("err", err.Error()),
		)
	}
}

// ViewUserReviews posts the first page of a user's reviews, newest first.
func (w *Workflow) ViewUserReviews(ctx context.Context, in chat.Incoming, a action.UserReviews) (chat.Answer, error) {
	total, err := w.store.CountUserReviews(ctx, a.User)
	if err != nil {
		return chat.Answer{Text: w.t("generic_error"), Alert: true}, err
	}
	if total == 0 {
		return chat.Answer{Text: w.t("moderation_no_reviews"), Alert: true}, nil
	}
	rs, err := w.store.GetUserReviewsPaginated(ctx, a.User, 0, w.cfg.PageSize)
	if err != nil {
		return chat.Answer{Text: w.t("generic_error"), Alert: true}, err
	}
	if _, err := w.msgr.Send(ctx, in.ChatID, w.renderUserReviews(a.User, total, 0, rs)); err != nil {
		return chat.Answer{Text: w.t("generic_error"), Alert: true}, fmt.Errorf("send user reviews: %w", err)
	}
	return chat.Answer{}, nil
}

// Navigate replaces the shown list with another page. A page without reviews
// leaves the message untouched.
func (w *Workflow) Navigate(ctx context.Context, in chat.Incoming, a action.Navigate) (chat.Answer, error) {
	rs, err := w.store.GetUserReviewsPaginated(ctx, a.User, a.Page, w.cfg.PageSize)
	if err != nil {
		return chat.Answer{Text: w.t("generic_error"), Alert: true}, err
	}
	if len(rs) == 0 {
		return chat.Answer{Text: w.t("moderation_no_more_reviews")}, nil
	}
	total, err := w.store.CountUserReviews(ctx, a.User)
	if err != nil {
		return chat.Answer{Text: w.t("generic_error"), Alert: true}, err
	}
	if err := w.msgr.Edit(ctx, in.ChatID, in.MessageID, w.renderUserReviews(a.User, total, a.Page, rs)); err != nil {
		return chat.Answer{Text: w.t("generic_error"), Alert: true}, fmt.Errorf("edit user reviews: %w", err)
	}
	return chat.Answer{}, nil
}

// Hide deletes the rendered list.
func (w *Workflow) Hide(ctx context.Context, in chat.Incoming) (chat.Answer, error) {
	if err := w.msgr.Delete(ctx, in.ChatID, in.MessageID); err != nil {
		logger.Warn(ctx, component, "list.delete_failed",
			slog.Int("message_id", in.MessageID),
			slog.String("err", err.Error()),
		)
	}
	return chat.Answer{}, nil
}

func (w *Workflow) renderUserReviews(userID int64, total, page int, rs []review.Review) chat.Message {
	meta := pagination.FromTotal(total, page, w.cfg.PageSize)
	lang := w.cfg.Language

	var b strings.Builder
	b.WriteString(w.t("moderation_user_reviews_header", userID, total, page+1, meta.TotalPages))
	for _, r := range rs {
		b.WriteString("\n\n")
		b.WriteString(w.t("moderation_review_line",
			r.ID, format.MD(r.Employer), w.cat.CityName(lang, r.City), r.Rating,
			w.t("status_"+string(r.Status)), format.MD(r.Comment),
		))
	}

	var nav []chat.Button
	if meta.HasPrev {
		nav = append(nav, chat.Button{Text: w.cat.Button(lang, "prev"), Action: action.Navigate{User: userID, Page: page - 1}})
	}
	if meta.HasNext {
		nav = append(nav, chat.Button{Text: w.cat.Button(lang, "next"), Action: action.Navigate{User: userID, Page: page + 1}})
	}
	rows := [][]chat.Button{}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []chat.Button{{Text: w.cat.Button(lang, "hide"), Action: action.HideReviews{}}})

	return chat.Message{Text: b.String(), Markdown: true, Inline: rows}
}
