package dialogue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/core/metrics"
	"github.com/m3rciful/reviewbot/internal/chat"
	"github.com/m3rciful/reviewbot/internal/review"
	"github.com/m3rciful/reviewbot/internal/session"
)

func (o *Orchestrator) enterLanguage(ctx context.Context, t *turn) error {
	t.sess.Reset()
	return o.send(ctx, t, o.languageMessage())
}

func (o *Orchestrator) enterCity(ctx context.Context, t *turn) error {
	if t.sess.Language == "" {
		return o.enterLanguage(ctx, t)
	}
	t.sess.State = session.StateCity
	t.sess.City = ""
	t.sess.Draft = nil
	t.sess.Search = nil
	return o.send(ctx, t, o.cityMessage(t.lang()))
}

func (o *Orchestrator) chooseLanguage(ctx context.Context, t *turn) error {
	code, ok := o.cat.LanguageByLabel(t.in.Text)
	if !ok {
		return o.send(ctx, t, o.languageMessage())
	}
	if err := o.store.UpdateUserLanguage(ctx, t.in.UserID, code); err != nil {
		return o.fail(ctx, t, err)
	}
	t.sess.Language = code
	logger.Info(ctx, "service.users", "user.language", slog.String("language", code))
	return o.enterCity(ctx, t)
}

func (o *Orchestrator) chooseCity(ctx context.Context, t *turn) error {
	if t.sess.Language == "" {
		return o.enterLanguage(ctx, t)
	}
	code, ok := o.cat.CityByName(t.lang(), t.in.Text)
	if !ok {
		return o.send(ctx, t, o.cityMessage(t.lang()))
	}
	if err := o.store.UpdateUserCity(ctx, t.in.UserID, code); err != nil {
		return o.fail(ctx, t, err)
	}
	t.sess.City = code
	logger.Info(ctx, "service.users", "user.city", slog.String("city", code))
	t.sess.FinishFlow()
	return o.sendMenu(ctx, t, "main_menu")
}

func (o *Orchestrator) sendMenu(ctx context.Context, t *turn, key string) error {
	return o.send(ctx, t, o.menuMessage(t.lang(), o.cat.T(t.lang(), key)))
}

func (o *Orchestrator) startReview(ctx context.Context, t *turn) error {
	ok, err := o.requireLanguageAndCity(ctx, t)
	if !ok || err != nil {
		return err
	}
	t.sess.State = session.StateReviewEmployer
	t.sess.Draft = &session.Draft{}
	return o.send(ctx, t, chat.Message{Text: o.cat.T(t.lang(), "enter_employer")})
}

func (o *Orchestrator) reviewEmployer(ctx context.Context, t *turn) error {
	if !review.IsLatinText(t.in.Text) {
		return o.send(ctx, t, chat.Message{Text: o.cat.T(t.lang(), "invalid_employer")})
	}
	if t.sess.Draft == nil {
		t.sess.Draft = &session.Draft{}
	}
	t.sess.Draft.Employer = review.NormalizeEmployer(t.in.Text)
	t.sess.State = session.StateReviewRating
	return o.send(ctx, t, chat.Message{Text: o.cat.T(t.lang(), "enter_rating")})
}

func (o *Orchestrator) reviewRating(ctx context.Context, t *turn) error {
	rating, err := review.ParseRating(t.in.Text)
	if err != nil {
		return o.send(ctx, t, chat.Message{Text: o.cat.T(t.lang(), "invalid_rating")})
	}
	if t.sess.Draft == nil || t.sess.Draft.Employer == "" {
		return o.startReview(ctx, t)
	}
	t.sess.Draft.Rating = rating
	t.sess.State = session.StateReviewComment
	return o.send(ctx, t, chat.Message{Text: o.cat.T(t.lang(), "enter_comment")})
}

func (o *Orchestrator) reviewComment(ctx context.Context, t *turn) error {
	if t.in.Text == "" {
		return o.send(ctx, t, chat.Message{Text: o.cat.T(t.lang(), "enter_comment")})
	}
	d := t.sess.Draft
	if d == nil || d.Employer == "" || d.Rating == 0 {
		return o.startReview(ctx, t)
	}
	r := review.Review{
		UserID:      t.in.UserID,
		UserName:    t.in.DisplayName,
		Employer:    d.Employer,
		Rating:      d.Rating,
		Comment:     t.in.Text,
		City:        t.sess.City,
		Language:    t.sess.Language,
		SubmittedAt: o.now(),
		Status:      review.StatusPending,
	}
	if err := r.Validate(); err != nil {
		return o.fail(ctx, t, fmt.Errorf("review draft: %w", err))
	}
	id, err := o.store.SaveReview(ctx, r)
	if err != nil {
		return o.fail(ctx, t, err)
	}
	r.ID = id
	metrics.ReviewsSubmitted.Inc()
	logger.Info(ctx, "service.reviews", "review.submitted",
		slog.Int64("review_id", id),
		slog.String("employer", r.Employer),
		slog.Int("score", r.Rating),
		slog.String("city", r.City),
	)

	if o.mod != nil {
		if _, err := o.mod.Submit(ctx, r); err != nil {
			// the review stays pending in the store
			logger.Error(ctx, "service.reviews", "review.forward_failed",
				slog.Int64("review_id", id),
				slog.String("err", err.Error()),
			)
		}
	}

	t.sess.FinishFlow()
	return o.sendMenu(ctx, t, "review_submitted")
}

func (o *Orchestrator) startSearch(ctx context.Context, t *turn) error {
	ok, err := o.requireLanguageAndCity(ctx, t)
	if !ok || err != nil {
		return err
	}
	t.sess.State = session.StateSearchEmployer
	t.sess.Draft = nil
	return o.send(ctx, t, chat.Message{Text: o.cat.T(t.lang(), "search_prompt")})
}

func (o *Orchestrator) searchEmployer(ctx context.Context, t *turn) error {
	if !review.IsLatinText(t.in.Text) {
		return o.send(ctx, t, chat.Message{Text: o.cat.T(t.lang(), "invalid_employer")})
	}
	res, err := o.search.SearchApprovedReviews(ctx, t.in.Text, 0, o.pageSize)
	if err != nil {
		t.sess.FinishFlow()
		return o.fail(ctx, t, err)
	}
	t.sess.FinishFlow()
	if res == nil || res.TotalReviews == 0 {
		t.sess.Search = nil
		return o.sendMenu(ctx, t, "search_no_results")
	}
	msgID, err := o.msgr.Send(ctx, t.in.ChatID, o.resultsMessage(t.lang(), res))
	if err != nil {
		t.sess.Search = nil
		return fmt.Errorf("send to %d: %w", t.in.ChatID, err)
	}
	t.sess.Search = &session.Search{
		Query:      t.in.Text,
		Employer:   res.MatchedEmployer,
		Page:       res.CurrentPage,
		TotalPages: res.TotalPages,
		PageSize:   o.pageSize,
		MessageID:  msgID,
	}
	return nil
}

func (o *Orchestrator) navigateSearch(ctx context.Context, t *turn, page int) (chat.Answer, error) {
	lang := o.resolveLanguage(ctx, t)
	s := t.sess.Search
	if s == nil || (s.MessageID != 0 && s.MessageID != t.in.MessageID) {
		return chat.Answer{Text: o.cat.T(lang, "search_expired"), Alert: true}, nil
	}
	if page < 0 || page >= s.TotalPages {
		return chat.Answer{}, nil
	}
	size := s.PageSize
	if size <= 0 {
		size = o.pageSize
	}
	res, err := o.search.Page(ctx, s.Employer, page, size)
	if err != nil {
		return chat.Answer{Text: o.cat.T(lang, "generic_error"), Alert: true}, err
	}
	if len(res.Reviews) == 0 {
		return chat.Answer{Text: o.cat.T(lang, "search_no_results")}, nil
	}
	s.Page = res.CurrentPage
	s.TotalPages = res.TotalPages
	if err := o.msgr.Edit(ctx, t.in.ChatID, t.in.MessageID, o.resultsMessage(lang, res)); err != nil {
		return chat.Answer{Text: o.cat.T(lang, "generic_error"), Alert: true}, fmt.Errorf("edit results: %w", err)
	}
	return chat.Answer{}, nil
}
