package dialogue

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/internal/review"
	"github.com/m3rciful/reviewbot/internal/session"
)

// restoreFromProfile fills language and city of a fresh session from the
// stored user, so a restart does not force users through selection again.
func (o *Orchestrator) restoreFromProfile(ctx context.Context, t *turn) {
	if t.sess.State != session.StateNew || (t.sess.Language != "" && t.sess.City != "") {
		return
	}
	u, err := o.store.GetUser(ctx, t.in.UserID)
	if err != nil {
		if !errors.Is(err, review.ErrNotFound) {
			logger.Warn(ctx, "service.users", "user.load_failed", slog.String("err", err.Error()))
		}
		return
	}
	if t.sess.Language == "" && o.cat.Has(u.Language) {
		t.sess.Language = u.Language
	}
	if t.sess.City == "" && o.cat.HasCity(u.City) {
		t.sess.City = u.City
	}
	if t.sess.Language != "" && t.sess.City != "" {
		t.sess.State = session.StateIdle
	}
}

// resolveLanguage returns the language to talk to the user in, falling back
// to the catalog default.
func (o *Orchestrator) resolveLanguage(ctx context.Context, t *turn) string {
	o.restoreFromProfile(ctx, t)
	if t.sess.Language != "" {
		return t.sess.Language
	}
	return o.cat.DefaultLanguage()
}

// requireLanguageAndCity is the precondition of every action that needs both
// settings. When one is missing the user is redirected to the missing
// selection step and false is returned; the caller must not proceed.
func (o *Orchestrator) requireLanguageAndCity(ctx context.Context, t *turn) (bool, error) {
	o.restoreFromProfile(ctx, t)
	if t.sess.Language == "" {
		return false, o.enterLanguage(ctx, t)
	}
	if t.sess.City == "" {
		return false, o.enterCity(ctx, t)
	}
	return true, nil
}
