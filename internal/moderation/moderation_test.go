package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/reviewbot/internal/action"
	"github.com/m3rciful/reviewbot/internal/chat"
	"github.com/m3rciful/reviewbot/internal/chat/chattest"
	"github.com/m3rciful/reviewbot/internal/i18n"
	"github.com/m3rciful/reviewbot/internal/review"
	"github.com/m3rciful/reviewbot/internal/review/reviewtest"
)

const adminChat int64 = -100500

type fixture struct {
	store *reviewtest.MemStore
	rec   *chattest.Recorder
	wf    *Workflow
	cat   *i18n.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := i18n.MustDefault()
	store := reviewtest.New()
	rec := chattest.New()
	return &fixture{
		store: store,
		rec:   rec,
		cat:   cat,
		wf:    New(store, rec, cat, Config{ChatID: adminChat, Language: "ru"}),
	}
}

func (f *fixture) submit(t *testing.T, userID int64, employer, comment string) (review.Review, int) {
	t.Helper()
	ctx := context.Background()
	r := review.Review{
		UserID: userID, UserName: "Ann_Smith", Employer: employer, Rating: 4,
		Comment: comment, City: "warsaw", Language: "pl",
		SubmittedAt: time.Date(2024, 5, 1, 10, 0, f.store.Len(), 0, time.UTC),
	}
	id, err := f.store.SaveReview(ctx, r)
	require.NoError(t, err)
	r.ID = id
	msgID, err := f.wf.Submit(ctx, r)
	require.NoError(t, err)
	return r, msgID
}

func (f *fixture) press(msgID int) chat.Incoming {
	return chat.Incoming{UserID: 1, ChatID: adminChat, MessageID: msgID}
}

func TestSubmitPostsCard(t *testing.T) {
	f := newFixture(t)
	r, msgID := f.submit(t, 42, "Acme_Corp", "great *team*")

	card, err := f.rec.Last(adminChat)
	require.NoError(t, err)
	assert.Equal(t, msgID, card.MessageID)
	assert.True(t, card.Msg.Markdown)
	assert.Contains(t, card.Msg.Text, `Acme\_Corp`)
	assert.Contains(t, card.Msg.Text, `great \*team\*`)
	assert.Contains(t, card.Msg.Text, `Ann\_Smith`)
	assert.Contains(t, card.Msg.Text, "Варшава")
	assert.Contains(t, card.Msg.Text, "2024-05-01 10:00:00")

	approve, ok := card.Msg.Button(action.KindApprove)
	require.True(t, ok)
	assert.Equal(t, action.Approve{City: "warsaw", ID: r.ID}, approve.Action)
	reject, ok := card.Msg.Button(action.KindReject)
	require.True(t, ok)
	assert.Equal(t, action.Reject{City: "warsaw", ID: r.ID}, reject.Action)
	view, ok := card.Msg.Button(action.KindUserReviews)
	require.True(t, ok)
	assert.Equal(t, action.UserReviews{User: 42}, view.Action)
}

func TestSubmitDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.rec.FailSend[adminChat] = errors.New("chat not found")
	_, err := f.wf.Submit(context.Background(), review.Review{ID: 1, City: "warsaw"})
	assert.Error(t, err)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveUser(ctx, review.User{ID: 42, Language: "pl"}))
	r, msgID := f.submit(t, 42, "Acme", "ok")

	ans, err := f.wf.Handle(ctx, f.press(msgID), action.Approve{City: r.City, ID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "moderation_approved"), ans.Text)

	stored, ok := f.store.Review(r.ID)
	require.True(t, ok)
	assert.Equal(t, review.StatusApproved, stored.Status)

	require.Len(t, f.rec.Notified, 1)
	assert.Equal(t, int64(42), f.rec.Notified[0].ChatID)
	assert.Equal(t, f.cat.T("pl", "review_approved"), f.rec.Notified[0].Msg.Text)
	assert.Equal(t, []chattest.Deleted{{ChatID: adminChat, MessageID: msgID}}, f.rec.Deleted)
}

func TestApproveTwiceIsAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, msgID := f.submit(t, 42, "Acme", "ok")
	_, err := f.wf.Approve(ctx, f.press(msgID), action.Approve{City: r.City, ID: r.ID})
	require.NoError(t, err)

	ans, err := f.wf.Approve(ctx, f.press(msgID), action.Approve{City: r.City, ID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "moderation_already_processed"), ans.Text)
	assert.Len(t, f.rec.Notified, 1)

	ans, err = f.wf.Reject(ctx, f.press(msgID), action.Reject{City: r.City, ID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "moderation_already_processed"), ans.Text)
	_, ok := f.store.Review(r.ID)
	assert.True(t, ok, "approved reviews are immutable")
}

func TestRejectRemovesReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, msgID := f.submit(t, 42, "Acme", "bad")
	before, err := f.store.CountUserReviews(ctx, 42)
	require.NoError(t, err)

	ans, err := f.wf.Handle(ctx, f.press(msgID), action.Reject{City: r.City, ID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "moderation_rejected"), ans.Text)

	_, found, err := f.store.GetUserIDByReview(ctx, r.City, r.ID)
	require.NoError(t, err)
	assert.False(t, found)
	after, err := f.store.CountUserReviews(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, before-1, after)

	require.Len(t, f.rec.Notified, 1)
	assert.Equal(t, int64(42), f.rec.Notified[0].ChatID)
	assert.Equal(t, f.cat.T("ru", "review_rejected"), f.rec.Notified[0].Msg.Text, "unknown user gets the default language")
	assert.Len(t, f.rec.Deleted, 1)
}

func TestDecisionSurvivesUnreachableSubmitter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, msgID := f.submit(t, 42, "Acme", "ok")
	f.rec.FailNotify[42] = errors.New("bot was blocked by the user")
	f.rec.FailDelete[adminChat] = errors.New("message to delete not found")

	ans, err := f.wf.Approve(ctx, f.press(msgID), action.Approve{City: r.City, ID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "moderation_approved"), ans.Text)
	stored, _ := f.store.Review(r.ID)
	assert.Equal(t, review.StatusApproved, stored.Status)
	assert.Len(t, f.rec.NotifyFailed, 1)
}

func TestDecisionWrongCity(t *testing.T) {
	f := newFixture(t)
	r, msgID := f.submit(t, 42, "Acme", "ok")
	ans, err := f.wf.Approve(context.Background(), f.press(msgID), action.Approve{City: "krakow", ID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "moderation_already_processed"), ans.Text)
	stored, _ := f.store.Review(r.ID)
	assert.Equal(t, review.StatusPending, stored.Status)
}

func TestDecisionStoreError(t *testing.T) {
	f := newFixture(t)
	r, msgID := f.submit(t, 42, "Acme", "ok")
	f.store.Failing = errors.New("db down")
	ans, err := f.wf.Approve(context.Background(), f.press(msgID), action.Approve{City: r.City, ID: r.ID})
	assert.Error(t, err)
	assert.True(t, ans.Alert)
	assert.Empty(t, f.rec.Notified)
	assert.Empty(t, f.rec.Deleted)
}

func TestHandleRejectsForeignChat(t *testing.T) {
	f := newFixture(t)
	r, msgID := f.submit(t, 42, "Acme", "ok")
	in := f.press(msgID)
	in.ChatID = 42
	_, err := f.wf.Handle(context.Background(), in, action.Approve{City: r.City, ID: r.ID})
	assert.ErrorIs(t, err, ErrForeignChat)
	stored, _ := f.store.Review(r.ID)
	assert.Equal(t, review.StatusPending, stored.Status)
}

func TestHandleRejectsSearchActions(t *testing.T) {
	f := newFixture(t)
	_, err := f.wf.Handle(context.Background(), f.press(1), action.SearchNext{Page: 0})
	assert.ErrorIs(t, err, action.ErrMalformed)
}

func TestViewUserReviewsNone(t *testing.T) {
	f := newFixture(t)
	ans, err := f.wf.Handle(context.Background(), f.press(1), action.UserReviews{User: 7})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "moderation_no_reviews"), ans.Text)
	assert.Empty(t, f.rec.Sent)
}

func TestViewAndNavigateUserReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, c := range []string{"first", "second", "third"} {
		f.submit(t, 42, "Acme", c)
	}
	f.rec.Reset()

	_, err := f.wf.Handle(ctx, f.press(1), action.UserReviews{User: 42})
	require.NoError(t, err)
	require.Len(t, f.rec.Sent, 1)
	list := f.rec.Sent[0]
	assert.Equal(t, adminChat, list.ChatID)
	assert.Contains(t, list.Msg.Text, "third")
	assert.Contains(t, list.Msg.Text, "second")
	assert.NotContains(t, list.Msg.Text, "first")
	assert.Less(t, strings.Index(list.Msg.Text, "third"), strings.Index(list.Msg.Text, "second"), "newest first")

	next, ok := list.Msg.Button(action.KindNavigate)
	require.True(t, ok)
	assert.Len(t, list.Msg.Inline[0], 1, "first page has no previous button")
	assert.Equal(t, action.Navigate{User: 42, Page: 1}, next.Action)
	_, ok = list.Msg.Button(action.KindHideReviews)
	assert.True(t, ok)

	_, err = f.wf.Handle(ctx, f.press(list.MessageID), next.Action)
	require.NoError(t, err)
	require.Len(t, f.rec.Edited, 1)
	page1 := f.rec.Edited[0]
	assert.Equal(t, list.MessageID, page1.MessageID)
	assert.Contains(t, page1.Msg.Text, "first")
	prev, ok := page1.Msg.Button(action.KindNavigate)
	require.True(t, ok)
	assert.Equal(t, action.Navigate{User: 42, Page: 0}, prev.Action)

	ans, err := f.wf.Handle(ctx, f.press(list.MessageID), action.Navigate{User: 42, Page: 5})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "moderation_no_more_reviews"), ans.Text)
	assert.Len(t, f.rec.Edited, 1, "empty page leaves the message untouched")

	_, err = f.wf.Handle(ctx, f.press(list.MessageID), action.HideReviews{})
	require.NoError(t, err)
	assert.Equal(t, []chattest.Deleted{{ChatID: adminChat, MessageID: list.MessageID}}, f.rec.Deleted)
}
