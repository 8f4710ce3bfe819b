package dialogue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/reviewbot/internal/action"
	"github.com/m3rciful/reviewbot/internal/chat"
	"github.com/m3rciful/reviewbot/internal/chat/chattest"
	"github.com/m3rciful/reviewbot/internal/i18n"
	"github.com/m3rciful/reviewbot/internal/moderation"
	"github.com/m3rciful/reviewbot/internal/review"
	"github.com/m3rciful/reviewbot/internal/review/reviewtest"
	"github.com/m3rciful/reviewbot/internal/session"
)

const (
	userID    int64 = 42
	adminChat int64 = -1001
)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *reviewtest.MemStore
	sessions *session.MemoryStore
	rec      *chattest.Recorder
	cat      *i18n.Catalog
	mod      *moderation.Workflow
	o        *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := i18n.MustDefault()
	store := reviewtest.New()
	sessions := session.NewMemoryStore()
	rec := chattest.New()
	mod := moderation.New(store, rec, cat, moderation.Config{ChatID: adminChat, Language: "ru"})
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	return &fixture{
		t: t, ctx: context.Background(),
		store: store, sessions: sessions, rec: rec, cat: cat, mod: mod,
		o: New(Deps{
			Store:     store,
			Sessions:  sessions,
			Moderator: mod,
			Messenger: rec,
			Catalog:   cat,
			Now: func() time.Time {
				clock = clock.Add(time.Minute)
				return clock
			},
		}),
	}
}

func (f *fixture) in(text string) chat.Incoming {
	return chat.Incoming{UserID: userID, ChatID: userID, DisplayName: "Ann", Text: text}
}

func (f *fixture) say(text string) {
	f.t.Helper()
	require.NoError(f.t, f.o.HandleText(f.ctx, f.in(text)))
}

func (f *fixture) last() chat.Message {
	f.t.Helper()
	s, err := f.rec.Last(userID)
	require.NoError(f.t, err)
	return s.Msg
}

func (f *fixture) session() session.Session {
	f.t.Helper()
	s, err := f.sessions.Get(f.ctx, userID)
	require.NoError(f.t, err)
	return s
}

// onboard runs /start and picks Polish and Warsaw.
func (f *fixture) onboard() {
	f.t.Helper()
	require.NoError(f.t, f.o.Start(f.ctx, f.in("/start")))
	f.say("🇵🇱 Polski")
	f.say("🏙 Warszawa")
}

func (f *fixture) approved(employer string, rating int, comment string) int64 {
	f.t.Helper()
	id, err := f.store.SaveReview(f.ctx, review.Review{
		UserID: 7, UserName: "Bob", Employer: employer, Rating: rating, Comment: comment,
		City: "warsaw", SubmittedAt: time.Date(2024, 1, 1, 0, f.store.Len(), 0, 0, time.UTC),
	})
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.ApproveReview(f.ctx, "warsaw", id))
	return id
}

func TestStartAsksLanguage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.o.Start(f.ctx, f.in("/start")))

	msg := f.last()
	assert.Equal(t, f.cat.T("ru", "choose_language"), msg.Text)
	require.Len(t, msg.Reply, 1)
	assert.Contains(t, msg.Reply[0], "🇵🇱 Polski")
	assert.Equal(t, session.StateLanguage, f.session().State)

	u, err := f.store.GetUser(f.ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.DisplayName)
}

func TestFirstContactWithoutStart(t *testing.T) {
	f := newFixture(t)
	f.say("hello")
	assert.Equal(t, f.cat.T("ru", "choose_language"), f.last().Text)
	assert.Equal(t, session.StateLanguage, f.session().State)
}

func TestLanguageAndCitySelection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.o.Start(f.ctx, f.in("/start")))

	f.say("Klingon")
	assert.Equal(t, session.StateLanguage, f.session().State)

	f.say("🇵🇱 Polski")
	assert.Equal(t, session.StateCity, f.session().State)
	msg := f.last()
	assert.Equal(t, f.cat.T("pl", "choose_city"), msg.Text)
	assert.Contains(t, msg.Reply, []string{"🏙 Warszawa"})

	f.say("🏙 Атлантида")
	assert.Equal(t, session.StateCity, f.session().State)

	f.say("🏙 Warszawa")
	s := f.session()
	assert.Equal(t, session.StateIdle, s.State)
	assert.Equal(t, "pl", s.Language)
	assert.Equal(t, "warsaw", s.City)
	assert.Equal(t, f.cat.T("pl", "main_menu"), f.last().Text)

	u, err := f.store.GetUser(f.ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "pl", u.Language)
	assert.Equal(t, "warsaw", u.City)
}

func TestReviewFlow(t *testing.T) {
	f := newFixture(t)
	f.onboard()

	f.say(f.cat.Button("pl", "leave_review"))
	assert.Equal(t, session.StateReviewEmployer, f.session().State)
	assert.Equal(t, f.cat.T("pl", "enter_employer"), f.last().Text)

	f.say("Компания")
	assert.Equal(t, session.StateReviewEmployer, f.session().State)
	assert.Equal(t, f.cat.T("pl", "invalid_employer"), f.last().Text)

	f.say("Acme")
	assert.Equal(t, session.StateReviewRating, f.session().State)

	for _, bad := range []string{"6", "abc", "0"} {
		f.say(bad)
		assert.Equal(t, session.StateReviewRating, f.session().State, bad)
		assert.Equal(t, f.cat.T("pl", "invalid_rating"), f.last().Text)
	}

	f.say("5")
	assert.Equal(t, session.StateReviewComment, f.session().State)
	assert.Equal(t, 5, f.session().Draft.Rating)

	f.say("Great place")
	s := f.session()
	assert.Equal(t, session.StateIdle, s.State)
	assert.Nil(t, s.Draft)
	assert.Equal(t, f.cat.T("pl", "review_submitted"), f.last().Text)

	require.Equal(t, 1, f.store.Len())
	stored, ok := f.store.Review(1)
	require.True(t, ok)
	assert.Equal(t, review.StatusPending, stored.Status)
	assert.Equal(t, "Acme", stored.Employer)
	assert.Equal(t, 5, stored.Rating)
	assert.Equal(t, "Great place", stored.Comment)
	assert.Equal(t, "warsaw", stored.City)
	assert.Equal(t, "pl", stored.Language)
	assert.Equal(t, "Ann", stored.UserName)

	cards := f.rec.SentTo(adminChat)
	require.Len(t, cards, 1)
	_, ok = cards[0].Msg.Button(action.KindApprove)
	assert.True(t, ok)
}

func TestReviewStoredWhenModerationChatUnreachable(t *testing.T) {
	f := newFixture(t)
	f.onboard()
	f.rec.FailSend[adminChat] = errors.New("chat not found")

	f.say(f.cat.Button("pl", "leave_review"))
	f.say("Acme")
	f.say("4")
	f.say("fine")

	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, f.cat.T("pl", "review_submitted"), f.last().Text)
}

func TestGuardRedirectsToCity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Save(f.ctx, session.Session{UserID: userID, State: session.StateIdle, Language: "pl"}))

	f.say(f.cat.Button("pl", "leave_review"))

	s := f.session()
	assert.Equal(t, session.StateCity, s.State)
	assert.Nil(t, s.Draft, "no draft is started")
	assert.Equal(t, f.cat.T("pl", "choose_city"), f.last().Text)
}

func TestGuardRedirectsToLanguage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Save(f.ctx, session.Session{UserID: userID, State: session.StateIdle, City: "warsaw"}))

	f.say(f.cat.Button("uk", "find_reviews"))

	s := f.session()
	assert.Equal(t, session.StateLanguage, s.State)
	assert.Nil(t, s.Search)
	assert.Equal(t, f.cat.T("ru", "choose_language"), f.last().Text)
}

func TestGuardRestoresProfileAfterRestart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveUser(f.ctx, review.User{ID: userID, Language: "uk", City: "krakow"}))

	f.say(f.cat.Button("uk", "leave_review"))

	s := f.session()
	assert.Equal(t, session.StateReviewEmployer, s.State)
	assert.Equal(t, "uk", s.Language)
	assert.Equal(t, "krakow", s.City)
}

func TestChangeSettingsResetsFromAnyState(t *testing.T) {
	f := newFixture(t)
	f.onboard()
	f.say(f.cat.Button("pl", "leave_review"))
	f.say("Acme")

	f.say(f.cat.Button("ru", "change_settings"))

	s := f.session()
	assert.Equal(t, session.StateLanguage, s.State)
	assert.Empty(t, s.City)
	assert.Nil(t, s.Draft)
	assert.Equal(t, f.cat.T("ru", "choose_language"), f.last().Text)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.onboard()
	f.say(f.cat.Button("pl", "leave_review"))
	f.say("Acme")

	require.NoError(t, f.o.Cancel(f.ctx, f.in("/cancel")))
	s := f.session()
	assert.Equal(t, session.StateIdle, s.State)
	assert.Nil(t, s.Draft)
	assert.Equal(t, f.cat.T("pl", "cancelled"), f.last().Text)
	assert.Zero(t, f.store.Len())
}

func TestHelpAndUnknownInput(t *testing.T) {
	f := newFixture(t)
	f.onboard()

	require.NoError(t, f.o.Help(f.ctx, f.in("/help")))
	assert.Equal(t, f.cat.T("pl", "help"), f.last().Text)

	f.say("what?")
	msg := f.last()
	assert.Equal(t, f.cat.T("pl", "unknown_input"), msg.Text)
	assert.Len(t, msg.Reply, 3)
}

func TestInProgress(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.o.InProgress(f.ctx, userID))
	require.NoError(t, f.o.Start(f.ctx, f.in("/start")))
	assert.True(t, f.o.InProgress(f.ctx, userID))
	f.say("🇵🇱 Polski")
	f.say("🏙 Warszawa")
	assert.False(t, f.o.InProgress(f.ctx, userID))
}

func TestSearchRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.onboard()

	submit := func(employer, comment string) chattest.Sent {
		f.say(f.cat.Button("pl", "leave_review"))
		f.say(employer)
		f.say("4")
		f.say(comment)
		card, err := f.rec.Last(adminChat)
		require.NoError(t, err)
		return card
	}
	press := func(card chattest.Sent, kind action.Kind) {
		btn, ok := card.Msg.Button(kind)
		require.True(t, ok)
		_, err := f.mod.Handle(f.ctx, chat.Incoming{UserID: 1, ChatID: adminChat, MessageID: card.MessageID}, btn.Action)
		require.NoError(t, err)
	}

	press(submit("Acme", "solid employer"), action.KindApprove)
	press(submit("Globex", "never again"), action.KindReject)

	f.say(f.cat.Button("pl", "find_reviews"))
	assert.Equal(t, session.StateSearchEmployer, f.session().State)
	f.say("acm")

	msg := f.last()
	assert.Contains(t, msg.Text, "Acme")
	assert.Contains(t, msg.Text, "solid employer")
	assert.Empty(t, msg.Inline, "single page has no navigation")
	s := f.session()
	assert.Equal(t, session.StateIdle, s.State)
	require.NotNil(t, s.Search)
	assert.Equal(t, "acme", s.Search.Employer)

	f.say(f.cat.Button("pl", "find_reviews"))
	f.say("globex")
	assert.NotContains(t, f.last().Text, "never again")
}

func TestSearchNoResults(t *testing.T) {
	f := newFixture(t)
	f.onboard()
	f.say(f.cat.Button("pl", "find_reviews"))
	f.say("Компания")
	assert.Equal(t, session.StateSearchEmployer, f.session().State)
	assert.Equal(t, f.cat.T("pl", "invalid_employer"), f.last().Text)

	f.say("acme")
	assert.Equal(t, f.cat.T("pl", "search_no_results"), f.last().Text)
	assert.Equal(t, session.StateIdle, f.session().State)
	assert.Nil(t, f.session().Search)
}

func TestSearchPaging(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.approved("Initech", 3, fmt.Sprintf("comment %d", i))
	}
	f.onboard()
	f.say(f.cat.Button("pl", "find_reviews"))
	f.say("initech")

	first, err := f.rec.Last(userID)
	require.NoError(t, err)
	assert.Contains(t, first.Msg.Text, "comment 6")
	assert.NotContains(t, first.Msg.Text, "comment 1")
	_, hasPrev := first.Msg.Button(action.KindSearchPrev)
	assert.False(t, hasPrev)
	next, ok := first.Msg.Button(action.KindSearchNext)
	require.True(t, ok)
	assert.Equal(t, action.SearchNext{Page: 0}, next.Action)

	press := chat.Incoming{UserID: userID, ChatID: userID, MessageID: first.MessageID}
	ans, err := f.o.Callback(f.ctx, press, next.Action)
	require.NoError(t, err)
	assert.Empty(t, ans.Text)

	require.Len(t, f.rec.Edited, 1)
	page1 := f.rec.Edited[0]
	assert.Equal(t, first.MessageID, page1.MessageID)
	assert.Contains(t, page1.Msg.Text, "comment 1")
	assert.Contains(t, page1.Msg.Text, "comment 0")
	prev, ok := page1.Msg.Button(action.KindSearchPrev)
	require.True(t, ok)
	assert.Equal(t, action.SearchPrev{Page: 1}, prev.Action)
	_, hasNext := page1.Msg.Button(action.KindSearchNext)
	assert.False(t, hasNext)
	assert.Equal(t, 1, f.session().Search.Page)

	_, err = f.o.Callback(f.ctx, press, prev.Action)
	require.NoError(t, err)
	assert.Len(t, f.rec.Edited, 2)
	assert.Equal(t, 0, f.session().Search.Page)
}

func TestSearchNavigationFromOlderResults(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		f.approved("Initech", 3, fmt.Sprintf("initech %d", i))
		f.approved("Globex", 4, fmt.Sprintf("globex %d", i))
	}
	f.onboard()

	f.say(f.cat.Button("pl", "find_reviews"))
	f.say("initech")
	older, err := f.rec.Last(userID)
	require.NoError(t, err)
	next, ok := older.Msg.Button(action.KindSearchNext)
	require.True(t, ok)

	f.say(f.cat.Button("pl", "find_reviews"))
	f.say("globex")
	newer, err := f.rec.Last(userID)
	require.NoError(t, err)
	require.NotEqual(t, older.MessageID, newer.MessageID)
	assert.Equal(t, newer.MessageID, f.session().Search.MessageID)

	ans, err := f.o.Callback(f.ctx, chat.Incoming{UserID: userID, ChatID: userID, MessageID: older.MessageID}, next.Action)
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("pl", "search_expired"), ans.Text)
	assert.True(t, ans.Alert)
	assert.Empty(t, f.rec.Edited)
	assert.Equal(t, 0, f.session().Search.Page)

	_, err = f.o.Callback(f.ctx, chat.Incoming{UserID: userID, ChatID: userID, MessageID: newer.MessageID}, next.Action)
	require.NoError(t, err)
	require.Len(t, f.rec.Edited, 1)
	assert.Equal(t, newer.MessageID, f.rec.Edited[0].MessageID)
	assert.Contains(t, f.rec.Edited[0].Msg.Text, "globex 0")
}

func TestUnsupportedContentFollowsSessionLanguage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.o.Unsupported(f.ctx, f.in("")))
	assert.Equal(t, f.cat.T("ru", "unsupported_content"), f.last().Text)

	f.onboard()
	f.say(f.cat.Button("pl", "leave_review"))
	require.NoError(t, f.o.Unsupported(f.ctx, f.in("")))
	assert.Equal(t, f.cat.T("pl", "unsupported_content"), f.last().Text)
	assert.Equal(t, session.StateReviewEmployer, f.session().State)
}

func TestSearchNavigationAfterSessionLoss(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Clear(f.ctx, userID))
	ans, err := f.o.Callback(f.ctx, f.in(""), action.SearchNext{Page: 0})
	require.NoError(t, err)
	assert.Equal(t, f.cat.T("ru", "search_expired"), ans.Text)
	assert.Empty(t, f.rec.Edited)
}

func TestCallbackRejectsModerationActions(t *testing.T) {
	f := newFixture(t)
	_, err := f.o.Callback(f.ctx, f.in(""), action.Approve{City: "warsaw", ID: 1})
	assert.ErrorIs(t, err, action.ErrMalformed)
}

func TestStoreFailureKeepsServing(t *testing.T) {
	f := newFixture(t)
	f.onboard()
	f.say(f.cat.Button("pl", "leave_review"))
	f.say("Acme")
	f.say("3")

	f.store.Failing = errors.New("db down")
	err := f.o.HandleText(f.ctx, f.in("text"))
	assert.Error(t, err)
	assert.Equal(t, f.cat.T("pl", "generic_error"), f.last().Text)
	assert.Equal(t, session.StateReviewComment, f.session().State, "the comment can be resent")

	f.store.Failing = nil
	f.say("text")
	assert.Equal(t, 1, f.store.Len())
}
