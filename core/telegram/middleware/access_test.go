package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b
}

func messageFrom(b *tele.Bot, userID int64, chatType tele.ChatType) tele.Context {
	return b.NewContext(tele.Update{Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: chatType},
		Text:   "hi",
	}})
}

func TestPrivateOnlyMiddleware(t *testing.T) {
	b := offlineBot(t)
	calls := 0
	h := PrivateOnlyMiddleware(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(messageFrom(b, 1, tele.ChatPrivate)))
	require.NoError(t, h(messageFrom(b, 1, tele.ChatSuperGroup)))
	require.NoError(t, h(messageFrom(b, 1, tele.ChatGroup)))
	assert.Equal(t, 1, calls)
}

func TestAdminOnlyMiddleware(t *testing.T) {
	b := offlineBot(t)
	var passed, rejected int
	h := AdminOnlyMiddleware(AdminOptions{
		AdminID:  7,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})(func(tele.Context) error { passed++; return nil })

	require.NoError(t, h(messageFrom(b, 7, tele.ChatPrivate)))
	require.NoError(t, h(messageFrom(b, 8, tele.ChatPrivate)))
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, rejected)

	open := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { passed++; return nil })
	require.NoError(t, open(messageFrom(b, 8, tele.ChatPrivate)))
	assert.Equal(t, 2, passed)
}
