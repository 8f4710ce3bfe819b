package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		kind  Kind
		retry bool
	}{
		{"nil", nil, KindNone, false},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), KindTimeout, true},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, KindDial, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.telegram.org"}, KindDNS, true},
		{"blocked", tele.ErrBlockedByUser, KindBlocked, false},
		{"deactivated", fmt.Errorf("notify: %w", tele.ErrUserIsDeactivated), KindBlocked, false},
		{"chat not found", tele.ErrChatNotFound, KindChatNotFound, false},
		{"server", &tele.Error{Code: 500, Description: "Internal Server Error"}, KindHTTP5xx, true},
		{"bad request", &tele.Error{Code: 400, Description: "Bad Request: message is not modified"}, KindHTTP4xx, false},
		{"status in text", errors.New("telegram: too many requests (429)"), KindFlood, true},
		{"unknown", errors.New("boom"), KindUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, Classify(tc.err))
			assert.Equal(t, tc.retry, ShouldRetry(tc.err))
		})
	}
}

func TestPermanentKinds(t *testing.T) {
	assert.True(t, KindBlocked.Permanent())
	assert.True(t, KindChatNotFound.Permanent())
	assert.False(t, KindTimeout.Permanent())
	assert.False(t, KindFlood.Permanent())
}

func TestRetryAfterWithoutFlood(t *testing.T) {
	assert.Zero(t, RetryAfter(errors.New("boom")))
	assert.Zero(t, RetryAfter(nil))
}
