package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Kind labels a failed Telegram call for logs, metrics and retry decisions.
type Kind string

const (
	KindNone         Kind = ""
	KindTimeout      Kind = "timeout"
	KindDNS          Kind = "dns"
	KindDial         Kind = "dial"
	KindTLS          Kind = "tls"
	KindFlood        Kind = "flood"
	KindBlocked      Kind = "blocked"
	KindChatNotFound Kind = "chat_not_found"
	KindHTTP4xx      Kind = "http_4xx"
	KindHTTP5xx      Kind = "http_5xx"
	KindUnknown      Kind = "unknown"
)

// Permanent reports failures that repeat on every attempt: the recipient
// blocked the bot, vanished, or the request itself is invalid.
func (k Kind) Permanent() bool {
	switch k {
	case KindBlocked, KindChatNotFound, KindHTTP4xx:
		return true
	}
	return false
}

// Classify maps err to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrUserIsDeactivated) {
		return KindBlocked
	}
	if errors.Is(err, tele.ErrChatNotFound) {
		return KindChatNotFound
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return KindFlood
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return KindTimeout
		}
		if opErr.Op == "dial" {
			return KindDial
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return KindTimeout
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return KindTLS
	}

	switch status := StatusCode(err); {
	case status == 429:
		return KindFlood
	case status >= 500:
		return KindHTTP5xx
	case status >= 400:
		return KindHTTP4xx
	}
	return KindUnknown
}

// ShouldRetry reports whether another attempt may succeed.
func ShouldRetry(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindDial, KindDNS, KindFlood, KindHTTP5xx:
		return true
	}
	return false
}

// RetryAfter returns the wait Telegram asked for on a flood error, or zero.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// StatusCode extracts the Bot API error code, falling back to the trailing
// "(NNN)" telebot appends to its error strings.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return 400
	}

	msg := err.Error()
	open, closing := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if open < 0 || closing <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : closing]))
	if convErr != nil {
		return 0
	}
	return code
}
