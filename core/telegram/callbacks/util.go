package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const answeredKey = "cb_answered"

// ParseCallbackData parses Telebot's \f<unique>|<payload> encoding.
// Returns unique and payload (may be empty).
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		// telebot already split the data for endpoint-specific handlers
		return cb.Unique, cb.Data
	}
	raw := cb.Data
	raw = strings.TrimPrefix(raw, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	// Split once: unique | payload?
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}

// CallbackKey returns cb.Unique if present; otherwise parses from Data.
func CallbackKey(c tele.Context) string {
	k, _ := ParseCallbackData(c.Callback())
	return k
}

// Answer responds to the callback with a toast text and marks it answered.
// Telegram accepts a single answer per callback query.
func Answer(c tele.Context, text string, alert ...bool) error {
	if c.Callback() == nil {
		return nil
	}
	c.Set(answeredKey, true)
	resp := &tele.CallbackResponse{Text: text}
	if len(alert) > 0 {
		resp.ShowAlert = alert[0]
	}
	return c.Respond(resp)
}

// AnswerIfPending sends an empty answer when no handler answered the callback.
func AnswerIfPending(c tele.Context) {
	if c.Callback() == nil {
		return
	}
	if v, ok := c.Get(answeredKey).(bool); ok && v {
		return
	}
	_ = c.Respond()
}
