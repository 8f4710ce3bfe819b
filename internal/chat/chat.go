// Package chat describes the messaging channel the bot talks through,
// independent of the Telegram transport.
package chat

import (
	"context"

	"github.com/m3rciful/reviewbot/internal/action"
)

// Button is an inline button bound to a typed action.
type Button struct {
	Text   string
	Action action.Action
}

// Message is an outbound message. Reply sets a reply keyboard, Inline an
// inline keyboard; RemoveReply hides a previously shown reply keyboard.
// Markdown messages must escape user supplied text.
type Message struct {
	Text        string
	Markdown    bool
	Reply       [][]string
	RemoveReply bool
	Inline      [][]Button
}

// Incoming is an inbound text message or button press.
type Incoming struct {
	UserID      int64
	ChatID      int64
	MessageID   int
	DisplayName string
	Text        string
}

// Answer is the acknowledgement of a button press. Empty Text answers
// silently.
type Answer struct {
	Text  string
	Alert bool
}

// Messenger delivers messages to chats.
type Messenger interface {
	// Send delivers msg and returns the new message id.
	Send(ctx context.Context, chatID int64, msg Message) (int, error)
	// Edit replaces text and inline keyboard of a sent message.
	Edit(ctx context.Context, chatID int64, messageID int, msg Message) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	// Notify delivers msg in the background. Failures are logged, never
	// returned.
	Notify(ctx context.Context, chatID int64, msg Message)
}

// Button returns the first inline button whose action has the given kind.
func (m Message) Button(kind action.Kind) (Button, bool) {
	for _, row := range m.Inline {
		for _, b := range row {
			if b.Action != nil && b.Action.Kind() == kind {
				return b, true
			}
		}
	}
	return Button{}, false
}
