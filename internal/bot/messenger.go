// Package bot binds the conversation and moderation services to Telegram.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/reviewbot/core/logger"
	"github.com/m3rciful/reviewbot/core/telegram/keyboard"
	"github.com/m3rciful/reviewbot/core/telegram/sender"
	"github.com/m3rciful/reviewbot/internal/action"
	"github.com/m3rciful/reviewbot/internal/chat"

	tele "gopkg.in/telebot.v4"
)

// ErrNotAttached is returned when a message is sent before the bot started.
var ErrNotAttached = errors.New("bot: messenger not attached to a bot")

// API is the subset of *tele.Bot the messenger needs.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Messenger implements chat.Messenger on top of the Telegram Bot API.
// Notifications go through the async dispatcher when one is set.
type Messenger struct {
	api  atomic.Pointer[apiHolder]
	disp *sender.Dispatcher
}

type apiHolder struct{ API }

// NewMessenger returns a messenger that is usable once Attach is called.
func NewMessenger(disp *sender.Dispatcher) *Messenger {
	return &Messenger{disp: disp}
}

// Attach binds the messenger to a running bot.
func (m *Messenger) Attach(api API) {
	if api == nil {
		m.api.Store(nil)
		return
	}
	m.api.Store(&apiHolder{api})
}

func (m *Messenger) client() (API, error) {
	h := m.api.Load()
	if h == nil {
		return nil, ErrNotAttached
	}
	return h.API, nil
}

// Send delivers msg to chatID.
func (m *Messenger) Send(ctx context.Context, chatID int64, msg chat.Message) (int, error) {
	api, err := m.client()
	if err != nil {
		return 0, err
	}
	opts, err := sendOptions(msg)
	if err != nil {
		return 0, err
	}
	sent, err := api.Send(tele.ChatID(chatID), msg.Text, opts)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	logger.Debug(ctx, "tg", "message.sent",
		slog.Int64("chat_id", chatID),
		slog.Int("message_id", sent.ID),
		slog.Bool("kb", opts.ReplyMarkup != nil),
	)
	return sent.ID, nil
}

// Edit replaces the text and inline keyboard of a sent message.
func (m *Messenger) Edit(ctx context.Context, chatID int64, messageID int, msg chat.Message) error {
	api, err := m.client()
	if err != nil {
		return err
	}
	opts, err := sendOptions(msg)
	if err != nil {
		return err
	}
	if _, err := api.Edit(stored(chatID, messageID), msg.Text, opts); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

// Delete removes a message.
func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	api, err := m.client()
	if err != nil {
		return err
	}
	if err := api.Delete(stored(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

// Notify sends msg in the background. Delivery errors are logged by the
// dispatcher; without one the send runs inline and only its error is logged.
func (m *Messenger) Notify(ctx context.Context, chatID int64, msg chat.Message) {
	run := func() error {
		_, err := m.Send(ctx, chatID, msg)
		return err
	}
	if m.disp != nil {
		err := m.disp.Enqueue(ctx, "notify", "sendMessage", run)
		if err == nil {
			return
		}
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", "notify"),
			slog.String("err", err.Error()),
		)
	}
	if err := run(); err != nil {
		logger.Warn(ctx, "tg", "notify.failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{ChatID: chatID, MessageID: strconv.Itoa(messageID)}
}

func sendOptions(msg chat.Message) (*tele.SendOptions, error) {
	opts := &tele.SendOptions{}
	if msg.Markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	switch {
	case len(msg.Inline) > 0:
		rows := make([][]keyboard.InlineBtn, 0, len(msg.Inline))
		for _, row := range msg.Inline {
			btns := make([]keyboard.InlineBtn, 0, len(row))
			for _, b := range row {
				tok, err := action.Encode(b.Action)
				if err != nil {
					return nil, fmt.Errorf("button %q: %w", b.Text, err)
				}
				btns = append(btns, keyboard.InlineBtn{Text: b.Text, Unique: tok.Unique, Data: tok.Data})
			}
			rows = append(rows, btns)
		}
		opts.ReplyMarkup = keyboard.InlineButtonsRows(rows...)
	case len(msg.Reply) > 0:
		opts.ReplyMarkup = keyboard.ReplyButtons(msg.Reply...)
	case msg.RemoveReply:
		opts.ReplyMarkup = keyboard.RemoveKeyboard()
	}
	return opts, nil
}
