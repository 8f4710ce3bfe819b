package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/reviewbot/core/logger"
	coretelegram "github.com/m3rciful/reviewbot/core/telegram"
	"github.com/m3rciful/reviewbot/core/telegram/callbacks"
	"github.com/m3rciful/reviewbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/reviewbot/core/telegram/helpers"
	"github.com/m3rciful/reviewbot/core/telegram/middleware"
	"github.com/m3rciful/reviewbot/internal/action"
	"github.com/m3rciful/reviewbot/internal/chat"
	"github.com/m3rciful/reviewbot/internal/i18n"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the user-facing dialogue.
type Conversation interface {
	Start(ctx context.Context, in chat.Incoming) error
	Cancel(ctx context.Context, in chat.Incoming) error
	Help(ctx context.Context, in chat.Incoming) error
	Unsupported(ctx context.Context, in chat.Incoming) error
	InProgress(ctx context.Context, userID int64) bool
	HandleText(ctx context.Context, in chat.Incoming) error
	Callback(ctx context.Context, in chat.Incoming, a action.Action) (chat.Answer, error)
}

// Moderation handles the buttons of the moderators' chat.
type Moderation interface {
	Handle(ctx context.Context, in chat.Incoming, a action.Action) (chat.Answer, error)
}

// Handlers translate Telegram updates into service calls.
type Handlers struct {
	dlg Conversation
	mod Moderation
	cat *i18n.Catalog
}

// NewHandlers builds the update handlers.
func NewHandlers(dlg Conversation, mod Moderation, cat *i18n.Catalog) *Handlers {
	return &Handlers{dlg: dlg, mod: mod, cat: cat}
}

// Register adds the commands and callback endpoints to reg.
func (h *Handlers) Register(reg *coretelegram.Registry) error {
	reg.RegisterCommand("/start", h.userCommand(h.start, "cmd_start"))
	reg.RegisterCommand("/cancel", h.userCommand(h.cancel, "cmd_cancel"))
	reg.RegisterCommand("/help", h.userCommand(h.help, "cmd_help"))
	reg.RegisterCommand("/chatid", commands.Command{
		Handler:     h.chatID,
		Description: "Print the current chat id",
		AdminOnly:   true,
		Hidden:      true,
	})
	for _, k := range action.Kinds {
		if err := reg.RegisterCallback(string(k), h.callback); err != nil {
			return err
		}
	}
	reg.SetTextFallback(h.UnknownText())
	reg.SetCallbackNotFound(h.UnknownCallback())
	return nil
}

// userCommand wraps a private-chat command and localizes its menu entry.
func (h *Handlers) userCommand(fn tele.HandlerFunc, key string) commands.Command {
	descs := make(map[string]string, len(h.cat.Languages()))
	for _, l := range h.cat.Languages() {
		descs[l.Code] = h.cat.T(l.Code, key)
	}
	return commands.Command{
		Handler:      middleware.PrivateOnlyMiddleware(fn),
		Description:  h.cat.T(h.cat.DefaultLanguage(), key),
		Descriptions: descs,
	}
}

// chatID replies with the id of the chat it was sent in, which is what
// moderation.chat_id expects for the moderators' group.
func (h *Handlers) chatID(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	return tghelpers.SendText(c, "chat_id: "+strconv.FormatInt(c.Chat().ID, 10))
}

// FSM adapts the dialogue to the text router.
func (h *Handlers) FSM() FSM { return FSM{h: h} }

// FSM reports active conversation steps to the text router.
type FSM struct{ h *Handlers }

// InProgress reports whether the user is inside a multi-step flow.
func (f FSM) InProgress(userID int64) bool {
	return f.h.dlg.InProgress(context.Background(), userID)
}

// ManagerHandler feeds the text to the current step.
func (f FSM) ManagerHandler(c tele.Context) error {
	return middleware.PrivateOnlyMiddleware(f.h.text)(c)
}

// UnknownText handles text outside a flow: menu buttons and first contact.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return middleware.PrivateOnlyMiddleware(h.text)
}

// UnknownDocument answers non-text content.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return middleware.PrivateOnlyMiddleware(func(c tele.Context) error {
		in := incoming(c)
		in.Text = ""
		return h.dlg.Unsupported(tghelpers.BuildContext(c), in)
	})
}

// UnknownCallback answers buttons whose endpoint is not registered.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		logger.Warn(tghelpers.BuildContext(c), "tg", "callback.unknown",
			slog.String("cb_key", callbacks.CallbackKey(c)),
		)
		return callbacks.Answer(c, h.cat.T(h.cat.DefaultLanguage(), "malformed_action"))
	}
}

func (h *Handlers) start(c tele.Context) error {
	return h.dlg.Start(tghelpers.BuildContext(c), incoming(c))
}

func (h *Handlers) cancel(c tele.Context) error {
	return h.dlg.Cancel(tghelpers.BuildContext(c), incoming(c))
}

func (h *Handlers) help(c tele.Context) error {
	return h.dlg.Help(tghelpers.BuildContext(c), incoming(c))
}

func (h *Handlers) text(c tele.Context) error {
	return h.dlg.HandleText(tghelpers.BuildContext(c), incoming(c))
}

// callback decodes the pressed action and routes it: search paging to the
// dialogue, everything else to moderation. Malformed tokens only get an
// answer.
func (h *Handlers) callback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	unique, data := callbacks.ParseCallbackData(c.Callback())
	a, err := action.Decode(unique, data)
	if err != nil {
		logger.Warn(ctx, "tg", "callback.malformed",
			slog.String("cb_key", unique),
			slog.String("err", err.Error()),
		)
		return callbacks.Answer(c, h.cat.T(h.cat.DefaultLanguage(), "malformed_action"))
	}

	ctx = tghelpers.Amend(c, func(ctx context.Context) context.Context {
		return withAction(ctx, a)
	})

	in := incoming(c)
	in.Text = ""
	var ans chat.Answer
	switch a.(type) {
	case action.SearchPrev, action.SearchNext:
		ans, err = h.dlg.Callback(ctx, in, a)
	default:
		ans, err = h.mod.Handle(ctx, in, a)
	}
	if ansErr := callbacks.Answer(c, ans.Text, ans.Alert); ansErr != nil {
		logger.Debug(ctx, "tg", "callback.answer_failed", slog.String("err", ansErr.Error()))
	}
	return err
}

// reviewContext tags moderation button presses with the review they act on,
// so every log line of the update carries review_id.
func reviewContext(c tele.Context, ctx context.Context) context.Context {
	cb := c.Callback()
	if cb == nil {
		return ctx
	}
	a, err := action.Decode(callbacks.ParseCallbackData(cb))
	if err != nil {
		return ctx
	}
	return withAction(ctx, a)
}

func withAction(ctx context.Context, a action.Action) context.Context {
	switch v := a.(type) {
	case action.Approve:
		return logger.WithReview(ctx, v.ID)
	case action.Reject:
		return logger.WithReview(ctx, v.ID)
	}
	return ctx
}

func incoming(c tele.Context) chat.Incoming {
	in := chat.Incoming{Text: c.Text()}
	if u := c.Sender(); u != nil {
		in.UserID = u.ID
		in.DisplayName = displayName(u)
	}
	if ch := c.Chat(); ch != nil {
		in.ChatID = ch.ID
	}
	if m := c.Message(); m != nil {
		in.MessageID = m.ID
	}
	return in
}

func displayName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.Username != "":
		return "@" + u.Username
	default:
		return strconv.FormatInt(u.ID, 10)
	}
}
