package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/reviewbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

type menuRecorder struct {
	calls [][]interface{}
	err   error
}

func (m *menuRecorder) SetCommands(opts ...interface{}) error {
	m.calls = append(m.calls, opts)
	return m.err
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:      noop,
		Description:  "Start",
		Descriptions: map[string]string{"ru": "Начать", "en": "Start"},
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:      noop,
		Description:  "Help",
		Descriptions: map[string]string{"ru": "Помощь"},
	})
	reg.RegisterCommand("/chatid", commands.Command{Handler: noop, Description: "id", AdminOnly: true, Hidden: true})
	return reg
}

func TestRegisterCommandRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"})
	reg.RegisterCommand("/empty", commands.Command{Handler: noop})
	reg.RegisterCommand("/nil", commands.Command{Description: "x"})
	assert.Empty(t, reg.Commands())

	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "first"})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "second"})
	_, cmd, ok := reg.LookupCommand("start")
	require.True(t, ok)
	assert.Equal(t, "first", cmd.Description)
}

func TestListCommandsLocalized(t *testing.T) {
	reg := testRegistry()

	assert.Equal(t, []tele.Command{
		{Text: "help", Description: "Help"},
		{Text: "start", Description: "Start"},
	}, reg.ListCommands(true))

	assert.Equal(t, []tele.Command{
		{Text: "help", Description: "Помощь"},
		{Text: "start", Description: "Начать"},
	}, reg.ListCommandsFor("ru", true))

	// Missing translations fall back to the default description.
	assert.Equal(t, "Help", reg.ListCommandsFor("en", true)[0].Description)
	assert.Len(t, reg.ListCommands(false), 3)
	assert.Equal(t, []string{"en", "ru"}, reg.MenuLanguages())
}

func TestInitBotCommandsPerLanguage(t *testing.T) {
	rec := &menuRecorder{}
	InitBotCommands(rec, testRegistry())

	require.Len(t, rec.calls, 3)
	assert.Len(t, rec.calls[0], 1)
	assert.Equal(t, "en", rec.calls[1][1])
	assert.Equal(t, "ru", rec.calls[2][1])
}

func TestInitBotCommandsStopsOnFailure(t *testing.T) {
	rec := &menuRecorder{err: errors.New("unauthorized")}
	InitBotCommands(rec, testRegistry())
	assert.Len(t, rec.calls, 1)
}

func TestCallbackRegistration(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("approve", noop))
	assert.Error(t, reg.RegisterCallback("approve", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("approve")
	assert.True(t, ok)
	assert.Equal(t, []string{"approve"}, reg.ListCallbacks())
}
