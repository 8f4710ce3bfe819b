package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler tele.HandlerFunc
	// Description is the menu text shown when no localized text matches.
	Description string
	// Descriptions holds localized menu texts keyed by language code.
	Descriptions map[string]string
	AdminOnly    bool
	Hidden       bool
	Aliases      []string
}

// DescriptionFor returns the menu text for lang.
func (c Command) DescriptionFor(lang string) string {
	if d, ok := c.Descriptions[lang]; ok && d != "" {
		return d
	}
	return c.Description
}
