package middlewares

import (
	"strings"

	"github.com/Badsnus/mediashare-bot/cmd/bot"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/nlypage/intele"
	tele "gopkg.in/telebot.v3"
	"gopkg.in/telebot.v3/layout"
)

type Handler struct {
	layout *layout.Layout
	logger *types.Logger
	input  *intele.InputManager
}

func New(b *bot.Bot) *Handler {
	return &Handler{
		layout: b.Layout,
		logger: b.Logger,
		input:  b.Input,
	}
}

// Private drops updates that do not come from a private chat with the bot.
// Plan groups are managed by the bot, so their messages must not reach the menu handlers.
func (h Handler) Private(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Chat() != nil && c.Chat().Type != tele.ChatPrivate {
			return nil
		}
		return next(c)
	}
}

// ResetInputOnBack middleware clears the input state when the back button is pressed.
func (h Handler) ResetInputOnBack(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			unique := c.Callback().Unique
			if strings.Contains(unique, "back") || strings.Contains(unique, "cancel") {
				h.input.Cancel(c.Sender().ID)
			}
		}
		if c.Message() != nil {
			if strings.HasPrefix(c.Message().Text, "/") {
				h.input.Cancel(c.Sender().ID)
			}
		}

		return next(c)
	}
}
