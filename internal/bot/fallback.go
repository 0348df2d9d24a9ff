package bot

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/aquapure/waterbot/core/telegram/helpers"
	"github.com/aquapure/waterbot/core/telegram/ui"
)

var _ ui.FallbackProvider = (*App)(nil)

// UnknownText nudges users who type outside a conversation toward commands.
func (a *App) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendMD(c, "I didn't catch that. Try /order to buy water or /start for the full list.")
	}
}

// UnknownDocument rejects file uploads.
func (a *App) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendMD(c, "I can't do anything with files. Try /order instead.")
	}
}

// UnknownCallback answers button presses whose flow is long gone.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "This button has expired. Start over with /order."})
	}
}
