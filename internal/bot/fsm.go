package bot

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/aquapure/waterbot/core/telegram/helpers"
	"github.com/aquapure/waterbot/core/telegram/keyboard"
	"github.com/aquapure/waterbot/core/telegram/state"
	"github.com/aquapure/waterbot/internal/conversation"
)

// registerStepHandlers binds the free-text conversation steps. All other
// input during a flow is handled by inline buttons.
func (a *App) registerStepHandlers() {
	state.RegisterHandler(conversation.StepQuantity.State(), a.stepQuantity)
	state.RegisterHandler(conversation.StepNewAddress.State(), a.stepNewAddress)
	state.RegisterHandler(conversation.StepSubQuantity.State(), a.stepSubQuantity)
	state.RegisterHandler(conversation.StepSubFrequency.State(), a.stepSubFrequency)
}

func (a *App) stepQuantity(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	view, err := a.engine.SetQuantity(ctx, c.Sender().ID, c.Text())
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := cartView(view)
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) stepNewAddress(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	view, err := a.engine.SaveAddress(ctx, c.Sender().ID, u, c.Text())
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := slotListView(view)
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) stepSubFrequency(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := a.engine.SetSubFrequency(ctx, c.Sender().ID, c.Text()); err != nil {
		return a.renderErr(c, err)
	}
	return tghelpers.SendMD(c,
		"How many units per delivery?\nReply with a number.",
		keyboard.ForceReply(),
	)
}

func (a *App) stepSubQuantity(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	view, err := a.engine.SetSubQuantity(ctx, c.Sender().ID, c.Text())
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := subscriptionSummaryView(view)
	return tghelpers.SendMD(c, text, markup)
}
