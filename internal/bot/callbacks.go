package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/aquapure/waterbot/core/telegram"
	"github.com/aquapure/waterbot/core/telegram/callbacks"
	tghelpers "github.com/aquapure/waterbot/core/telegram/helpers"
	"github.com/aquapure/waterbot/core/telegram/keyboard"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
)

func (a *App) registerCallbacks(reg *coretelegram.Registry) error {
	handlers := map[string]tele.HandlerFunc{
		cbPickProduct: a.cbPickProductHandler,
		cbAddMore:     a.cbAddMoreHandler,
		cbRemoveLine:  a.cbRemoveLineHandler,
		cbToCheckout:  a.cbToCheckoutHandler,
		cbPickAddress: a.cbPickAddressHandler,
		cbNewAddress:  a.cbNewAddressHandler,
		cbPickSlot:    a.cbPickSlotHandler,
		cbPickPayment: a.cbPickPaymentHandler,
		cbConfirm:     a.cbConfirmHandler,
		cbFlowCancel:  a.cbFlowCancelHandler,
		cbSubProduct:  a.cbSubProductHandler,
		cbSubConfirm:  a.cbSubConfirmHandler,
		cbSubSet:      a.cbSubSetHandler,
		cbTrackOrder:  a.cbTrackOrderHandler,
		cbCancelOrder: a.cbCancelOrderHandler,
		cbSetDefault:  a.cbSetDefaultHandler,
		cbAdminMove:   a.cbAdminMoveHandler,
	}
	for key, h := range handlers {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cbPickProductHandler(c tele.Context) error {
	if _, err := a.currentUser(c); err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	productID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed product id"))
	}
	view, err := a.engine.PickProduct(ctx, c.Sender().ID, productID)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := quantityPromptView(view)
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) cbAddMoreHandler(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	view, err := a.engine.StartCheckout(ctx)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := productListView(view, cbPickProduct)
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbRemoveLineHandler(c tele.Context) error {
	idx, err := callbacks.PayloadInt(c)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed line index"))
	}
	view, err := a.engine.RemoveLine(c.Sender().ID, idx)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := cartView(view)
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbToCheckoutHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	view, err := a.engine.ToCheckout(ctx, c.Sender().ID, u)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := addressListView(view)
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbPickAddressHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	addressID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed address id"))
	}
	view, err := a.engine.PickAddress(ctx, c.Sender().ID, u, addressID)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := slotListView(view)
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbNewAddressHandler(c tele.Context) error {
	if err := a.engine.RequestNewAddress(c.Sender().ID); err != nil {
		return a.renderErr(c, err)
	}
	return tghelpers.SendMD(c,
		"Send your address, optionally with a label:\n`home: 12 Amir Temur st`",
		keyboard.ForceReply(),
	)
}

func (a *App) cbPickSlotHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	parts, err := callbacks.PayloadParts(c, ":")
	if err != nil || len(parts) != 3 {
		return a.renderErr(c, service.Validatef("callback", "malformed slot"))
	}
	dateUnix, err1 := strconv.ParseInt(parts[0], 10, 64)
	startHour, err2 := strconv.Atoi(parts[1])
	endHour, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed slot"))
	}
	view, err := a.engine.PickSlot(ctx, c.Sender().ID, u, dateUnix, startHour, endHour)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := paymentPromptView(view)
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbPickPaymentHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	method := models.PaymentMethod(callbacks.CallbackPayload(c))
	view, err := a.engine.PickPayment(ctx, c.Sender().ID, u, method)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := summaryView(view)
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbConfirmHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	view, err := a.engine.Confirm(ctx, c.Sender().ID, u)
	if err != nil {
		return a.renderErr(c, err)
	}
	return tghelpers.EditOrSendMD(c, placedView(view))
}

func (a *App) cbFlowCancelHandler(c tele.Context) error {
	a.engine.CancelFlow(c.Sender().ID)
	return tghelpers.EditOrSendMD(c, "Cancelled. Nothing was ordered.")
}

func (a *App) cbSubProductHandler(c tele.Context) error {
	if _, err := a.currentUser(c); err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	productID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed product id"))
	}
	view, err := a.engine.PickSubProduct(ctx, c.Sender().ID, productID)
	if err != nil {
		return a.renderErr(c, err)
	}
	text := "How often should we deliver *" + view.Product.Name + "*?\n" +
		"Reply with the number of days between deliveries (1-90)."
	return tghelpers.SendMD(c, text, keyboard.ForceReply())
}

func (a *App) cbSubConfirmHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	view, err := a.engine.ConfirmSubscription(ctx, c.Sender().ID, u)
	if err != nil {
		return a.renderErr(c, err)
	}
	return tghelpers.EditOrSendMD(c, subscriptionPlacedView(view))
}

func (a *App) cbSubSetHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	parts, err := callbacks.PayloadParts(c, ":")
	if err != nil || len(parts) != 2 {
		return a.renderErr(c, service.Validatef("callback", "malformed payload"))
	}
	subID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed subscription id"))
	}
	if _, err := a.engine.SetSubscriptionStatus(ctx, u, subID, models.SubscriptionStatus(parts[1])); err != nil {
		return a.renderErr(c, err)
	}
	subs, err := a.engine.Subscriptions(ctx, u)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := subscriptionsView(subs)
	if markup == nil {
		return tghelpers.EditOrSendMD(c, text)
	}
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbTrackOrderHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	orderID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed order id"))
	}
	info, err := a.checkout.Track(ctx, u.ID, orderID)
	if err != nil {
		return a.renderErr(c, err)
	}
	return tghelpers.SendMD(c, trackView(info))
}

func (a *App) cbCancelOrderHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	orderID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed order id"))
	}
	order, err := a.checkout.CancelOrder(ctx, u.ID, orderID)
	if err != nil {
		return a.renderErr(c, err)
	}
	return tghelpers.SendMD(c, "Order *"+order.Number+"* cancelled. Any points spent are back on your balance.")
}

func (a *App) cbSetDefaultHandler(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	addressID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed address id"))
	}
	if err := a.addresses.SetDefault(ctx, u.ID, addressID); err != nil {
		return a.renderErr(c, service.Collab("set default address", err))
	}
	addrs, err := a.addresses.ListByUser(ctx, u.ID)
	if err != nil {
		return a.renderErr(c, service.Collab("list addresses", err))
	}
	text, markup := addressesView(addrs)
	if markup == nil {
		return tghelpers.EditOrSendMD(c, text)
	}
	return tghelpers.EditOrSendMD(c, text, markup)
}
