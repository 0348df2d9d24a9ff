package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/aquapure/waterbot/core/telegram"
	"github.com/aquapure/waterbot/core/telegram/commands"
	tghelpers "github.com/aquapure/waterbot/core/telegram/helpers"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
)

const recentOrdersLimit = 5

// userResolver adapts the user store to the shared CurrentUser helper.
type userResolver struct {
	users service.UserStore
}

func (r userResolver) GetUserByTelegramID(ctx context.Context, tgID int64) (*models.User, error) {
	return r.users.ByTelegramID(ctx, tgID)
}

// currentUser resolves the sender to a domain user, registering first-time
// visitors on the fly.
func (a *App) currentUser(c tele.Context) (*models.User, error) {
	ctx := tghelpers.BuildContext(c)
	sender := c.Sender()
	u, err := tghelpers.CurrentUser(ctx, userResolver{users: a.users}, sender.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		u = &models.User{
			TelegramID:   sender.ID,
			Username:     sender.Username,
			FirstName:    sender.FirstName,
			LanguageCode: sender.LanguageCode,
		}
		if err := a.users.Upsert(ctx, u); err != nil {
			return nil, err
		}
	} else {
		_ = a.users.TouchActivity(ctx, sender.ID)
	}
	return u, nil
}

// renderErr turns a domain error into a user-facing message. The error is
// returned back to the router so it still lands in the handler summary log.
func (a *App) renderErr(c tele.Context, err error) error {
	var (
		validation *service.ValidationError
		stock      *service.StockError
		payment    *service.PaymentError
	)
	switch {
	case errors.Is(err, service.ErrSessionExpired):
		_ = tghelpers.SendMD(c, "This conversation has expired. Start over with /order.")
	case errors.Is(err, service.ErrNoSlotAvailable):
		_ = tghelpers.SendMD(c, "😔 No delivery windows are open right now. Please try again later.")
	case errors.Is(err, service.ErrNoCourierAvailable):
		_ = tghelpers.SendMD(c, "😔 All couriers are booked for that window. Pick another one.")
	case errors.As(err, &stock):
		_ = tghelpers.SendMD(c, fmt.Sprintf(
			"*%s* is short on stock: %d requested, %d left. Adjust your cart.",
			stock.Name, stock.Requested, stock.Available,
		))
	case errors.As(err, &payment):
		_ = tghelpers.SendMD(c, "Payment did not go through: "+payment.Reason+". Pick another method.")
	case errors.As(err, &validation):
		_ = tghelpers.SendMD(c, validation.Reason)
	default:
		_ = tghelpers.SendMD(c, "Something went wrong, please try again.")
	}
	return err
}

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start the bot",
	})
	reg.RegisterCommand("/order", commands.Command{
		Handler:     a.handleOrder,
		Description: "Order water",
		Aliases:     []string{"buy"},
	})
	reg.RegisterCommand("/cart", commands.Command{
		Handler:     a.handleCart,
		Description: "Show the current cart",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Abandon the current conversation",
	})
	reg.RegisterCommand("/myorders", commands.Command{
		Handler:     a.handleMyOrders,
		Description: "Recent orders",
	})
	reg.RegisterCommand("/track", commands.Command{
		Handler:     a.handleTrack,
		Description: "Track an order by number",
	})
	reg.RegisterCommand("/subscribe", commands.Command{
		Handler:     a.handleSubscribe,
		Description: "Set up recurring delivery",
	})
	reg.RegisterCommand("/subscriptions", commands.Command{
		Handler:     a.handleSubscriptions,
		Description: "Manage subscriptions",
	})
	reg.RegisterCommand("/loyalty", commands.Command{
		Handler:     a.handleLoyalty,
		Description: "Loyalty points balance",
	})
	reg.RegisterCommand("/addresses", commands.Command{
		Handler:     a.handleAddresses,
		Description: "Saved delivery addresses",
	})
	reg.RegisterCommand("/pending", commands.Command{
		Handler:     a.handlePending,
		Description: "Orders awaiting fulfilment",
		AdminOnly:   true,
		Hidden:      true,
	})
}

func (a *App) handleStart(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	name := u.FirstName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf(
		"Hello, %s! 👋\nI deliver drinking water to your door.\n\n"+
			"/order — order water\n"+
			"/subscribe — recurring delivery\n"+
			"/myorders — track your orders\n"+
			"/loyalty — your points",
		name,
	)
	return tghelpers.SendMD(c, text)
}

func (a *App) handleOrder(c tele.Context) error {
	if _, err := a.currentUser(c); err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	a.engine.Begin(c.Sender().ID)
	view, err := a.engine.StartCheckout(ctx)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := productListView(view, cbPickProduct)
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) handleCart(c tele.Context) error {
	view, err := a.engine.Cart(c.Sender().ID)
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			return tghelpers.SendMD(c, "No order in progress. Start one with /order.")
		}
		return a.renderErr(c, err)
	}
	text, markup := cartView(view)
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) handleCancel(c tele.Context) error {
	a.engine.CancelFlow(c.Sender().ID)
	return tghelpers.SendMD(c, "Cancelled. Nothing was ordered.")
}

func (a *App) handleMyOrders(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	orders, err := a.orders.ListByUser(ctx, u.ID, recentOrdersLimit)
	if err != nil {
		return a.renderErr(c, service.Collab("list orders", err))
	}
	text, markup := ordersView(orders)
	if markup == nil {
		return tghelpers.SendMD(c, text)
	}
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) handleTrack(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	number := strings.TrimSpace(c.Message().Payload)
	if number == "" {
		return tghelpers.SendMD(c, "Send the order number: `/track ORD...`\nOr pick one from /myorders.")
	}
	order, err := a.orders.ByNumber(ctx, number)
	if err != nil {
		return a.renderErr(c, service.Collab("load order", err))
	}
	if order == nil || order.UserID != u.ID {
		return a.renderErr(c, service.Validatef("order", "order %s not found", number))
	}
	info, err := a.checkout.Track(ctx, u.ID, order.ID)
	if err != nil {
		return a.renderErr(c, err)
	}
	return tghelpers.SendMD(c, trackView(info))
}

func (a *App) handleSubscribe(c tele.Context) error {
	if _, err := a.currentUser(c); err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	a.engine.BeginSubscription(c.Sender().ID)
	view, err := a.engine.StartCheckout(ctx)
	if err != nil {
		return a.renderErr(c, err)
	}
	_, markup := productListView(view, cbSubProduct)
	return tghelpers.SendMD(c, "🔄 *Recurring delivery*\nPick the product to receive regularly.", markup)
}

func (a *App) handleSubscriptions(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	subs, err := a.engine.Subscriptions(ctx, u)
	if err != nil {
		return a.renderErr(c, err)
	}
	text, markup := subscriptionsView(subs)
	if markup == nil {
		return tghelpers.SendMD(c, text)
	}
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) handleLoyalty(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	balance, err := a.loyalty.Balance(ctx, u.ID)
	if err != nil {
		return a.renderErr(c, service.Collab("loyalty balance", err))
	}
	history, err := a.loyalty.History(ctx, u.ID, recentOrdersLimit)
	if err != nil {
		return a.renderErr(c, service.Collab("loyalty history", err))
	}
	return tghelpers.SendMD(c, loyaltyView(balance, history))
}

func (a *App) handleAddresses(c tele.Context) error {
	u, err := a.currentUser(c)
	if err != nil {
		return a.renderErr(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	addrs, err := a.addresses.ListByUser(ctx, u.ID)
	if err != nil {
		return a.renderErr(c, service.Collab("list addresses", err))
	}
	text, markup := addressesView(addrs)
	if markup == nil {
		return tghelpers.SendMD(c, text)
	}
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) handlePending(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text, markup, err := a.pendingView(ctx)
	if err != nil {
		return a.renderErr(c, err)
	}
	if markup == nil {
		return tghelpers.SendMD(c, text)
	}
	return tghelpers.SendMD(c, text, markup)
}

var pipelineNext = map[models.OrderStatus]models.OrderStatus{
	models.OrderPending:        models.OrderConfirmed,
	models.OrderConfirmed:      models.OrderPreparing,
	models.OrderPreparing:      models.OrderOutForDelivery,
	models.OrderOutForDelivery: models.OrderDelivered,
}
