package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/aquapure/waterbot/core/telegram/callbacks"
	"github.com/aquapure/waterbot/core/telegram/format"
	tghelpers "github.com/aquapure/waterbot/core/telegram/helpers"
	"github.com/aquapure/waterbot/core/telegram/keyboard"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
)

const adminQueueLimit = 10

// pipelineStatuses is the fulfilment queue in pipeline order.
var pipelineStatuses = []models.OrderStatus{
	models.OrderPending,
	models.OrderConfirmed,
	models.OrderPreparing,
	models.OrderOutForDelivery,
}

// pendingView renders the fulfilment queue with one advance button per order.
func (a *App) pendingView(ctx context.Context) (string, *tele.ReplyMarkup, error) {
	var b strings.Builder
	b.WriteString("🛠 *Fulfilment queue*\n")
	var rows [][]keyboard.InlineBtn
	total := 0
	for _, st := range pipelineStatuses {
		orders, err := a.orders.ListByStatus(ctx, st, adminQueueLimit)
		if err != nil {
			return "", nil, service.Collab("list orders", err)
		}
		if len(orders) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n*%s*\n", service.StatusLabel(st))
		for _, o := range orders {
			total++
			fmt.Fprintf(&b, "• %s — %s\n", o.Number, format.Money(o.TotalAmount))
			id := strconv.FormatInt(o.ID, 10)
			next := pipelineNext[o.Status]
			row := []keyboard.InlineBtn{{
				Text:   fmt.Sprintf("➡️ %s → %s", o.Number, service.StatusLabel(next)),
				Unique: cbAdminMove,
				Data:   id + ":" + string(next),
			}}
			if models.CanTransition(o.Status, models.OrderCancelled) {
				row = append(row, keyboard.InlineBtn{
					Text:   "🚫",
					Unique: cbAdminMove,
					Data:   id + ":" + string(models.OrderCancelled),
				})
			}
			rows = append(rows, row)
		}
	}
	if total == 0 {
		return "🛠 The fulfilment queue is empty.", nil, nil
	}
	if len(rows) == 0 {
		return b.String(), nil, nil
	}
	return b.String(), keyboard.InlineButtonsRows(rows...), nil
}

// cbAdminMoveHandler advances one order along the pipeline.
func (a *App) cbAdminMoveHandler(c tele.Context) error {
	if c.Sender().ID != a.cfg.Core.Telegram.AdminID {
		return tghelpers.SendMD(c, "This action is for staff only.")
	}
	ctx := tghelpers.BuildContext(c)
	parts, err := callbacks.PayloadParts(c, ":")
	if err != nil || len(parts) != 2 {
		return a.renderErr(c, service.Validatef("callback", "malformed payload"))
	}
	orderID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return a.renderErr(c, service.Validatef("callback", "malformed order id"))
	}
	to := models.OrderStatus(parts[1])

	var order *models.Order
	if to == models.OrderCancelled {
		// Cancellation compensates stock and loyalty, so route it through
		// the same path users take.
		o, err := a.orders.ByID(ctx, orderID)
		if err != nil {
			return a.renderErr(c, service.Collab("load order", err))
		}
		if o == nil {
			return a.renderErr(c, service.Validatef("order", "order %d not found", orderID))
		}
		order, err = a.checkout.CancelOrder(ctx, o.UserID, o.ID)
		if err != nil {
			return a.renderErr(c, err)
		}
	} else {
		order, err = a.checkout.AdvanceOrder(ctx, orderID, to)
		if err != nil {
			return a.renderErr(c, err)
		}
	}
	_ = tghelpers.SendMD(c, fmt.Sprintf("Order *%s* is now: %s.", order.Number, service.StatusLabel(order.Status)))

	text, markup, err := a.pendingView(ctx)
	if err != nil {
		return a.renderErr(c, err)
	}
	if markup == nil {
		return tghelpers.SendMD(c, text)
	}
	return tghelpers.SendMD(c, text, markup)
}
