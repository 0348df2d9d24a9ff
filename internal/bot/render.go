package bot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/aquapure/waterbot/core/telegram/format"
	"github.com/aquapure/waterbot/core/telegram/keyboard"
	"github.com/aquapure/waterbot/internal/conversation"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
)

// Callback uniques. Telebot routes pressed inline buttons by these keys.
const (
	cbPickProduct = "ord_prod"
	cbAddMore     = "ord_add"
	cbRemoveLine  = "ord_rm"
	cbToCheckout  = "ord_checkout"
	cbPickAddress = "ord_addr"
	cbNewAddress  = "ord_addr_new"
	cbPickSlot    = "ord_slot"
	cbPickPayment = "ord_pay"
	cbConfirm     = "ord_confirm"
	cbFlowCancel  = "flow_cancel"

	cbSubProduct = "sub_prod"
	cbSubConfirm = "sub_confirm"
	cbSubSet     = "sub_set"

	cbTrackOrder  = "my_track"
	cbCancelOrder = "my_cancel"
	cbSetDefault  = "addr_def"
	cbAdminMove   = "adm_adv"
)

// esc protects user-typed text rendered inside Markdown message bodies.
// Button labels are plain text and do not need it.
func esc(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1, "")
	if err != nil {
		return s
	}
	return out
}

func cancelBtn() keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: "❌ Cancel", Unique: cbFlowCancel, Data: "cancel"}
}

func chunkBtns(btns []keyboard.InlineBtn, n int) [][]keyboard.InlineBtn {
	var rows [][]keyboard.InlineBtn
	for i := 0; i < len(btns); i += n {
		end := i + n
		if end > len(btns) {
			end = len(btns)
		}
		rows = append(rows, btns[i:end])
	}
	return rows
}

func productListView(v *conversation.ProductList, unique string) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	b.WriteString("💧 *Our water*\n\n")
	btns := make([]keyboard.InlineBtn, 0, len(v.Products))
	for _, p := range v.Products {
		fmt.Fprintf(&b, "*%s* (%d l) — %s\n", p.Name, p.VolumeLiters, format.Money(p.Price))
		btns = append(btns, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s — %s", p.Name, format.Money(p.Price)),
			Unique: unique,
			Data:   strconv.FormatInt(p.ID, 10),
		})
	}
	b.WriteString("\nPick a product to add it to your order.")
	rows := chunkBtns(btns, 1)
	rows = append(rows, []keyboard.InlineBtn{cancelBtn()})
	return b.String(), keyboard.InlineButtonsRows(rows...)
}

func quantityPromptView(v *conversation.QuantityPrompt) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("How many of *%s* (%s each)?\nReply with a number.",
		v.Product.Name, format.Money(v.Product.Price))
	return text, keyboard.ForceReply()
}

func cartView(v *conversation.CartView) (string, *tele.ReplyMarkup) {
	if v.Cart.Empty() {
		return "🛒 Your cart is empty.", keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{{Text: "➕ Add water", Unique: cbAddMore, Data: "list"}},
			[]keyboard.InlineBtn{cancelBtn()},
		)
	}
	var b strings.Builder
	b.WriteString("🛒 *Your cart*\n\n")
	b.WriteString(v.Cart.Summary(format.Money))
	fmt.Fprintf(&b, "\nSubtotal: *%s*", format.Money(v.Subtotal))

	var rows [][]keyboard.InlineBtn
	removeBtns := make([]keyboard.InlineBtn, 0, len(v.Cart.Lines))
	for i := range v.Cart.Lines {
		removeBtns = append(removeBtns, keyboard.InlineBtn{
			Text:   fmt.Sprintf("🗑 %d", i+1),
			Unique: cbRemoveLine,
			Data:   strconv.Itoa(i),
		})
	}
	rows = append(rows, chunkBtns(removeBtns, 4)...)
	rows = append(rows, []keyboard.InlineBtn{
		{Text: "➕ Add more", Unique: cbAddMore, Data: "list"},
		{Text: "✅ Checkout", Unique: cbToCheckout, Data: "go"},
	})
	rows = append(rows, []keyboard.InlineBtn{cancelBtn()})
	return b.String(), keyboard.InlineButtonsRows(rows...)
}

func addressListView(v *conversation.AddressList) (string, *tele.ReplyMarkup) {
	text := "📍 *Where should we deliver?*"
	btns := make([]keyboard.InlineBtn, 0, len(v.Addresses)+1)
	for _, a := range v.Addresses {
		label := a.Line
		if a.Label != "" {
			label = a.Label + ": " + a.Line
		}
		if a.IsDefault {
			label = "⭐ " + label
		}
		btns = append(btns, keyboard.InlineBtn{
			Text:   label,
			Unique: cbPickAddress,
			Data:   strconv.FormatInt(a.ID, 10),
		})
	}
	rows := chunkBtns(btns, 1)
	rows = append(rows, []keyboard.InlineBtn{{Text: "➕ New address", Unique: cbNewAddress, Data: "new"}})
	rows = append(rows, []keyboard.InlineBtn{cancelBtn()})
	return text, keyboard.InlineButtonsRows(rows...)
}

func slotListView(v *conversation.SlotList) (string, *tele.ReplyMarkup) {
	text := "🚚 *Pick a delivery window*"
	btns := make([]keyboard.InlineBtn, 0, len(v.Slots))
	for _, s := range v.Slots {
		btns = append(btns, keyboard.InlineBtn{
			Text:   s.Label(),
			Unique: cbPickSlot,
			Data:   fmt.Sprintf("%d:%d:%d", s.Date.Unix(), s.StartHour, s.EndHour),
		})
	}
	rows := chunkBtns(btns, 2)
	rows = append(rows, []keyboard.InlineBtn{cancelBtn()})
	return text, keyboard.InlineButtonsRows(rows...)
}

func paymentPromptView(v *conversation.PaymentPrompt) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf("💳 *How would you like to pay?*\nTotal: *%s*\nYour points: %s",
		format.Money(v.Total), format.Money(v.LoyaltyBalance))
	rows := [][]keyboard.InlineBtn{
		{
			{Text: "💵 Cash", Unique: cbPickPayment, Data: string(models.PayCash)},
			{Text: "💳 Card", Unique: cbPickPayment, Data: string(models.PayCard)},
		},
		{{Text: "🎁 Loyalty points", Unique: cbPickPayment, Data: string(models.PayLoyalty)}},
		{cancelBtn()},
	}
	return text, keyboard.InlineButtonsRows(rows...)
}

func summaryView(v *conversation.OrderSummary) (string, *tele.ReplyMarkup) {
	var b strings.Builder
	b.WriteString("📋 *Order summary*\n\n")
	b.WriteString(v.Cart.Summary(format.Money))
	fmt.Fprintf(&b, "\nDelivery to: %s\n", esc(v.Address.Line))
	fmt.Fprintf(&b, "Window: %s\n", v.Slot.Label())
	fmt.Fprintf(&b, "Delivery fee: %s\n", format.Money(v.Fee))
	fmt.Fprintf(&b, "Payment: %s\n", paymentLabel(v.Payment))
	fmt.Fprintf(&b, "\nTotal: *%s*", format.Money(v.Total))
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "✅ Confirm order", Unique: cbConfirm, Data: "go"}},
		[]keyboard.InlineBtn{cancelBtn()},
	)
	return b.String(), markup
}

func placedView(v *conversation.Placed) string {
	return fmt.Sprintf("✅ Order *%s* is in. We'll keep you posted.", v.Order.Number)
}

func subscriptionSummaryView(v *conversation.SubscriptionSummary) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf(
		"🔄 *Subscription summary*\n\n%s x%d every %d day(s)\nPer delivery: *%s*",
		v.Draft.ProductName, v.Draft.Quantity, v.Draft.FrequencyDays, format.Money(v.PerDelivery),
	)
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "✅ Subscribe", Unique: cbSubConfirm, Data: "go"}},
		[]keyboard.InlineBtn{cancelBtn()},
	)
	return text, markup
}

func subscriptionPlacedView(v *conversation.SubscriptionPlaced) string {
	s := v.Subscription
	return fmt.Sprintf(
		"✅ Subscribed! *%s* x%d every %d day(s).\nFirst delivery: %s.",
		s.ProductName, s.Quantity, s.FrequencyDays, s.NextDelivery.Format("02.01.2006"),
	)
}

func subscriptionsView(subs []models.Subscription) (string, *tele.ReplyMarkup) {
	if len(subs) == 0 {
		return "You have no subscriptions yet. Try /subscribe.", nil
	}
	var b strings.Builder
	b.WriteString("🔄 *Your subscriptions*\n\n")
	var rows [][]keyboard.InlineBtn
	for i, s := range subs {
		fmt.Fprintf(&b, "%d. %s x%d every %d day(s) — %s\n", i+1, s.ProductName, s.Quantity, s.FrequencyDays, s.Status)
		if s.Status == models.SubActive {
			fmt.Fprintf(&b, "   next delivery %s\n", s.NextDelivery.Format("02.01.2006"))
		}
		id := strconv.FormatInt(s.ID, 10)
		switch s.Status {
		case models.SubActive:
			rows = append(rows, []keyboard.InlineBtn{
				{Text: fmt.Sprintf("⏸ Pause %d", i+1), Unique: cbSubSet, Data: id + ":" + string(models.SubPaused)},
				{Text: fmt.Sprintf("🚫 Cancel %d", i+1), Unique: cbSubSet, Data: id + ":" + string(models.SubCancelled)},
			})
		case models.SubPaused:
			rows = append(rows, []keyboard.InlineBtn{
				{Text: fmt.Sprintf("▶️ Resume %d", i+1), Unique: cbSubSet, Data: id + ":" + string(models.SubActive)},
				{Text: fmt.Sprintf("🚫 Cancel %d", i+1), Unique: cbSubSet, Data: id + ":" + string(models.SubCancelled)},
			})
		}
	}
	return b.String(), keyboard.InlineButtonsRows(rows...)
}

func ordersView(orders []models.Order) (string, *tele.ReplyMarkup) {
	if len(orders) == 0 {
		return "You have no orders yet. Try /order.", nil
	}
	var b strings.Builder
	b.WriteString("📦 *Your recent orders*\n\n")
	var rows [][]keyboard.InlineBtn
	for i, o := range orders {
		fmt.Fprintf(&b, "%d. *%s* — %s, %s\n", i+1, o.Number, service.StatusLabel(o.Status), format.Money(o.TotalAmount))
		id := strconv.FormatInt(o.ID, 10)
		row := []keyboard.InlineBtn{
			{Text: fmt.Sprintf("🔎 Track %d", i+1), Unique: cbTrackOrder, Data: id},
		}
		if models.CanTransition(o.Status, models.OrderCancelled) {
			row = append(row, keyboard.InlineBtn{Text: fmt.Sprintf("🚫 Cancel %d", i+1), Unique: cbCancelOrder, Data: id})
		}
		rows = append(rows, row)
	}
	return b.String(), keyboard.InlineButtonsRows(rows...)
}

func trackView(info *models.TrackingInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 *%s* — %s\n", info.OrderNumber, info.Status)
	fmt.Fprintf(&b, "Delivery to: %s\n", esc(info.Address))
	fmt.Fprintf(&b, "Window: %s\n\n", info.Slot)
	for _, ev := range info.Events {
		fmt.Fprintf(&b, "• %s — %s\n", ev.At.Format("02.01 15:04"), ev.Description)
	}
	return b.String()
}

func loyaltyView(balance int64, history []models.LoyaltyTransaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎁 *Loyalty points*\nBalance: *%s*\n", format.Money(balance))
	if len(history) > 0 {
		b.WriteString("\nRecent activity:\n")
		for _, tx := range history {
			sign := "+"
			if tx.Kind == "debit" {
				sign = "-"
			}
			fmt.Fprintf(&b, "• %s%s — %s\n", sign, format.Money(tx.Points), tx.Reason)
		}
	}
	return b.String()
}

func addressesView(addrs []models.Address) (string, *tele.ReplyMarkup) {
	if len(addrs) == 0 {
		return "No saved addresses yet. They are added during checkout.", nil
	}
	var b strings.Builder
	b.WriteString("📍 *Your addresses*\n\n")
	var btns []keyboard.InlineBtn
	for i, a := range addrs {
		marker := ""
		if a.IsDefault {
			marker = " ⭐"
		}
		label := a.Line
		if a.Label != "" {
			label = a.Label + ": " + a.Line
		}
		fmt.Fprintf(&b, "%d. %s%s\n", i+1, esc(label), marker)
		if !a.IsDefault {
			btns = append(btns, keyboard.InlineBtn{
				Text:   fmt.Sprintf("⭐ Make %d default", i+1),
				Unique: cbSetDefault,
				Data:   strconv.FormatInt(a.ID, 10),
			})
		}
	}
	b.WriteString("\nThe starred address receives subscription deliveries.")
	if len(btns) == 0 {
		return b.String(), nil
	}
	return b.String(), keyboard.InlineButtonsRows(chunkBtns(btns, 1)...)
}

func paymentLabel(m models.PaymentMethod) string {
	switch m {
	case models.PayCash:
		return "cash on delivery"
	case models.PayCard:
		return "card"
	case models.PayLoyalty:
		return "loyalty points"
	default:
		return string(m)
	}
}
