package bot

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquapure/waterbot/internal/cart"
	"github.com/aquapure/waterbot/internal/conversation"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/slots"
)

func TestSlotListViewCarriesStructuredPayload(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	v := &conversation.SlotList{Slots: []slots.Slot{
		{Date: date, StartHour: 9, EndHour: 11},
		{Date: date, StartHour: 11, EndHour: 13},
	}}

	_, markup := slotListView(v)
	require.NotNil(t, markup)
	// Two slots per row plus the cancel row.
	require.Len(t, markup.InlineKeyboard, 2)

	btn := markup.InlineKeyboard[0][0]
	assert.Equal(t, cbPickSlot, btn.Unique)
	assert.Equal(t, fmt.Sprintf("%d:9:11", date.Unix()), btn.Data)
	assert.Equal(t, "02.03.2026 09:00-11:00", btn.Text)
}

func TestCartViewEmpty(t *testing.T) {
	text, markup := cartView(&conversation.CartView{})
	assert.Contains(t, text, "empty")
	require.NotNil(t, markup)
	assert.Equal(t, cbAddMore, markup.InlineKeyboard[0][0].Unique)
}

func TestCartViewButtons(t *testing.T) {
	var c cart.Cart
	c.Add(cart.Line{ProductID: 1, Name: "Water 19L", UnitPrice: 25000, Quantity: 2})
	c.Add(cart.Line{ProductID: 2, Name: "Water 5L", UnitPrice: 9000, Quantity: 1})
	v := &conversation.CartView{Cart: c, Subtotal: c.Subtotal()}

	text, markup := cartView(v)
	assert.Contains(t, text, "Water 19L")
	assert.Contains(t, text, "Subtotal")
	require.NotNil(t, markup)

	// One row of remove buttons, one action row, one cancel row.
	require.Len(t, markup.InlineKeyboard, 3)
	removeRow := markup.InlineKeyboard[0]
	require.Len(t, removeRow, 2)
	assert.Equal(t, cbRemoveLine, removeRow[0].Unique)
	assert.Equal(t, "0", removeRow[0].Data)
	assert.Equal(t, "1", removeRow[1].Data)

	actionRow := markup.InlineKeyboard[1]
	assert.Equal(t, cbAddMore, actionRow[0].Unique)
	assert.Equal(t, cbToCheckout, actionRow[1].Unique)
}

func TestOrdersViewCancelOnlyWhenAllowed(t *testing.T) {
	orders := []models.Order{
		{ID: 10, Number: "A-1", Status: models.OrderPending, TotalAmount: 30000},
		{ID: 11, Number: "A-2", Status: models.OrderDelivered, TotalAmount: 30000},
	}

	_, markup := ordersView(orders)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)

	pendingRow := markup.InlineKeyboard[0]
	require.Len(t, pendingRow, 2)
	assert.Equal(t, cbTrackOrder, pendingRow[0].Unique)
	assert.Equal(t, "10", pendingRow[0].Data)
	assert.Equal(t, cbCancelOrder, pendingRow[1].Unique)

	deliveredRow := markup.InlineKeyboard[1]
	require.Len(t, deliveredRow, 1)
	assert.Equal(t, cbTrackOrder, deliveredRow[0].Unique)
}

func TestSubscriptionsViewControls(t *testing.T) {
	subs := []models.Subscription{
		{ID: 3, ProductName: "Water 19L", Quantity: 2, FrequencyDays: 7, Status: models.SubActive, NextDelivery: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
		{ID: 4, ProductName: "Water 5L", Quantity: 1, FrequencyDays: 14, Status: models.SubPaused},
	}

	_, markup := subscriptionsView(subs)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)

	activeRow := markup.InlineKeyboard[0]
	assert.Equal(t, "3:paused", activeRow[0].Data)
	assert.Equal(t, "3:cancelled", activeRow[1].Data)

	pausedRow := markup.InlineKeyboard[1]
	assert.Equal(t, "4:active", pausedRow[0].Data)
	assert.Equal(t, "4:cancelled", pausedRow[1].Data)
}

func TestSummaryViewEscapesAddress(t *testing.T) {
	var c cart.Cart
	c.Add(cart.Line{ProductID: 1, Name: "Water 19L", UnitPrice: 25000, Quantity: 1})
	v := &conversation.OrderSummary{
		Cart:    c,
		Address: models.Address{Line: "12_b Amir Temur st"},
		Slot:    slots.Slot{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), StartHour: 9, EndHour: 11},
		Payment: models.PayCash,
		Fee:     5000,
		Total:   30000,
	}

	text, markup := summaryView(v)
	assert.Contains(t, text, `12\_b Amir Temur st`)
	assert.Contains(t, text, "cash on delivery")
	require.NotNil(t, markup)
	assert.Equal(t, cbConfirm, markup.InlineKeyboard[0][0].Unique)
}
