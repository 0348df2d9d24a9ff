package conversation

import (
	"github.com/aquapure/waterbot/internal/cart"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/slots"
)

// View models returned by the engine. The bot layer turns these into
// messages and keyboards; tests assert on them directly.

// ProductList offers the active catalog.
type ProductList struct {
	Products []models.Product
}

// QuantityPrompt asks how many units of one product to add.
type QuantityPrompt struct {
	Product models.Product
}

// CartView shows the current cart.
type CartView struct {
	Cart     cart.Cart
	Subtotal int64
}

// AddressList offers the user's saved addresses.
type AddressList struct {
	Addresses []models.Address
}

// SlotList offers bookable delivery windows.
type SlotList struct {
	Slots []slots.Slot
}

// PaymentPrompt offers payment methods with the user's point balance.
type PaymentPrompt struct {
	LoyaltyBalance int64
	Total          int64
}

// OrderSummary is the final confirmation screen.
type OrderSummary struct {
	Cart    cart.Cart
	Address models.Address
	Slot    slots.Slot
	Payment models.PaymentMethod
	Fee     int64
	Total   int64
}

// Placed reports a committed order.
type Placed struct {
	Order *models.Order
}

// SubscriptionPlaced reports a created subscription.
type SubscriptionPlaced struct {
	Subscription *models.Subscription
}
