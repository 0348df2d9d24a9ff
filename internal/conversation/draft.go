package conversation

import (
	"github.com/aquapure/waterbot/internal/cart"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/slots"
)

// CheckoutDraft is the typed payload of an in-flight checkout. It lives in
// the user session and survives commit-time failures intact.
type CheckoutDraft struct {
	Cart cart.Cart

	// PendingProduct is filled while waiting for a quantity reply.
	PendingProduct *models.Product

	AddressID  int64
	Slot       slots.Slot
	SlotChosen bool
	Payment    models.PaymentMethod
}

// SubscriptionDraft is the typed payload of an in-flight subscription setup.
type SubscriptionDraft struct {
	ProductID     int64
	ProductName   string
	UnitPrice     int64
	Quantity      int
	FrequencyDays int
}
