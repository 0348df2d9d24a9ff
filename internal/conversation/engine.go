package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aquapure/waterbot/core/telegram/state"
	"github.com/aquapure/waterbot/internal/cart"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
	"github.com/aquapure/waterbot/internal/slots"
)

const (
	maxLineQuantity  = 100
	minFrequencyDays = 1
	maxFrequencyDays = 90
	minAddressLen    = 5
)

// OrderPlacer commits finished checkout drafts.
type OrderPlacer interface {
	Quote(ctx context.Context, userID, addressID int64, c *cart.Cart) (fee, total int64, err error)
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*models.Order, error)
}

// Engine drives the checkout and subscription dialogs. Sessions are keyed by
// Telegram id; the collaborators speak internal user ids.
type Engine struct {
	mgr       state.Manager
	catalog   service.ProductCatalog
	addresses service.AddressBook
	slots     service.SlotService
	orders    OrderPlacer
	subs      service.SubscriptionStore
	loyalty   service.LoyaltyLedger
	now       func() time.Time
}

// EngineDeps bundles the collaborators for NewEngine.
type EngineDeps struct {
	Manager   state.Manager
	Catalog   service.ProductCatalog
	Addresses service.AddressBook
	Slots     service.SlotService
	Orders    OrderPlacer
	Subs      service.SubscriptionStore
	Loyalty   service.LoyaltyLedger
	Now       func() time.Time
}

// NewEngine builds the dialog engine.
func NewEngine(d EngineDeps) *Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{
		mgr:       d.Manager,
		catalog:   d.Catalog,
		addresses: d.Addresses,
		slots:     d.Slots,
		orders:    d.Orders,
		subs:      d.Subs,
		loyalty:   d.Loyalty,
		now:       d.Now,
	}
}

// Step returns the user's current dialog position.
func (e *Engine) Step(tgID int64) Step {
	return Step(e.mgr.GetState(tgID))
}

// advance applies an action through the transition table and persists the
// resulting step. A rejected move surfaces a generic message; the step and
// action land in the logs through the error's cause.
func (e *Engine) advance(tgID int64, action Action) error {
	next, err := Next(e.Step(tgID), action)
	if err != nil {
		return &service.ValidationError{
			Field:  "step",
			Reason: "That action is not available right now. Use /cancel to start over.",
			Cause:  err,
		}
	}
	e.mgr.SetState(tgID, next.State())
	return nil
}

func (e *Engine) checkoutDraft(tgID int64) (*CheckoutDraft, error) {
	raw, ok := e.mgr.GetDraft(tgID)
	if !ok {
		return nil, service.ErrSessionExpired
	}
	draft, ok := raw.(*CheckoutDraft)
	if !ok {
		return nil, service.ErrSessionExpired
	}
	return draft, nil
}

func (e *Engine) subDraft(tgID int64) (*SubscriptionDraft, error) {
	raw, ok := e.mgr.GetDraft(tgID)
	if !ok {
		return nil, service.ErrSessionExpired
	}
	draft, ok := raw.(*SubscriptionDraft)
	if !ok {
		return nil, service.ErrSessionExpired
	}
	return draft, nil
}

// StartCheckout opens a fresh checkout, discarding any previous dialog.
func (e *Engine) StartCheckout(ctx context.Context) (*ProductList, error) {
	products, err := e.catalog.ListActive(ctx)
	if err != nil {
		return nil, service.Collab("list products", err)
	}
	if len(products) == 0 {
		return nil, service.Validatef("catalog", "no products available")
	}
	return &ProductList{Products: products}, nil
}

// Begin resets the session into the cart step with an empty draft.
func (e *Engine) Begin(tgID int64) {
	e.mgr.ClearState(tgID)
	e.mgr.SetState(tgID, StepCart.State())
	e.mgr.SetDraft(tgID, &CheckoutDraft{})
}

// PickProduct stashes the chosen product and asks for a quantity.
func (e *Engine) PickProduct(ctx context.Context, tgID, productID int64) (*QuantityPrompt, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	product, err := e.catalog.Get(ctx, productID)
	if err != nil {
		return nil, service.Collab("load product", err)
	}
	if product == nil || !product.Active {
		return nil, service.Validatef("product", "product %d is not available", productID)
	}
	if err := e.advance(tgID, ActionPickProduct); err != nil {
		return nil, err
	}
	draft.PendingProduct = product
	return &QuantityPrompt{Product: *product}, nil
}

// SetQuantity parses the quantity reply and adds a cart line. Repeated picks
// of the same product always append a new line.
func (e *Engine) SetQuantity(ctx context.Context, tgID int64, text string) (*CartView, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	if draft.PendingProduct == nil {
		return nil, service.ErrSessionExpired
	}
	qty, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || qty < 1 || qty > maxLineQuantity {
		return nil, service.Validatef("quantity", "enter a number between 1 and %d", maxLineQuantity)
	}
	if err := e.advance(tgID, ActionQuantitySet); err != nil {
		return nil, err
	}
	p := draft.PendingProduct
	draft.Cart.Add(cart.Line{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: qty})
	draft.PendingProduct = nil
	return &CartView{Cart: draft.Cart, Subtotal: draft.Cart.Subtotal()}, nil
}

// RemoveLine deletes one cart line by its 0-based index.
func (e *Engine) RemoveLine(tgID int64, idx int) (*CartView, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	if err := e.advance(tgID, ActionRemoveLine); err != nil {
		return nil, err
	}
	if !draft.Cart.Remove(idx) {
		return nil, service.Validatef("line", "no cart line %d", idx+1)
	}
	return &CartView{Cart: draft.Cart, Subtotal: draft.Cart.Subtotal()}, nil
}

// Cart returns the current cart without moving the dialog.
func (e *Engine) Cart(tgID int64) (*CartView, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	return &CartView{Cart: draft.Cart, Subtotal: draft.Cart.Subtotal()}, nil
}

// ToCheckout moves a non-empty cart to address selection.
func (e *Engine) ToCheckout(ctx context.Context, tgID int64, user *models.User) (*AddressList, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	if draft.Cart.Empty() {
		return nil, service.Validatef("cart", "cart is empty")
	}
	if err := e.advance(tgID, ActionToCheckout); err != nil {
		return nil, err
	}
	list, err := e.addresses.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, service.Collab("list addresses", err)
	}
	return &AddressList{Addresses: list}, nil
}

// PickAddress records the chosen address and offers delivery slots.
func (e *Engine) PickAddress(ctx context.Context, tgID int64, user *models.User, addressID int64) (*SlotList, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	addr, err := e.addresses.Get(ctx, addressID)
	if err != nil {
		return nil, service.Collab("load address", err)
	}
	if addr == nil || addr.UserID != user.ID {
		return nil, service.Validatef("address", "address %d not found", addressID)
	}
	if err := e.advance(tgID, ActionPickAddress); err != nil {
		return nil, err
	}
	draft.AddressID = addr.ID
	return e.listSlots(ctx)
}

// RequestNewAddress switches to free-text address entry.
func (e *Engine) RequestNewAddress(tgID int64) error {
	if _, err := e.checkoutDraft(tgID); err != nil {
		return err
	}
	return e.advance(tgID, ActionNewAddress)
}

// SaveAddress stores the typed address and offers delivery slots. The text
// may carry an optional "label:" prefix, e.g. "home: 12 Amir Temur st".
func (e *Engine) SaveAddress(ctx context.Context, tgID int64, user *models.User, text string) (*SlotList, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	label, line := splitAddress(text)
	if len(line) < minAddressLen {
		return nil, service.Validatef("address", "address is too short")
	}
	addr := &models.Address{UserID: user.ID, Label: label, Line: line}
	if err := e.addresses.Create(ctx, addr); err != nil {
		return nil, service.Collab("create address", err)
	}
	if err := e.advance(tgID, ActionAddressSaved); err != nil {
		return nil, err
	}
	draft.AddressID = addr.ID
	return e.listSlots(ctx)
}

// slotPreview caps the windows offered in one message.
const slotPreview = 5

func (e *Engine) listSlots(ctx context.Context) (*SlotList, error) {
	free, err := e.slots.Available(ctx, e.now())
	if err != nil {
		return nil, err
	}
	if len(free) > slotPreview {
		free = free[:slotPreview]
	}
	return &SlotList{Slots: free}, nil
}

// PickSlot records the chosen window. The window is rebuilt from structured
// callback values; availability is not re-checked here, so two users may
// both book the window they were shown.
func (e *Engine) PickSlot(ctx context.Context, tgID int64, user *models.User, dateUnix int64, startHour, endHour int) (*PaymentPrompt, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	day := time.Unix(dateUnix, 0).In(e.now().Location())
	slot := slots.Slot{
		Date:      time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()),
		StartHour: startHour,
		EndHour:   endHour,
	}
	if !slot.Start().After(e.now()) {
		return nil, service.Validatef("slot", "slot %s already started", slot.Label())
	}
	if err := e.advance(tgID, ActionPickSlot); err != nil {
		return nil, err
	}
	draft.Slot = slot
	draft.SlotChosen = true

	balance, err := e.loyalty.Balance(ctx, user.ID)
	if err != nil {
		return nil, service.Collab("loyalty balance", err)
	}
	_, total, err := e.orders.Quote(ctx, user.ID, draft.AddressID, &draft.Cart)
	if err != nil {
		return nil, err
	}
	return &PaymentPrompt{LoyaltyBalance: balance, Total: total}, nil
}

// PickPayment records the method and renders the confirmation summary.
func (e *Engine) PickPayment(ctx context.Context, tgID int64, user *models.User, method models.PaymentMethod) (*OrderSummary, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	switch method {
	case models.PayCash, models.PayCard, models.PayLoyalty:
	default:
		return nil, service.Validatef("payment_method", "unknown method %q", method)
	}
	if err := e.advance(tgID, ActionPickPayment); err != nil {
		return nil, err
	}
	draft.Payment = method

	addr, err := e.addresses.Get(ctx, draft.AddressID)
	if err != nil {
		return nil, service.Collab("load address", err)
	}
	if addr == nil {
		return nil, service.Validatef("address", "address %d not found", draft.AddressID)
	}
	fee, total, err := e.orders.Quote(ctx, user.ID, draft.AddressID, &draft.Cart)
	if err != nil {
		return nil, err
	}
	return &OrderSummary{
		Cart:    draft.Cart,
		Address: *addr,
		Slot:    draft.Slot,
		Payment: method,
		Fee:     fee,
		Total:   total,
	}, nil
}

// Confirm commits the draft. Stock and slot failures return to the cart or
// slot step; payment failures return to payment. In every failure case the
// draft survives so the user resumes instead of restarting.
func (e *Engine) Confirm(ctx context.Context, tgID int64, user *models.User) (*Placed, error) {
	draft, err := e.checkoutDraft(tgID)
	if err != nil {
		return nil, err
	}
	if e.Step(tgID) != StepConfirm {
		return nil, service.Validatef("step", "nothing to confirm")
	}
	if !draft.SlotChosen {
		return nil, service.Validatef("slot", "no delivery slot chosen")
	}

	order, err := e.orders.PlaceOrder(ctx, service.PlaceOrderInput{
		UserID:        user.ID,
		Cart:          draft.Cart,
		AddressID:     draft.AddressID,
		Slot:          draft.Slot,
		PaymentMethod: draft.Payment,
	})
	if err != nil {
		e.rewindAfterFailure(tgID, err)
		return nil, err
	}

	if err := e.advance(tgID, ActionConfirm); err != nil {
		return nil, err
	}
	e.mgr.ClearState(tgID)
	return &Placed{Order: order}, nil
}

func (e *Engine) rewindAfterFailure(tgID int64, err error) {
	var stock *service.StockError
	var payment *service.PaymentError
	switch {
	case errors.As(err, &stock):
		_ = e.advance(tgID, ActionStockRetry)
	case errors.As(err, &payment):
		_ = e.advance(tgID, ActionPaymentRetry)
	case errors.Is(err, service.ErrNoCourierAvailable), errors.Is(err, service.ErrNoSlotAvailable):
		_ = e.advance(tgID, ActionSlotRetry)
	}
}

// CancelFlow abandons the current dialog and clears the draft.
func (e *Engine) CancelFlow(tgID int64) {
	e.mgr.ClearState(tgID)
}

func splitAddress(text string) (label, line string) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, ":"); idx > 0 && idx <= 20 {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+1:])
	}
	return "", text
}
