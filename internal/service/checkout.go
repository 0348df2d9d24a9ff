package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aquapure/waterbot/core/logger"
	"github.com/aquapure/waterbot/internal/cart"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/slots"
)

// Checkout turns a finished conversation draft into a paid, scheduled order.
// Orders are staged as pending_payment first; only after payment capture do
// they become visible as pending. Every failure after stock reservation runs
// the matching compensation so nothing stays half-committed.
type Checkout struct {
	catalog    ProductCatalog
	addresses  AddressBook
	orders     OrderStore
	deliveries DeliveryStore
	payments   PaymentGateway
	loyalty    LoyaltyLedger
	notify     NotificationGateway
	fees       slots.FeeSchedule
	warehouse  slots.Coord
	now        func() time.Time
}

// CheckoutDeps bundles the collaborators for NewCheckout.
type CheckoutDeps struct {
	Catalog    ProductCatalog
	Addresses  AddressBook
	Orders     OrderStore
	Deliveries DeliveryStore
	Payments   PaymentGateway
	Loyalty    LoyaltyLedger
	Notify     NotificationGateway
	Fees       slots.FeeSchedule
	Warehouse  slots.Coord
	Now        func() time.Time
}

// NewCheckout builds the checkout service.
func NewCheckout(d CheckoutDeps) *Checkout {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Checkout{
		catalog:    d.Catalog,
		addresses:  d.Addresses,
		orders:     d.Orders,
		deliveries: d.Deliveries,
		payments:   d.Payments,
		loyalty:    d.Loyalty,
		notify:     d.Notify,
		fees:       d.Fees,
		warehouse:  d.Warehouse,
		now:        d.Now,
	}
}

// PlaceOrderInput is the confirmed conversation draft.
type PlaceOrderInput struct {
	UserID        int64
	Cart          cart.Cart
	AddressID     int64
	Slot          slots.Slot
	PaymentMethod models.PaymentMethod
}

// Quote returns the delivery fee and total for a draft without committing
// anything, for the confirmation screen.
func (s *Checkout) Quote(ctx context.Context, userID, addressID int64, c *cart.Cart) (fee, total int64, err error) {
	addr, err := s.addresses.Get(ctx, addressID)
	if err != nil {
		return 0, 0, Collab("load address", err)
	}
	if addr == nil || addr.UserID != userID {
		return 0, 0, Validatef("address", "address %d not found", addressID)
	}
	fee = s.deliveryFee(ctx, addr)
	return fee, c.Subtotal() + fee, nil
}

// PlaceOrder commits the draft. On StockError or PaymentError the caller's
// draft survives untouched and the user is sent back to fix the cart or pick
// another payment method.
func (s *Checkout) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	if in.Cart.Empty() {
		return nil, Validatef("cart", "cart is empty")
	}
	now := s.now()
	if !in.Slot.Start().After(now) {
		return nil, Validatef("slot", "slot %s already started", in.Slot.Label())
	}

	addr, err := s.addresses.Get(ctx, in.AddressID)
	if err != nil {
		return nil, Collab("load address", err)
	}
	if addr == nil || addr.UserID != in.UserID {
		return nil, Validatef("address", "address %d not found", in.AddressID)
	}

	quantities := in.Cart.QuantityByProduct()
	if err := s.catalog.Reserve(ctx, quantities); err != nil {
		return nil, Collab("reserve stock", err)
	}

	fee := s.deliveryFee(ctx, addr)
	subtotal := in.Cart.Subtotal()
	o := &models.Order{
		Number:        NewOrderNumber(now),
		UserID:        in.UserID,
		AddressID:     in.AddressID,
		SlotDate:      in.Slot.Date,
		SlotStartHour: in.Slot.StartHour,
		SlotEndHour:   in.Slot.EndHour,
		BaseAmount:    subtotal,
		DeliveryFee:   fee,
		TotalAmount:   subtotal + fee,
		PaymentMethod: in.PaymentMethod,
		Status:        models.OrderPendingPayment,
	}
	for _, line := range in.Cart.Lines {
		o.Items = append(o.Items, models.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	if err := s.orders.Create(ctx, o); err != nil {
		s.compensateStock(ctx, quantities)
		return nil, Collab("create order", err)
	}

	if err := s.payments.Capture(ctx, o); err != nil {
		s.abandon(ctx, o, quantities, false)
		return nil, Collab("capture payment", err)
	}

	if _, err := s.deliveries.Schedule(ctx, o); err != nil {
		s.abandon(ctx, o, quantities, true)
		return nil, Collab("schedule delivery", err)
	}

	if err := s.orders.UpdateStatus(ctx, o.ID, models.OrderPending); err != nil {
		s.abandon(ctx, o, quantities, true)
		return nil, Collab("finalize order", err)
	}
	o.Status = models.OrderPending

	if err := s.notify.OrderPlaced(ctx, o); err != nil {
		logger.Warn(ctx, "checkout", "notify.placed",
			slog.String("status", logger.Status(err)),
			slog.String("order", o.Number),
			slog.Any("error", err),
		)
	}
	return o, nil
}

// CancelOrder cancels a user's own non-terminal order, releasing stock and
// refunding loyalty payment.
func (s *Checkout) CancelOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	o, err := s.orders.ByID(ctx, orderID)
	if err != nil {
		return nil, Collab("load order", err)
	}
	if o == nil || o.UserID != userID {
		return nil, Validatef("order", "order %d not found", orderID)
	}
	if !models.CanTransition(o.Status, models.OrderCancelled) {
		return nil, Validatef("order", "order %s can no longer be cancelled", o.Number)
	}
	prev := o.Status
	if err := s.orders.UpdateStatus(ctx, o.ID, models.OrderCancelled); err != nil {
		return nil, Collab("cancel order", err)
	}
	o.Status = models.OrderCancelled

	quantities := make(map[int64]int, len(o.Items))
	for _, item := range o.Items {
		quantities[item.ProductID] += item.Quantity
	}
	s.compensateStock(ctx, quantities)
	s.refundPayment(ctx, o)
	s.failDelivery(ctx, o)

	if err := s.notify.OrderStatusChanged(ctx, o, prev); err != nil {
		logger.Warn(ctx, "checkout", "notify.cancelled",
			slog.String("status", logger.Status(err)),
			slog.String("order", o.Number),
			slog.Any("error", err),
		)
	}
	return o, nil
}

// AdvanceOrder moves an order along the fulfilment pipeline. Reaching
// delivered marks the delivery done and credits loyalty points.
func (s *Checkout) AdvanceOrder(ctx context.Context, orderID int64, to models.OrderStatus) (*models.Order, error) {
	o, err := s.orders.ByID(ctx, orderID)
	if err != nil {
		return nil, Collab("load order", err)
	}
	if o == nil {
		return nil, Validatef("order", "order %d not found", orderID)
	}
	if !models.CanTransition(o.Status, to) {
		return nil, Validatef("status", "cannot move order %s from %s to %s", o.Number, o.Status, to)
	}
	prev := o.Status
	if err := s.orders.UpdateStatus(ctx, o.ID, to); err != nil {
		return nil, Collab("update order status", err)
	}
	o.Status = to

	if d, err := s.deliveries.ByOrder(ctx, o.ID); err == nil && d != nil {
		switch to {
		case models.OrderOutForDelivery:
			_ = s.deliveries.UpdateStatus(ctx, d.ID, models.DeliveryEnRoute)
		case models.OrderDelivered:
			_ = s.deliveries.UpdateStatus(ctx, d.ID, models.DeliveryDone)
		}
	}

	if to == models.OrderDelivered {
		if points := EarnedPoints(o.TotalAmount); points > 0 {
			if err := s.loyalty.Credit(ctx, o.UserID, &o.ID, points, "order "+o.Number); err != nil {
				logger.Warn(ctx, "checkout", "loyalty.earn",
					slog.String("status", logger.Status(err)),
					slog.String("order", o.Number),
					slog.Any("error", err),
				)
			}
		}
	}

	if err := s.notify.OrderStatusChanged(ctx, o, prev); err != nil {
		logger.Warn(ctx, "checkout", "notify.status",
			slog.String("status", logger.Status(err)),
			slog.String("order", o.Number),
			slog.Any("error", err),
		)
	}
	return o, nil
}

// Track assembles the tracking view for one of the user's orders.
func (s *Checkout) Track(ctx context.Context, userID int64, orderID int64) (*models.TrackingInfo, error) {
	o, err := s.orders.ByID(ctx, orderID)
	if err != nil {
		return nil, Collab("load order", err)
	}
	if o == nil || o.UserID != userID {
		return nil, Validatef("order", "order %d not found", orderID)
	}
	addr, err := s.addresses.Get(ctx, o.AddressID)
	if err != nil {
		return nil, Collab("load address", err)
	}

	info := &models.TrackingInfo{
		OrderNumber: o.Number,
		Status:      StatusLabel(o.Status),
		Slot:        slots.Slot{Date: o.SlotDate, StartHour: o.SlotStartHour, EndHour: o.SlotEndHour}.Label(),
	}
	if addr != nil {
		info.Address = addr.Line
	}
	info.Events = append(info.Events, models.TrackingEvent{
		Kind: "created", At: o.CreatedAt,
		Description: "Order placed",
	})
	if d, err := s.deliveries.ByOrder(ctx, o.ID); err == nil && d != nil {
		info.Events = append(info.Events, models.TrackingEvent{
			Kind: "scheduled", At: d.CreatedAt,
			Description: fmt.Sprintf("Courier assigned for %02d:00-%02d:00", d.StartHour, d.EndHour),
		})
	}
	if o.Status != models.OrderPending {
		info.Events = append(info.Events, models.TrackingEvent{
			Kind: string(o.Status), At: o.UpdatedAt,
			Description: StatusLabel(o.Status),
		})
	}
	return info, nil
}

// abandon cancels a staged order and undoes its side effects. refundPay is
// set once payment has been captured. A courier already scheduled for the
// order is released too, otherwise the assignment keeps blocking the window.
func (s *Checkout) abandon(ctx context.Context, o *models.Order, quantities map[int64]int, refundPay bool) {
	if err := s.orders.UpdateStatus(ctx, o.ID, models.OrderCancelled); err != nil {
		logger.Error(ctx, "checkout", "abandon.status",
			slog.String("status", logger.Status(err)),
			slog.String("order", o.Number),
			slog.Any("error", err),
		)
	}
	o.Status = models.OrderCancelled
	s.compensateStock(ctx, quantities)
	if refundPay {
		s.refundPayment(ctx, o)
	}
	s.failDelivery(ctx, o)
}

func (s *Checkout) compensateStock(ctx context.Context, quantities map[int64]int) {
	if err := s.catalog.Release(ctx, quantities); err != nil {
		logger.Error(ctx, "checkout", "stock.release",
			slog.String("status", logger.Status(err)),
			slog.Any("error", err),
		)
	}
}

// refundPayment reverses a captured payment. A failed reversal leaves money
// with the provider, so it is logged for manual reconciliation against the
// cancelled order.
func (s *Checkout) refundPayment(ctx context.Context, o *models.Order) {
	if err := s.payments.Refund(ctx, o); err != nil {
		logger.Error(ctx, "checkout", "payment.reconcile_required",
			slog.String("status", logger.Status(err)),
			slog.String("order", o.Number),
			slog.String("method", string(o.PaymentMethod)),
			slog.Int64("amount", o.TotalAmount),
			slog.Any("error", err),
		)
	}
}

// failDelivery releases the courier assignment of an order that will not be
// delivered.
func (s *Checkout) failDelivery(ctx context.Context, o *models.Order) {
	d, err := s.deliveries.ByOrder(ctx, o.ID)
	if err != nil || d == nil || d.Status != models.DeliveryScheduled {
		return
	}
	if err := s.deliveries.UpdateStatus(ctx, d.ID, models.DeliveryFailed); err != nil {
		logger.Warn(ctx, "checkout", "cancel.delivery",
			slog.String("status", logger.Status(err)),
			slog.Int64("delivery_id", d.ID),
			slog.Any("error", err),
		)
	}
}

func (s *Checkout) deliveryFee(ctx context.Context, addr *models.Address) int64 {
	dest := slots.Coord{}
	if addr.HasCoords {
		dest = slots.Coord{Lat: addr.Latitude, Lon: addr.Longitude}
	}
	fee, estimated := s.fees.Quote(s.warehouse, dest)
	if !estimated {
		logger.Debug(ctx, "checkout", "fee.fallback",
			slog.String("status", "ok"),
			slog.Int64("address_id", addr.ID),
			slog.Int64("fee", fee),
		)
	}
	return fee
}

// NewOrderNumber builds a human-readable unique order number.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "ORD" + now.Format("20060102150405") + suffix
}

// StatusLabel renders an order status for user-facing text.
func StatusLabel(st models.OrderStatus) string {
	switch st {
	case models.OrderPendingPayment:
		return "Awaiting payment"
	case models.OrderPending:
		return "Order received"
	case models.OrderConfirmed:
		return "Order confirmed"
	case models.OrderPreparing:
		return "Being prepared"
	case models.OrderOutForDelivery:
		return "Out for delivery"
	case models.OrderDelivered:
		return "Delivered"
	case models.OrderCancelled:
		return "Cancelled"
	default:
		return string(st)
	}
}
