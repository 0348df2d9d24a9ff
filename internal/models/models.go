// Package models defines the persistent and in-flight domain entities of the
// water delivery bot. Monetary amounts are kept in minor currency units.
package models

import "time"

// OrderStatus tracks an order through its lifecycle. An order enters
// pending_payment while checkout is still capturing payment and is finalized
// to pending only after capture succeeds.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderPreparing      OrderStatus = "preparing"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

// Terminal reports whether the status ends the order lifecycle. Slots
// referenced only by terminal orders count as free again.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// orderTransitions is the full set of legal status moves. Cancellation is
// allowed from any status before the courier leaves.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPendingPayment: {OrderPending, OrderCancelled},
	OrderPending:        {OrderConfirmed, OrderCancelled},
	OrderConfirmed:      {OrderPreparing, OrderCancelled},
	OrderPreparing:      {OrderOutForDelivery, OrderCancelled},
	OrderOutForDelivery: {OrderDelivered},
}

// CanTransition reports whether an order may move between two statuses.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	PayCash    PaymentMethod = "cash"
	PayCard    PaymentMethod = "card"
	PayLoyalty PaymentMethod = "loyalty"
)

// SubscriptionStatus tracks a recurring order plan.
type SubscriptionStatus string

const (
	SubActive    SubscriptionStatus = "active"
	SubPaused    SubscriptionStatus = "paused"
	SubCancelled SubscriptionStatus = "cancelled"
)

// DeliveryStatus tracks the courier-side record attached to an order.
type DeliveryStatus string

const (
	DeliveryScheduled DeliveryStatus = "scheduled"
	DeliveryEnRoute   DeliveryStatus = "out_for_delivery"
	DeliveryDone      DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// User is a bot customer keyed by Telegram identity.
type User struct {
	ID            int64     `db:"id"`
	TelegramID    int64     `db:"telegram_id"`
	Username      string    `db:"username"`
	FirstName     string    `db:"first_name"`
	Phone         string    `db:"phone"`
	Email         string    `db:"email"`
	LanguageCode  string    `db:"language_code"`
	LoyaltyPoints int64     `db:"loyalty_points"`
	IsAdmin       bool      `db:"is_admin"`
	IsCourier     bool      `db:"is_courier"`
	CreatedAt     time.Time `db:"created_at"`
	LastActivity  time.Time `db:"last_activity"`
}

// Product is a catalog entry.
type Product struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	VolumeLiters int    `db:"volume_liters"`
	Price        int64  `db:"price"`
	Stock        int    `db:"stock"`
	Active       bool   `db:"active"`
}

// Address is a saved delivery destination with optional coordinates for fee
// estimation.
type Address struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Label     string    `db:"label"`
	Line      string    `db:"line"`
	City      string    `db:"city"`
	Latitude  float64   `db:"latitude"`
	Longitude float64   `db:"longitude"`
	HasCoords bool      `db:"has_coords"`
	IsDefault bool      `db:"is_default"`
	CreatedAt time.Time `db:"created_at"`
}

// OrderItem is a single order line. Lines are append-only copies of the
// product name and price at order time.
type OrderItem struct {
	ID        int64  `db:"id"`
	OrderID   int64  `db:"order_id"`
	ProductID int64  `db:"product_id"`
	Name      string `db:"name"`
	UnitPrice int64  `db:"unit_price"`
	Quantity  int    `db:"quantity"`
}

// LineTotal is the item's contribution to the order total.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order is a committed purchase.
type Order struct {
	ID            int64         `db:"id"`
	Number        string        `db:"number"`
	UserID        int64         `db:"user_id"`
	AddressID     int64         `db:"address_id"`
	SlotDate      time.Time     `db:"slot_date"`
	SlotStartHour int           `db:"slot_start_hour"`
	SlotEndHour   int           `db:"slot_end_hour"`
	BaseAmount    int64         `db:"base_amount"`
	DeliveryFee   int64         `db:"delivery_fee"`
	TotalAmount   int64         `db:"total_amount"`
	PaymentMethod PaymentMethod `db:"payment_method"`
	Status        OrderStatus   `db:"status"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`

	Items []OrderItem `db:"-"`
}

// Subscription is a recurring order plan.
type Subscription struct {
	ID            int64              `db:"id"`
	UserID        int64              `db:"user_id"`
	ProductID     int64              `db:"product_id"`
	ProductName   string             `db:"product_name"`
	Quantity      int                `db:"quantity"`
	FrequencyDays int                `db:"frequency_days"`
	NextDelivery  time.Time          `db:"next_delivery"`
	Status        SubscriptionStatus `db:"status"`
	CreatedAt     time.Time          `db:"created_at"`
}

// Delivery is the courier assignment for an order.
type Delivery struct {
	ID            int64          `db:"id"`
	OrderID       int64          `db:"order_id"`
	CourierID     int64          `db:"courier_id"`
	ScheduledDate time.Time      `db:"scheduled_date"`
	StartHour     int            `db:"start_hour"`
	EndHour       int            `db:"end_hour"`
	Status        DeliveryStatus `db:"status"`
	CreatedAt     time.Time      `db:"created_at"`
}

// LoyaltyTransaction is one entry in the points ledger.
type LoyaltyTransaction struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	OrderID   *int64    `db:"order_id"`
	Points    int64     `db:"points"`
	Kind      string    `db:"kind"` // credit or debit
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

// TrackingEvent is one step in an order's delivery timeline.
type TrackingEvent struct {
	Kind        string
	At          time.Time
	Description string
}

// TrackingInfo aggregates what a customer sees when tracking an order.
type TrackingInfo struct {
	OrderNumber string
	Status      string
	Address     string
	Slot        string
	Events      []TrackingEvent
}
