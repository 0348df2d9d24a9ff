// Package service defines the collaborators behind the conversation flows
// and their Postgres implementations. Conversations depend only on the
// interfaces here; storage, payment and notification details stay swappable.
package service

import (
	"context"
	"time"

	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/slots"
)

// UserStore persists Telegram users and their activity.
type UserStore interface {
	Upsert(ctx context.Context, u *models.User) error
	ByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	TelegramIDByID(ctx context.Context, userID int64) (int64, error)
	SetPhone(ctx context.Context, telegramID int64, phone string) error
	TouchActivity(ctx context.Context, telegramID int64) error
}

// ProductCatalog exposes the sellable products and their stock.
type ProductCatalog interface {
	ListActive(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	// Reserve atomically decrements stock for each product and fails with a
	// StockError when any product cannot cover its quantity.
	Reserve(ctx context.Context, quantities map[int64]int) error
	// Release returns previously reserved stock, used when a pending order
	// is cancelled.
	Release(ctx context.Context, quantities map[int64]int) error
}

// AddressBook manages saved delivery addresses.
type AddressBook interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Address, error)
	Get(ctx context.Context, id int64) (*models.Address, error)
	Create(ctx context.Context, a *models.Address) error
	SetDefault(ctx context.Context, userID, addressID int64) error
	Default(ctx context.Context, userID int64) (*models.Address, error)
}

// OrderStore persists orders and answers slot occupancy questions.
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	ByID(ctx context.Context, id int64) (*models.Order, error)
	ByNumber(ctx context.Context, number string) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Order, error)
	ListByStatus(ctx context.Context, st models.OrderStatus, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id int64, st models.OrderStatus) error
	// BookedSlotKeys returns the slot keys held by non-terminal orders in
	// [from, to). Availability is derived, never stored, so two users who
	// both saw a slot free can both take it.
	BookedSlotKeys(ctx context.Context, from, to time.Time) (map[string]struct{}, error)
}

// DeliveryStore assigns couriers to confirmed orders.
type DeliveryStore interface {
	// Schedule picks a courier free in the order's window and records the
	// assignment. ErrNoCourierAvailable when every courier is taken.
	Schedule(ctx context.Context, o *models.Order) (*models.Delivery, error)
	ByOrder(ctx context.Context, orderID int64) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, id int64, st models.DeliveryStatus) error
	ListForCourier(ctx context.Context, courierID int64, date time.Time) ([]models.Delivery, error)
}

// SubscriptionStore persists recurring orders.
type SubscriptionStore interface {
	Create(ctx context.Context, s *models.Subscription) error
	ByID(ctx context.Context, id int64) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Subscription, error)
	UpdateStatus(ctx context.Context, id int64, st models.SubscriptionStatus) error
	// DueBefore returns active subscriptions whose next delivery date has
	// passed.
	DueBefore(ctx context.Context, cutoff time.Time) ([]models.Subscription, error)
	AdvanceNextDelivery(ctx context.Context, id int64, next time.Time) error
}

// LoyaltyLedger records point movements. Balances are derived from the
// ledger, one row per credit or debit.
type LoyaltyLedger interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Credit(ctx context.Context, userID int64, orderID *int64, points int64, reason string) error
	// Debit fails with a PaymentError when the balance cannot cover points.
	Debit(ctx context.Context, userID int64, orderID *int64, points int64, reason string) error
	History(ctx context.Context, userID int64, limit int) ([]models.LoyaltyTransaction, error)
}

// PaymentGateway captures payment for a pending order and reverses it when
// the order does not survive.
type PaymentGateway interface {
	Capture(ctx context.Context, o *models.Order) error
	Refund(ctx context.Context, o *models.Order) error
}

// NotificationGateway fans order lifecycle events out to the user and to
// downstream consumers.
type NotificationGateway interface {
	OrderPlaced(ctx context.Context, o *models.Order) error
	OrderStatusChanged(ctx context.Context, o *models.Order, prev models.OrderStatus) error
	RenewalPlaced(ctx context.Context, sub *models.Subscription, o *models.Order) error
	RenewalFailed(ctx context.Context, sub *models.Subscription, reason string) error
}

// SlotService derives bookable delivery windows from live order data.
type SlotService interface {
	Available(ctx context.Context, now time.Time) ([]slots.Slot, error)
}
