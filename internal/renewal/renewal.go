// Package renewal places orders for due subscriptions on a fixed sweep
// interval. Each subscription is processed independently; one failure never
// stops the sweep.
package renewal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aquapure/waterbot/core/logger"
	"github.com/aquapure/waterbot/internal/cart"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
)

// OrderPlacer commits renewal orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*models.Order, error)
}

// Scheduler sweeps due subscriptions and turns them into cash-on-delivery
// orders at the user's default address in the earliest open slot.
type Scheduler struct {
	subs      service.SubscriptionStore
	catalog   service.ProductCatalog
	addresses service.AddressBook
	slots     service.SlotService
	orders    OrderPlacer
	notify    service.NotificationGateway
	interval  time.Duration
	now       func() time.Time
}

// Deps bundles the collaborators for New.
type Deps struct {
	Subs      service.SubscriptionStore
	Catalog   service.ProductCatalog
	Addresses service.AddressBook
	Slots     service.SlotService
	Orders    OrderPlacer
	Notify    service.NotificationGateway
	Interval  time.Duration
	Now       func() time.Time
}

// New builds the scheduler. Interval defaults to one hour.
func New(d Deps) *Scheduler {
	if d.Interval <= 0 {
		d.Interval = time.Hour
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Scheduler{
		subs:      d.Subs,
		catalog:   d.Catalog,
		addresses: d.Addresses,
		slots:     d.Slots,
		orders:    d.Orders,
		notify:    d.Notify,
		interval:  d.Interval,
		now:       d.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled. The first sweep happens
// immediately on start.
func (s *Scheduler) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes every due subscription once.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now()
	due, err := s.subs.DueBefore(ctx, now)
	if err != nil {
		logger.Error(ctx, "renewal", "sweep.load",
			slog.String("status", logger.Status(err)),
			slog.Any("error", err),
		)
		return
	}
	if len(due) == 0 {
		return
	}
	logger.Info(ctx, "renewal", "sweep.start",
		slog.String("status", "ok"),
		slog.Int("due", len(due)),
	)

	placed := 0
	for i := range due {
		sub := &due[i]
		if err := s.renew(ctx, sub, now); err != nil {
			logger.Warn(ctx, "renewal", "sweep.item",
				slog.String("status", logger.Status(err)),
				slog.Int64("subscription_id", sub.ID),
				slog.Any("error", err),
			)
			if nerr := s.notify.RenewalFailed(ctx, sub, renewFailureReason(err)); nerr != nil {
				logger.Warn(ctx, "renewal", "notify.failed",
					slog.String("status", logger.Status(nerr)),
					slog.Int64("subscription_id", sub.ID),
					slog.Any("error", nerr),
				)
			}
			continue
		}
		placed++
	}
	logger.Info(ctx, "renewal", "sweep.done",
		slog.String("status", "ok"),
		slog.Int("placed", placed),
		slog.Int("failed", len(due)-placed),
	)
}

func (s *Scheduler) renew(ctx context.Context, sub *models.Subscription, now time.Time) error {
	product, err := s.catalog.Get(ctx, sub.ProductID)
	if err != nil {
		return service.Collab("load product", err)
	}
	if product == nil || !product.Active {
		return service.Validatef("product", "product %d is no longer sold", sub.ProductID)
	}

	addr, err := s.addresses.Default(ctx, sub.UserID)
	if err != nil {
		return service.Collab("default address", err)
	}
	if addr == nil {
		return service.Validatef("address", "no default address on file")
	}

	free, err := s.slots.Available(ctx, now)
	if err != nil {
		return err
	}
	slot := free[0]

	var c cart.Cart
	c.Add(cart.Line{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  sub.Quantity,
	})

	order, err := s.orders.PlaceOrder(ctx, service.PlaceOrderInput{
		UserID:        sub.UserID,
		Cart:          c,
		AddressID:     addr.ID,
		Slot:          slot,
		PaymentMethod: models.PayCash,
	})
	if err != nil {
		return err
	}

	next := advanceSchedule(sub.NextDelivery, sub.FrequencyDays, now)
	if err := s.subs.AdvanceNextDelivery(ctx, sub.ID, next); err != nil {
		return service.Collab("advance subscription", err)
	}
	sub.NextDelivery = next

	if err := s.notify.RenewalPlaced(ctx, sub, order); err != nil {
		logger.Warn(ctx, "renewal", "notify.placed",
			slog.String("status", logger.Status(err)),
			slog.String("order", order.Number),
			slog.Any("error", err),
		)
	}
	return nil
}

// advanceSchedule moves the next delivery date forward by whole intervals
// until it lands in the future, so a long outage does not queue a backlog of
// orders.
func advanceSchedule(last time.Time, frequencyDays int, now time.Time) time.Time {
	if frequencyDays < 1 {
		frequencyDays = 1
	}
	next := last.AddDate(0, 0, frequencyDays)
	for !next.After(now) {
		next = next.AddDate(0, 0, frequencyDays)
	}
	return next
}

func renewFailureReason(err error) string {
	var v *service.ValidationError
	if errors.As(err, &v) {
		return v.Reason
	}
	return "temporary problem, we will retry"
}
