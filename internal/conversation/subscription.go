package conversation

import (
	"context"
	"strconv"
	"strings"

	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
)

// SubscriptionSummary is the subscription confirmation screen.
type SubscriptionSummary struct {
	Draft       SubscriptionDraft
	PerDelivery int64
}

// BeginSubscription resets the session into the subscription flow.
func (e *Engine) BeginSubscription(tgID int64) {
	e.mgr.ClearState(tgID)
	e.mgr.SetState(tgID, StepSubProduct.State())
	e.mgr.SetDraft(tgID, &SubscriptionDraft{})
}

// FrequencyPrompt asks how often the chosen product should be delivered.
type FrequencyPrompt struct {
	Product models.Product
}

// PickSubProduct stores the product and asks for the delivery interval.
func (e *Engine) PickSubProduct(ctx context.Context, tgID, productID int64) (*FrequencyPrompt, error) {
	draft, err := e.subDraft(tgID)
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
	if err := e.advance(tgID, ActionSubProduct); err != nil {
		return nil, err
	}
	draft.ProductID = product.ID
	draft.ProductName = product.Name
	draft.UnitPrice = product.Price
	return &FrequencyPrompt{Product: *product}, nil
}

// SetSubFrequency parses the delivery interval in days.
func (e *Engine) SetSubFrequency(_ context.Context, tgID int64, text string) error {
	draft, err := e.subDraft(tgID)
	if err != nil {
		return err
	}
	days, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || days < minFrequencyDays || days > maxFrequencyDays {
		return service.Validatef("frequency", "enter days between %d and %d", minFrequencyDays, maxFrequencyDays)
	}
	if err := e.advance(tgID, ActionSubFrequency); err != nil {
		return err
	}
	draft.FrequencyDays = days
	return nil
}

// SetSubQuantity parses the per-delivery quantity reply and renders the
// confirmation summary.
func (e *Engine) SetSubQuantity(_ context.Context, tgID int64, text string) (*SubscriptionSummary, error) {
	draft, err := e.subDraft(tgID)
	if err != nil {
		return nil, err
	}
	qty, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || qty < 1 || qty > maxLineQuantity {
		return nil, service.Validatef("quantity", "enter a number between 1 and %d", maxLineQuantity)
	}
	if err := e.advance(tgID, ActionSubQuantity); err != nil {
		return nil, err
	}
	draft.Quantity = qty
	return &SubscriptionSummary{
		Draft:       *draft,
		PerDelivery: draft.UnitPrice * int64(draft.Quantity),
	}, nil
}

// ConfirmSubscription creates the subscription with the first delivery one
// full interval from now.
func (e *Engine) ConfirmSubscription(ctx context.Context, tgID int64, user *models.User) (*SubscriptionPlaced, error) {
	draft, err := e.subDraft(tgID)
	if err != nil {
		return nil, err
	}
	if e.Step(tgID) != StepSubConfirm {
		return nil, service.Validatef("step", "nothing to confirm")
	}
	sub := &models.Subscription{
		UserID:        user.ID,
		ProductID:     draft.ProductID,
		ProductName:   draft.ProductName,
		Quantity:      draft.Quantity,
		FrequencyDays: draft.FrequencyDays,
		NextDelivery:  e.now().AddDate(0, 0, draft.FrequencyDays),
		Status:        models.SubActive,
	}
	if err := e.subs.Create(ctx, sub); err != nil {
		return nil, service.Collab("create subscription", err)
	}
	if err := e.advance(tgID, ActionSubPlaced); err != nil {
		return nil, err
	}
	e.mgr.ClearState(tgID)
	return &SubscriptionPlaced{Subscription: sub}, nil
}

// Subscriptions lists the user's subscriptions.
func (e *Engine) Subscriptions(ctx context.Context, user *models.User) ([]models.Subscription, error) {
	list, err := e.subs.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, service.Collab("list subscriptions", err)
	}
	return list, nil
}

// subStatusMoves are the legal subscription status changes a user can make.
var subStatusMoves = map[models.SubscriptionStatus][]models.SubscriptionStatus{
	models.SubActive: {models.SubPaused, models.SubCancelled},
	models.SubPaused: {models.SubActive, models.SubCancelled},
}

// SetSubscriptionStatus pauses, resumes or cancels a user's subscription.
func (e *Engine) SetSubscriptionStatus(ctx context.Context, user *models.User, subID int64, to models.SubscriptionStatus) (*models.Subscription, error) {
	sub, err := e.subs.ByID(ctx, subID)
	if err != nil {
		return nil, service.Collab("load subscription", err)
	}
	if sub == nil || sub.UserID != user.ID {
		return nil, service.Validatef("subscription", "subscription %d not found", subID)
	}
	allowed := false
	for _, next := range subStatusMoves[sub.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, service.Validatef("status", "cannot move subscription from %s to %s", sub.Status, to)
	}
	if err := e.subs.UpdateStatus(ctx, subID, to); err != nil {
		return nil, service.Collab("update subscription", err)
	}
	sub.Status = to
	return sub, nil
}
