// Package notify delivers order lifecycle notifications to users over
// Telegram and mirrors them as events for downstream consumers.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/aquapure/waterbot/core/logger"
	"github.com/aquapure/waterbot/core/telegram/format"
	"github.com/aquapure/waterbot/core/telegram/sender"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/slots"
)

// ChatResolver maps internal user ids to Telegram chat ids.
type ChatResolver interface {
	TelegramIDByID(ctx context.Context, userID int64) (int64, error)
}

// Notifier sends user-facing messages through the async dispatcher and
// publishes a matching event for each. A failed event publish is logged but
// never fails the notification. The Telegram transport is attached with Bind
// once the bot runtime is up; until then events still flow and message sends
// are skipped with a warning.
type Notifier struct {
	mu         sync.RWMutex
	bot        *tele.Bot
	dispatcher *sender.Dispatcher

	users  ChatResolver
	events EventPublisher
}

// NewNotifier builds the gateway. events may be a NopPublisher.
func NewNotifier(users ChatResolver, events EventPublisher) *Notifier {
	return &Notifier{users: users, events: events}
}

// Bind attaches the Telegram transport.
func (n *Notifier) Bind(bot *tele.Bot, dispatcher *sender.Dispatcher) {
	n.mu.Lock()
	n.bot = bot
	n.dispatcher = dispatcher
	n.mu.Unlock()
}

// OrderPlaced confirms a freshly placed order.
func (n *Notifier) OrderPlaced(ctx context.Context, o *models.Order) error {
	slot := slots.Slot{Date: o.SlotDate, StartHour: o.SlotStartHour, EndHour: o.SlotEndHour}
	text := fmt.Sprintf(
		"Order *%s* placed!\nDelivery: %s\nTotal: %s",
		o.Number, slot.Label(), format.Money(o.TotalAmount),
	)
	n.publish(ctx, o.Number, orderEvent{Type: "order.placed", Order: o.Number, Status: string(o.Status), Total: o.TotalAmount})
	return n.send(ctx, o.UserID, "notify.placed", text)
}

// OrderStatusChanged tells the user their order moved along the pipeline.
func (n *Notifier) OrderStatusChanged(ctx context.Context, o *models.Order, prev models.OrderStatus) error {
	text := fmt.Sprintf("Order *%s*: %s", o.Number, statusText(o.Status))
	n.publish(ctx, o.Number, orderEvent{Type: "order.status", Order: o.Number, Status: string(o.Status), Prev: string(prev)})
	return n.send(ctx, o.UserID, "notify.status", text)
}

// RenewalPlaced confirms an automatic subscription order.
func (n *Notifier) RenewalPlaced(ctx context.Context, sub *models.Subscription, o *models.Order) error {
	text := fmt.Sprintf(
		"Your subscription for *%s* renewed automatically.\nOrder *%s*, total %s.",
		sub.ProductName, o.Number, format.Money(o.TotalAmount),
	)
	n.publish(ctx, o.Number, orderEvent{Type: "subscription.renewed", Order: o.Number, Subscription: sub.ID})
	return n.send(ctx, sub.UserID, "notify.renewal", text)
}

// RenewalFailed warns the user a renewal could not be placed.
func (n *Notifier) RenewalFailed(ctx context.Context, sub *models.Subscription, reason string) error {
	text := fmt.Sprintf(
		"We could not renew your subscription for *%s*: %s.\nIt will be retried on the next cycle.",
		sub.ProductName, reason,
	)
	n.publish(ctx, fmt.Sprintf("sub-%d", sub.ID), orderEvent{Type: "subscription.renewal_failed", Subscription: sub.ID, Reason: reason})
	return n.send(ctx, sub.UserID, "notify.renewal_failed", text)
}

type orderEvent struct {
	Type         string    `json:"type"`
	Order        string    `json:"order,omitempty"`
	Status       string    `json:"status,omitempty"`
	Prev         string    `json:"prev,omitempty"`
	Total        int64     `json:"total,omitempty"`
	Subscription int64     `json:"subscription,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

func (n *Notifier) publish(ctx context.Context, key string, ev orderEvent) {
	ev.At = time.Now().UTC()
	if err := n.events.Publish(ctx, key, ev); err != nil {
		logger.Warn(ctx, "events", "publish",
			slog.String("status", logger.Status(err)),
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

func (n *Notifier) send(ctx context.Context, userID int64, action, text string) error {
	n.mu.RLock()
	bot, dispatcher := n.bot, n.dispatcher
	n.mu.RUnlock()
	if bot == nil || dispatcher == nil {
		logger.Warn(ctx, "notify", "send.skip",
			slog.String("action", action),
			slog.Int64("user_id", userID),
			slog.String("reason", "transport_unbound"),
		)
		return nil
	}
	chatID, err := n.users.TelegramIDByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve chat: %w", err)
	}
	recipient := &tele.Chat{ID: chatID}
	return dispatcher.Enqueue(ctx, action, "sendMessage", func() error {
		_, err := bot.Send(recipient, text, tele.ModeMarkdown)
		return err
	})
}

func statusText(st models.OrderStatus) string {
	switch st {
	case models.OrderConfirmed:
		return "confirmed and queued for preparation"
	case models.OrderPreparing:
		return "being prepared"
	case models.OrderOutForDelivery:
		return "out for delivery"
	case models.OrderDelivered:
		return "delivered. Thank you!"
	case models.OrderCancelled:
		return "cancelled"
	default:
		return string(st)
	}
}
