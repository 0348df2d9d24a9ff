package service

import (
	"context"
	"time"

	"github.com/aquapure/waterbot/internal/slots"
)

// SlotWindow configures slot generation.
type SlotWindow struct {
	LookaheadDays int
	DayStartHour  int
	DayEndHour    int
	SlotHours     int
	MaxOffered    int
}

// DefaultSlotWindow is the standard rolling week of two-hour brackets, capped
// at 20 offered slots per listing.
var DefaultSlotWindow = SlotWindow{
	LookaheadDays: slots.DefaultLookaheadDays,
	DayStartHour:  slots.DefaultDayStartHour,
	DayEndHour:    slots.DefaultDayEndHour,
	SlotHours:     slots.DefaultSlotHours,
	MaxOffered:    20,
}

// Slots derives bookable windows from live order data. Availability is
// computed at read time; nothing reserves a slot until an order is created,
// so two users browsing at once can both see and take the same window.
type Slots struct {
	orders OrderStore
	window SlotWindow
}

// NewSlots builds a SlotService over the order store.
func NewSlots(orders OrderStore, window SlotWindow) *Slots {
	return &Slots{orders: orders, window: window}
}

// Available returns future, unbooked windows in chronological order.
func (s *Slots) Available(ctx context.Context, now time.Time) ([]slots.Slot, error) {
	candidates := slots.Generate(now, s.window.LookaheadDays, s.window.DayStartHour, s.window.DayEndHour, s.window.SlotHours)
	if len(candidates) == 0 {
		return nil, ErrNoSlotAvailable
	}

	from := candidates[0].Date
	to := candidates[len(candidates)-1].Date.AddDate(0, 0, 1)
	booked, err := s.orders.BookedSlotKeys(ctx, from, to)
	if err != nil {
		return nil, Collab("load booked slots", err)
	}

	free := slots.Available(candidates, booked, now)
	if len(free) == 0 {
		return nil, ErrNoSlotAvailable
	}
	if s.window.MaxOffered > 0 && len(free) > s.window.MaxOffered {
		free = free[:s.window.MaxOffered]
	}
	return free, nil
}
