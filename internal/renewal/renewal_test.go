package renewal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
	"github.com/aquapure/waterbot/internal/slots"
)

type fakeSubs struct {
	subs map[int64]*models.Subscription
}

func (f *fakeSubs) Create(_ context.Context, s *models.Subscription) error {
	f.subs[s.ID] = s
	return nil
}
func (f *fakeSubs) ByID(_ context.Context, id int64) (*models.Subscription, error) {
	return f.subs[id], nil
}
func (f *fakeSubs) ListByUser(context.Context, int64) ([]models.Subscription, error) {
	return nil, nil
}
func (f *fakeSubs) UpdateStatus(_ context.Context, id int64, st models.SubscriptionStatus) error {
	f.subs[id].Status = st
	return nil
}
func (f *fakeSubs) DueBefore(_ context.Context, cutoff time.Time) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status == models.SubActive && !s.NextDelivery.After(cutoff) {
			out = append(out, *s)
		}
	}
	return out, nil
}
func (f *fakeSubs) AdvanceNextDelivery(_ context.Context, id int64, next time.Time) error {
	f.subs[id].NextDelivery = next
	return nil
}

type fakeCatalog struct {
	products map[int64]*models.Product
}

func (f *fakeCatalog) ListActive(context.Context) ([]models.Product, error) { return nil, nil }
func (f *fakeCatalog) Get(_ context.Context, id int64) (*models.Product, error) {
	return f.products[id], nil
}
func (f *fakeCatalog) Reserve(context.Context, map[int64]int) error { return nil }
func (f *fakeCatalog) Release(context.Context, map[int64]int) error { return nil }

type fakeAddresses struct {
	defaults map[int64]*models.Address
}

func (f *fakeAddresses) ListByUser(context.Context, int64) ([]models.Address, error) {
	return nil, nil
}
func (f *fakeAddresses) Get(context.Context, int64) (*models.Address, error) { return nil, nil }
func (f *fakeAddresses) Create(context.Context, *models.Address) error       { return nil }
func (f *fakeAddresses) SetDefault(context.Context, int64, int64) error      { return nil }
func (f *fakeAddresses) Default(_ context.Context, userID int64) (*models.Address, error) {
	return f.defaults[userID], nil
}

type fakeSlots struct {
	free []slots.Slot
}

func (f *fakeSlots) Available(context.Context, time.Time) ([]slots.Slot, error) {
	if len(f.free) == 0 {
		return nil, service.ErrNoSlotAvailable
	}
	return f.free, nil
}

type fakePlacer struct {
	placed []service.PlaceOrderInput
	err    error
}

func (f *fakePlacer) PlaceOrder(_ context.Context, in service.PlaceOrderInput) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.placed = append(f.placed, in)
	return &models.Order{ID: int64(len(f.placed)), Number: "ORDTEST", UserID: in.UserID,
		TotalAmount: in.Cart.Subtotal(), Status: models.OrderPending}, nil
}

type fakeNotify struct {
	renewals []int64
	failures []string
}

func (f *fakeNotify) OrderPlaced(context.Context, *models.Order) error { return nil }
func (f *fakeNotify) OrderStatusChanged(context.Context, *models.Order, models.OrderStatus) error {
	return nil
}
func (f *fakeNotify) RenewalPlaced(_ context.Context, sub *models.Subscription, _ *models.Order) error {
	f.renewals = append(f.renewals, sub.ID)
	return nil
}
func (f *fakeNotify) RenewalFailed(_ context.Context, _ *models.Subscription, reason string) error {
	f.failures = append(f.failures, reason)
	return nil
}

type fixture struct {
	subs      *fakeSubs
	catalog   *fakeCatalog
	addresses *fakeAddresses
	slots     *fakeSlots
	placer    *fakePlacer
	notify    *fakeNotify
	sched     *Scheduler
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	f := &fixture{
		subs: &fakeSubs{subs: map[int64]*models.Subscription{
			1: {ID: 1, UserID: 5, ProductID: 1, ProductName: "Water 19L", Quantity: 2,
				FrequencyDays: 7, NextDelivery: now.AddDate(0, 0, -1), Status: models.SubActive},
		}},
		catalog: &fakeCatalog{products: map[int64]*models.Product{
			1: {ID: 1, Name: "Water 19L", Price: 25000, Stock: 100, Active: true},
		}},
		addresses: &fakeAddresses{defaults: map[int64]*models.Address{
			5: {ID: 10, UserID: 5, Line: "12 Amir Temur st", IsDefault: true},
		}},
		slots: &fakeSlots{free: []slots.Slot{
			{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), StartHour: 9, EndHour: 11},
		}},
		placer: &fakePlacer{},
		notify: &fakeNotify{},
		now:    now,
	}
	f.sched = New(Deps{
		Subs:      f.subs,
		Catalog:   f.catalog,
		Addresses: f.addresses,
		Slots:     f.slots,
		Orders:    f.placer,
		Notify:    f.notify,
		Now:       func() time.Time { return f.now },
	})
	return f
}

func TestSweepPlacesDueOrder(t *testing.T) {
	f := newFixture(t)

	f.sched.Sweep(context.Background())

	require.Len(t, f.placer.placed, 1)
	in := f.placer.placed[0]
	assert.Equal(t, int64(5), in.UserID)
	assert.Equal(t, int64(10), in.AddressID)
	assert.Equal(t, models.PayCash, in.PaymentMethod)
	assert.Equal(t, 2, in.Cart.Units())
	assert.Equal(t, int64(50000), in.Cart.Subtotal())

	// Due yesterday with a 7-day cadence advances 6 days past now.
	assert.Equal(t, f.now.AddDate(0, 0, 6), f.subs.subs[1].NextDelivery)
	assert.Equal(t, []int64{1}, f.notify.renewals)
}

func TestSweepSkipsPausedAndFuture(t *testing.T) {
	f := newFixture(t)
	f.subs.subs[1].Status = models.SubPaused
	f.subs.subs[2] = &models.Subscription{ID: 2, UserID: 5, ProductID: 1, Quantity: 1,
		FrequencyDays: 7, NextDelivery: f.now.AddDate(0, 0, 3), Status: models.SubActive}

	f.sched.Sweep(context.Background())
	assert.Empty(t, f.placer.placed)
}

func TestSweepSkipsAfterBacklog(t *testing.T) {
	f := newFixture(t)
	// Three missed cycles collapse into a single renewal.
	f.subs.subs[1].NextDelivery = f.now.AddDate(0, 0, -21)

	f.sched.Sweep(context.Background())

	require.Len(t, f.placer.placed, 1)
	assert.True(t, f.subs.subs[1].NextDelivery.After(f.now))
}

func TestSweepFailureIsolated(t *testing.T) {
	f := newFixture(t)
	f.subs.subs[1].ProductID = 42 // vanished product

	f.sched.Sweep(context.Background())

	assert.Empty(t, f.placer.placed)
	require.Len(t, f.notify.failures, 1)
	// Next delivery untouched so the next sweep retries.
	assert.Equal(t, f.now.AddDate(0, 0, -1), f.subs.subs[1].NextDelivery)
}

func TestSweepNoDefaultAddress(t *testing.T) {
	f := newFixture(t)
	delete(f.addresses.defaults, 5)

	f.sched.Sweep(context.Background())
	assert.Empty(t, f.placer.placed)
	require.Len(t, f.notify.failures, 1)
	assert.Contains(t, f.notify.failures[0], "address")
}

func TestSweepPlacerErrorDoesNotAdvance(t *testing.T) {
	f := newFixture(t)
	f.placer.err = errors.New("db down")

	f.sched.Sweep(context.Background())
	assert.Equal(t, f.now.AddDate(0, 0, -1), f.subs.subs[1].NextDelivery)
	require.Len(t, f.notify.failures, 1)
}
