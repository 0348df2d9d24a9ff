package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquapure/waterbot/core/telegram/state"
	"github.com/aquapure/waterbot/internal/cart"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/service"
	"github.com/aquapure/waterbot/internal/slots"
)

type fakeCatalog struct {
	products map[int64]*models.Product
}

func (f *fakeCatalog) ListActive(context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}
func (f *fakeCatalog) Get(_ context.Context, id int64) (*models.Product, error) {
	return f.products[id], nil
}
func (f *fakeCatalog) Reserve(context.Context, map[int64]int) error { return nil }
func (f *fakeCatalog) Release(context.Context, map[int64]int) error { return nil }

type fakeAddresses struct {
	byID map[int64]*models.Address
}

func (f *fakeAddresses) ListByUser(_ context.Context, userID int64) ([]models.Address, error) {
	var out []models.Address
	for _, a := range f.byID {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}
func (f *fakeAddresses) Get(_ context.Context, id int64) (*models.Address, error) {
	return f.byID[id], nil
}
func (f *fakeAddresses) Create(_ context.Context, a *models.Address) error {
	a.ID = int64(len(f.byID) + 100)
	f.byID[a.ID] = a
	return nil
}
func (f *fakeAddresses) SetDefault(context.Context, int64, int64) error { return nil }
func (f *fakeAddresses) Default(context.Context, int64) (*models.Address, error) {
	return nil, nil
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
	fee    int64
	placed []service.PlaceOrderInput
	err    error
}

func (f *fakePlacer) Quote(_ context.Context, _, _ int64, c *cart.Cart) (int64, int64, error) {
	return f.fee, c.Subtotal() + f.fee, nil
}
func (f *fakePlacer) PlaceOrder(_ context.Context, in service.PlaceOrderInput) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.placed = append(f.placed, in)
	return &models.Order{
		ID: int64(len(f.placed)), Number: "ORD20260302080000deadbeef",
		UserID: in.UserID, Status: models.OrderPending,
		BaseAmount: in.Cart.Subtotal(), DeliveryFee: f.fee,
		TotalAmount: in.Cart.Subtotal() + f.fee,
	}, nil
}

type fakeSubs struct {
	seq  int64
	subs map[int64]*models.Subscription
}

func newFakeSubs() *fakeSubs { return &fakeSubs{subs: make(map[int64]*models.Subscription)} }

func (f *fakeSubs) Create(_ context.Context, s *models.Subscription) error {
	f.seq++
	s.ID = f.seq
	clone := *s
	f.subs[s.ID] = &clone
	return nil
}
func (f *fakeSubs) ByID(_ context.Context, id int64) (*models.Subscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}
func (f *fakeSubs) ListByUser(_ context.Context, userID int64) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}
func (f *fakeSubs) UpdateStatus(_ context.Context, id int64, st models.SubscriptionStatus) error {
	f.subs[id].Status = st
	return nil
}
func (f *fakeSubs) DueBefore(context.Context, time.Time) ([]models.Subscription, error) {
	return nil, nil
}
func (f *fakeSubs) AdvanceNextDelivery(_ context.Context, id int64, next time.Time) error {
	f.subs[id].NextDelivery = next
	return nil
}

type fakeLoyalty struct {
	balance int64
}

func (f *fakeLoyalty) Balance(context.Context, int64) (int64, error) { return f.balance, nil }
func (f *fakeLoyalty) Credit(context.Context, int64, *int64, int64, string) error {
	return nil
}
func (f *fakeLoyalty) Debit(context.Context, int64, *int64, int64, string) error {
	return nil
}
func (f *fakeLoyalty) History(context.Context, int64, int) ([]models.LoyaltyTransaction, error) {
	return nil, nil
}

type engineFixture struct {
	engine *Engine
	placer *fakePlacer
	subs   *fakeSubs
	user   *models.User
	now    time.Time
	slot   slots.Slot
}

const tgID int64 = 777

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	slot := slots.Slot{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), StartHour: 11, EndHour: 13}
	placer := &fakePlacer{fee: 7000}
	subs := newFakeSubs()
	f := &engineFixture{
		placer: placer,
		subs:   subs,
		user:   &models.User{ID: 5, TelegramID: tgID},
		now:    now,
		slot:   slot,
	}
	f.engine = NewEngine(EngineDeps{
		Manager: state.NewMemoryManager(),
		Catalog: &fakeCatalog{products: map[int64]*models.Product{
			1: {ID: 1, Name: "Water 19L", Price: 25000, Stock: 100, Active: true},
			2: {ID: 2, Name: "Water 10L", Price: 15000, Stock: 50, Active: true},
			3: {ID: 3, Name: "Retired", Price: 1, Active: false},
		}},
		Addresses: &fakeAddresses{byID: map[int64]*models.Address{
			10: {ID: 10, UserID: 5, Line: "12 Amir Temur st"},
		}},
		Slots:   &fakeSlots{free: []slots.Slot{slot}},
		Orders:  placer,
		Subs:    subs,
		Loyalty: &fakeLoyalty{balance: 42000},
		Now:     func() time.Time { return f.now },
	})
	return f
}

// driveToConfirm walks the checkout flow up to the confirmation screen.
func (f *engineFixture) driveToConfirm(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.engine.Begin(tgID)

	_, err := f.engine.PickProduct(ctx, tgID, 1)
	require.NoError(t, err)
	_, err = f.engine.SetQuantity(ctx, tgID, "2")
	require.NoError(t, err)

	_, err = f.engine.ToCheckout(ctx, tgID, f.user)
	require.NoError(t, err)
	_, err = f.engine.PickAddress(ctx, tgID, f.user, 10)
	require.NoError(t, err)
	_, err = f.engine.PickSlot(ctx, tgID, f.user, f.slot.Date.Unix(), f.slot.StartHour, f.slot.EndHour)
	require.NoError(t, err)
	_, err = f.engine.PickPayment(ctx, tgID, f.user, models.PayCash)
	require.NoError(t, err)
	require.Equal(t, StepConfirm, f.engine.Step(tgID))
}

func TestCheckoutHappyPath(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	list, err := f.engine.StartCheckout(ctx)
	require.NoError(t, err)
	assert.Len(t, list.Products, 2, "inactive products are hidden")

	f.driveToConfirm(t)

	placed, err := f.engine.Confirm(ctx, tgID, f.user)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, placed.Order.Status)
	assert.Equal(t, StepIdle, f.engine.Step(tgID))

	require.Len(t, f.placer.placed, 1)
	in := f.placer.placed[0]
	assert.Equal(t, int64(5), in.UserID)
	assert.Equal(t, int64(10), in.AddressID)
	assert.Equal(t, f.slot.Key(), in.Slot.Key())
}

func TestDuplicateProductKeepsSeparateLines(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Begin(tgID)

	_, err := f.engine.PickProduct(ctx, tgID, 1)
	require.NoError(t, err)
	_, err = f.engine.SetQuantity(ctx, tgID, "2")
	require.NoError(t, err)
	_, err = f.engine.PickProduct(ctx, tgID, 1)
	require.NoError(t, err)
	view, err := f.engine.SetQuantity(ctx, tgID, "3")
	require.NoError(t, err)

	require.Len(t, view.Cart.Lines, 2)
	assert.Equal(t, int64(125000), view.Subtotal)
}

func TestQuantityValidation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Begin(tgID)
	_, err := f.engine.PickProduct(ctx, tgID, 1)
	require.NoError(t, err)

	for _, bad := range []string{"zero", "0", "-3", "101", ""} {
		_, err := f.engine.SetQuantity(ctx, tgID, bad)
		var v *service.ValidationError
		require.ErrorAs(t, err, &v, "input %q", bad)
		assert.Equal(t, StepQuantity, f.engine.Step(tgID), "step must not move on bad input")
	}

	view, err := f.engine.SetQuantity(ctx, tgID, " 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, view.Cart.Lines[0].Quantity)
}

func TestOutOfOrderActionRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Begin(tgID)

	_, err := f.engine.PickPayment(ctx, tgID, f.user, models.PayCash)
	var v *service.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, StepCart, f.engine.Step(tgID))

	// The user sees a plain message; the rejected move stays in the error
	// chain for the handler log.
	assert.NotContains(t, v.Reason, "transition")
	assert.NotContains(t, v.Reason, string(StepCart))
	require.Error(t, v.Cause)
	assert.Contains(t, v.Cause.Error(), string(StepCart))
}

func TestEmptyCartCannotCheckout(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Begin(tgID)

	_, err := f.engine.ToCheckout(context.Background(), tgID, f.user)
	var v *service.ValidationError
	require.ErrorAs(t, err, &v)
}

func TestStockFailureReturnsToCart(t *testing.T) {
	f := newEngineFixture(t)
	f.driveToConfirm(t)
	f.placer.err = &service.StockError{ProductID: 1, Name: "Water 19L", Requested: 2, Available: 1}

	_, err := f.engine.Confirm(context.Background(), tgID, f.user)
	var stock *service.StockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, StepCart, f.engine.Step(tgID))

	// The draft survives for another attempt.
	view, err := f.engine.Cart(tgID)
	require.NoError(t, err)
	assert.Len(t, view.Cart.Lines, 1)
}

func TestPaymentFailureReturnsToPayment(t *testing.T) {
	f := newEngineFixture(t)
	f.driveToConfirm(t)
	f.placer.err = &service.PaymentError{Method: "card", Reason: "declined"}

	_, err := f.engine.Confirm(context.Background(), tgID, f.user)
	var payment *service.PaymentError
	require.ErrorAs(t, err, &payment)
	assert.Equal(t, StepPayment, f.engine.Step(tgID))
}

func TestNoCourierReturnsToSlot(t *testing.T) {
	f := newEngineFixture(t)
	f.driveToConfirm(t)
	f.placer.err = service.ErrNoCourierAvailable

	_, err := f.engine.Confirm(context.Background(), tgID, f.user)
	require.ErrorIs(t, err, service.ErrNoCourierAvailable)
	assert.Equal(t, StepSlot, f.engine.Step(tgID))
}

func TestPastSlotRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Begin(tgID)
	_, err := f.engine.PickProduct(ctx, tgID, 1)
	require.NoError(t, err)
	_, err = f.engine.SetQuantity(ctx, tgID, "1")
	require.NoError(t, err)
	_, err = f.engine.ToCheckout(ctx, tgID, f.user)
	require.NoError(t, err)
	_, err = f.engine.PickAddress(ctx, tgID, f.user, 10)
	require.NoError(t, err)

	yesterday := f.slot.Date.AddDate(0, 0, -1)
	_, err = f.engine.PickSlot(ctx, tgID, f.user, yesterday.Unix(), 11, 13)
	var v *service.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, StepSlot, f.engine.Step(tgID))
}

func TestCancelLeavesNothing(t *testing.T) {
	f := newEngineFixture(t)
	f.driveToConfirm(t)

	f.engine.CancelFlow(tgID)
	assert.Equal(t, StepIdle, f.engine.Step(tgID))
	_, err := f.engine.Cart(tgID)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
	assert.Empty(t, f.placer.placed)
}

func TestExpiredSessionSurfaces(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.SetQuantity(context.Background(), tgID, "2")
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestSaveNewAddress(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Begin(tgID)
	_, err := f.engine.PickProduct(ctx, tgID, 1)
	require.NoError(t, err)
	_, err = f.engine.SetQuantity(ctx, tgID, "1")
	require.NoError(t, err)
	_, err = f.engine.ToCheckout(ctx, tgID, f.user)
	require.NoError(t, err)

	require.NoError(t, f.engine.RequestNewAddress(tgID))
	assert.Equal(t, StepNewAddress, f.engine.Step(tgID))

	_, err = f.engine.SaveAddress(ctx, tgID, f.user, "abc")
	var v *service.ValidationError
	require.ErrorAs(t, err, &v)

	slotsView, err := f.engine.SaveAddress(ctx, tgID, f.user, "office: 3 Navoi ave, Tashkent")
	require.NoError(t, err)
	require.NotEmpty(t, slotsView.Slots)
	assert.Equal(t, StepSlot, f.engine.Step(tgID))
}

func TestSubscriptionFlow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.engine.BeginSubscription(tgID)
	_, err := f.engine.PickSubProduct(ctx, tgID, 2)
	require.NoError(t, err)

	err = f.engine.SetSubFrequency(ctx, tgID, "0")
	var v *service.ValidationError
	require.ErrorAs(t, err, &v)

	require.NoError(t, f.engine.SetSubFrequency(ctx, tgID, "7"))

	summary, err := f.engine.SetSubQuantity(ctx, tgID, "3")
	require.NoError(t, err)
	assert.Equal(t, int64(45000), summary.PerDelivery)

	placed, err := f.engine.ConfirmSubscription(ctx, tgID, f.user)
	require.NoError(t, err)
	sub := placed.Subscription
	assert.Equal(t, models.SubActive, sub.Status)
	assert.Equal(t, f.now.AddDate(0, 0, 7), sub.NextDelivery)
	assert.Equal(t, StepIdle, f.engine.Step(tgID))
}

func TestSubscriptionStatusMoves(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.BeginSubscription(tgID)
	_, err := f.engine.PickSubProduct(ctx, tgID, 2)
	require.NoError(t, err)
	require.NoError(t, f.engine.SetSubFrequency(ctx, tgID, "14"))
	_, err = f.engine.SetSubQuantity(ctx, tgID, "1")
	require.NoError(t, err)
	placed, err := f.engine.ConfirmSubscription(ctx, tgID, f.user)
	require.NoError(t, err)
	id := placed.Subscription.ID

	sub, err := f.engine.SetSubscriptionStatus(ctx, f.user, id, models.SubPaused)
	require.NoError(t, err)
	assert.Equal(t, models.SubPaused, sub.Status)

	sub, err = f.engine.SetSubscriptionStatus(ctx, f.user, id, models.SubActive)
	require.NoError(t, err)
	assert.Equal(t, models.SubActive, sub.Status)

	_, err = f.engine.SetSubscriptionStatus(ctx, f.user, id, models.SubCancelled)
	require.NoError(t, err)

	_, err = f.engine.SetSubscriptionStatus(ctx, f.user, id, models.SubActive)
	var v *service.ValidationError
	require.ErrorAs(t, err, &v, "cancelled is terminal")

	stranger := &models.User{ID: 9}
	_, err = f.engine.SetSubscriptionStatus(ctx, stranger, id, models.SubPaused)
	require.ErrorAs(t, err, &v)
}
