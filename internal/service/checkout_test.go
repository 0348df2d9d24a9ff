package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquapure/waterbot/internal/cart"
	"github.com/aquapure/waterbot/internal/models"
	"github.com/aquapure/waterbot/internal/slots"
)

type fakeCatalog struct {
	products map[int64]*models.Product
	reserved []map[int64]int
	released []map[int64]int
	fail     *StockError
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

func (f *fakeCatalog) Reserve(_ context.Context, q map[int64]int) error {
	if f.fail != nil {
		return f.fail
	}
	f.reserved = append(f.reserved, q)
	return nil
}

func (f *fakeCatalog) Release(_ context.Context, q map[int64]int) error {
	f.released = append(f.released, q)
	return nil
}

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
	a.ID = int64(len(f.byID) + 1)
	f.byID[a.ID] = a
	return nil
}
func (f *fakeAddresses) SetDefault(context.Context, int64, int64) error { return nil }
func (f *fakeAddresses) Default(_ context.Context, userID int64) (*models.Address, error) {
	for _, a := range f.byID {
		if a.UserID == userID && a.IsDefault {
			return a, nil
		}
	}
	return nil, nil
}

type fakeOrders struct {
	seq    int64
	orders map[int64]*models.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[int64]*models.Order)}
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	f.seq++
	o.ID = f.seq
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	clone := *o
	f.orders[o.ID] = &clone
	return nil
}
func (f *fakeOrders) ByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *o
	return &clone, nil
}
func (f *fakeOrders) ByNumber(_ context.Context, number string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.Number == number {
			clone := *o
			return &clone, nil
		}
	}
	return nil, nil
}
func (f *fakeOrders) ListByUser(context.Context, int64, int) ([]models.Order, error) { return nil, nil }
func (f *fakeOrders) ListByStatus(_ context.Context, st models.OrderStatus, _ int) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.Status == st {
			out = append(out, *o)
		}
	}
	return out, nil
}
func (f *fakeOrders) UpdateStatus(_ context.Context, id int64, st models.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok {
		return errors.New("order not found")
	}
	o.Status = st
	o.UpdatedAt = time.Now()
	return nil
}
func (f *fakeOrders) BookedSlotKeys(_ context.Context, from, to time.Time) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, o := range f.orders {
		if o.Status.Terminal() {
			continue
		}
		if o.SlotDate.Before(from) || !o.SlotDate.Before(to) {
			continue
		}
		out[slots.Key(o.SlotDate, o.SlotStartHour, o.SlotEndHour)] = struct{}{}
	}
	return out, nil
}

type fakeDeliveries struct {
	noCourier  bool
	deliveries map[int64]*models.Delivery
}

func newFakeDeliveries() *fakeDeliveries {
	return &fakeDeliveries{deliveries: make(map[int64]*models.Delivery)}
}

func (f *fakeDeliveries) Schedule(_ context.Context, o *models.Order) (*models.Delivery, error) {
	if f.noCourier {
		return nil, ErrNoCourierAvailable
	}
	d := &models.Delivery{
		ID: int64(len(f.deliveries) + 1), OrderID: o.ID, CourierID: 99,
		ScheduledDate: o.SlotDate, StartHour: o.SlotStartHour, EndHour: o.SlotEndHour,
		Status: models.DeliveryScheduled, CreatedAt: time.Now(),
	}
	f.deliveries[o.ID] = d
	return d, nil
}
func (f *fakeDeliveries) ByOrder(_ context.Context, orderID int64) (*models.Delivery, error) {
	return f.deliveries[orderID], nil
}
func (f *fakeDeliveries) UpdateStatus(_ context.Context, id int64, st models.DeliveryStatus) error {
	for _, d := range f.deliveries {
		if d.ID == id {
			d.Status = st
			return nil
		}
	}
	return errors.New("delivery not found")
}
func (f *fakeDeliveries) ListForCourier(context.Context, int64, time.Time) ([]models.Delivery, error) {
	return nil, nil
}

type fakeLoyalty struct {
	balances map[int64]int64
	credits  []int64
	debits   []int64
}

func (f *fakeLoyalty) Balance(_ context.Context, userID int64) (int64, error) {
	return f.balances[userID], nil
}
func (f *fakeLoyalty) Credit(_ context.Context, userID int64, _ *int64, points int64, _ string) error {
	f.balances[userID] += points
	f.credits = append(f.credits, points)
	return nil
}
func (f *fakeLoyalty) Debit(_ context.Context, userID int64, _ *int64, points int64, _ string) error {
	if f.balances[userID] < points {
		return &PaymentError{Method: string(models.PayLoyalty), Reason: "insufficient points"}
	}
	f.balances[userID] -= points
	f.debits = append(f.debits, points)
	return nil
}
func (f *fakeLoyalty) History(context.Context, int64, int) ([]models.LoyaltyTransaction, error) {
	return nil, nil
}

type fakeNotify struct {
	placed   []string
	statuses []string
	renewals []string
	failures []string
}

func (f *fakeNotify) OrderPlaced(_ context.Context, o *models.Order) error {
	f.placed = append(f.placed, o.Number)
	return nil
}
func (f *fakeNotify) OrderStatusChanged(_ context.Context, o *models.Order, _ models.OrderStatus) error {
	f.statuses = append(f.statuses, o.Number+":"+string(o.Status))
	return nil
}
func (f *fakeNotify) RenewalPlaced(_ context.Context, sub *models.Subscription, _ *models.Order) error {
	f.renewals = append(f.renewals, sub.ProductName)
	return nil
}
func (f *fakeNotify) RenewalFailed(_ context.Context, sub *models.Subscription, reason string) error {
	f.failures = append(f.failures, reason)
	return nil
}

type fakeCards struct {
	charged  []string
	refunded []string
	amounts  []int64
}

func (f *fakeCards) Charge(_ context.Context, orderNumber string, _ int64) error {
	f.charged = append(f.charged, orderNumber)
	return nil
}

func (f *fakeCards) Refund(_ context.Context, orderNumber string, amount int64) error {
	f.refunded = append(f.refunded, orderNumber)
	f.amounts = append(f.amounts, amount)
	return nil
}

// finalizeFailOrders rejects the move to pending, simulating a write failure
// after payment capture and courier scheduling both succeeded.
type finalizeFailOrders struct {
	*fakeOrders
}

func (f *finalizeFailOrders) UpdateStatus(ctx context.Context, id int64, st models.OrderStatus) error {
	if st == models.OrderPending {
		return errors.New("write timeout")
	}
	return f.fakeOrders.UpdateStatus(ctx, id, st)
}

type checkoutFixture struct {
	catalog    *fakeCatalog
	addresses  *fakeAddresses
	orders     *fakeOrders
	deliveries *fakeDeliveries
	loyalty    *fakeLoyalty
	notify     *fakeNotify
	svc        *Checkout
	now        time.Time
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		catalog: &fakeCatalog{products: map[int64]*models.Product{
			1: {ID: 1, Name: "Water 19L", Price: 25000, Stock: 100, Active: true},
			2: {ID: 2, Name: "Water 10L", Price: 15000, Stock: 50, Active: true},
		}},
		addresses: &fakeAddresses{byID: map[int64]*models.Address{
			10: {ID: 10, UserID: 5, Line: "12 Amir Temur st", IsDefault: true,
				Latitude: 41.3355, Longitude: 69.2401, HasCoords: true},
			11: {ID: 11, UserID: 5, Line: "3 Navoi ave"},
		}},
		orders:     newFakeOrders(),
		deliveries: newFakeDeliveries(),
		loyalty:    &fakeLoyalty{balances: map[int64]int64{5: 100000}},
		notify:     &fakeNotify{},
		now:        time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewCheckout(CheckoutDeps{
		Catalog:    f.catalog,
		Addresses:  f.addresses,
		Orders:     f.orders,
		Deliveries: f.deliveries,
		Payments:   NewPayments(f.loyalty, nil),
		Loyalty:    f.loyalty,
		Notify:     f.notify,
		Fees:       slots.DefaultFees,
		Warehouse:  slots.Coord{Lat: 41.2995, Lon: 69.2401},
		Now:        func() time.Time { return f.now },
	})
	return f
}

// rebuild wires a Checkout over the fixture's fakes with a different order
// store or payment gateway.
func (f *checkoutFixture) rebuild(orders OrderStore, payments PaymentGateway) *Checkout {
	return NewCheckout(CheckoutDeps{
		Catalog:    f.catalog,
		Addresses:  f.addresses,
		Orders:     orders,
		Deliveries: f.deliveries,
		Payments:   payments,
		Loyalty:    f.loyalty,
		Notify:     f.notify,
		Fees:       slots.DefaultFees,
		Warehouse:  slots.Coord{Lat: 41.2995, Lon: 69.2401},
		Now:        func() time.Time { return f.now },
	})
}

func (f *checkoutFixture) draft() PlaceOrderInput {
	var c cart.Cart
	c.Add(cart.Line{ProductID: 1, Name: "Water 19L", UnitPrice: 25000, Quantity: 2})
	return PlaceOrderInput{
		UserID:        5,
		Cart:          c,
		AddressID:     10,
		Slot:          slots.Slot{Date: f.now.Truncate(24 * time.Hour), StartHour: 11, EndHour: 13},
		PaymentMethod: models.PayCash,
	}
}

func TestPlaceOrderCash(t *testing.T) {
	f := newCheckoutFixture(t)

	o, err := f.svc.PlaceOrder(context.Background(), f.draft())
	require.NoError(t, err)

	assert.Equal(t, models.OrderPending, o.Status)
	assert.Equal(t, int64(50000), o.BaseAmount)
	// ~4 km from the warehouse: 5000 base + ~2000 distance.
	assert.InDelta(t, 7000, o.DeliveryFee, 25)
	assert.Equal(t, o.BaseAmount+o.DeliveryFee, o.TotalAmount)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Water 19L", o.Items[0].Name)

	require.Len(t, f.catalog.reserved, 1)
	assert.Equal(t, map[int64]int{1: 2}, f.catalog.reserved[0])
	assert.NotNil(t, f.deliveries.deliveries[o.ID])
	assert.Equal(t, []string{o.Number}, f.notify.placed)
	assert.Regexp(t, `^ORD\d{14}[0-9a-f]{8}$`, o.Number)
}

func TestPlaceOrderFeeFallbackWithoutCoords(t *testing.T) {
	f := newCheckoutFixture(t)
	in := f.draft()
	in.AddressID = 11

	o, err := f.svc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, slots.DefaultFees.Default, o.DeliveryFee)
}

func TestPlaceOrderStockFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	f.catalog.fail = &StockError{ProductID: 1, Name: "Water 19L", Requested: 2, Available: 1}

	_, err := f.svc.PlaceOrder(context.Background(), f.draft())
	var stock *StockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 1, stock.Available)
	assert.Empty(t, f.orders.orders, "no order may exist after a stock failure")
	assert.Empty(t, f.catalog.released)
}

func TestPlaceOrderLoyaltyInsufficient(t *testing.T) {
	f := newCheckoutFixture(t)
	f.loyalty.balances[5] = 100
	in := f.draft()
	in.PaymentMethod = models.PayLoyalty

	_, err := f.svc.PlaceOrder(context.Background(), in)
	var payment *PaymentError
	require.ErrorAs(t, err, &payment)

	// The staged order is cancelled and stock returned.
	cancelled, _ := f.orders.ListByStatus(context.Background(), models.OrderCancelled, 10)
	require.Len(t, cancelled, 1)
	require.Len(t, f.catalog.released, 1)
	assert.Equal(t, map[int64]int{1: 2}, f.catalog.released[0])
}

func TestPlaceOrderNoCourier(t *testing.T) {
	f := newCheckoutFixture(t)
	f.deliveries.noCourier = true
	f.loyalty.balances[5] = 1000000
	in := f.draft()
	in.PaymentMethod = models.PayLoyalty
	before := f.loyalty.balances[5]

	_, err := f.svc.PlaceOrder(context.Background(), in)
	require.ErrorIs(t, err, ErrNoCourierAvailable)

	cancelled, _ := f.orders.ListByStatus(context.Background(), models.OrderCancelled, 10)
	require.Len(t, cancelled, 1)
	require.Len(t, f.catalog.released, 1)
	assert.Equal(t, before, f.loyalty.balances[5], "captured loyalty payment must be refunded")
}

func TestPlaceOrderFinalizeFailureFreesCourier(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := f.rebuild(&finalizeFailOrders{fakeOrders: f.orders}, NewPayments(f.loyalty, nil))

	_, err := svc.PlaceOrder(context.Background(), f.draft())
	require.Error(t, err)

	cancelled, _ := f.orders.ListByStatus(context.Background(), models.OrderCancelled, 10)
	require.Len(t, cancelled, 1)
	d, err := f.deliveries.ByOrder(context.Background(), cancelled[0].ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.DeliveryFailed, d.Status,
		"a courier scheduled for an abandoned order must be released")
}

func TestPlaceOrderNoCourierRefundsCardCharge(t *testing.T) {
	f := newCheckoutFixture(t)
	f.deliveries.noCourier = true
	cards := &fakeCards{}
	svc := f.rebuild(f.orders, NewPayments(f.loyalty, cards))
	in := f.draft()
	in.PaymentMethod = models.PayCard

	_, err := svc.PlaceOrder(context.Background(), in)
	require.ErrorIs(t, err, ErrNoCourierAvailable)

	require.Len(t, cards.charged, 1)
	assert.Equal(t, cards.charged, cards.refunded, "captured charge must be reversed")
	cancelled, _ := f.orders.ListByStatus(context.Background(), models.OrderCancelled, 10)
	require.Len(t, cancelled, 1)
	require.Len(t, cards.amounts, 1)
	assert.Equal(t, cancelled[0].TotalAmount, cards.amounts[0])
}

func TestPlaceOrderSameSlotTwice(t *testing.T) {
	f := newCheckoutFixture(t)

	// Two checkouts that both saw the slot free commit it twice; commit does
	// not re-check availability.
	first, err := f.svc.PlaceOrder(context.Background(), f.draft())
	require.NoError(t, err)
	second, err := f.svc.PlaceOrder(context.Background(), f.draft())
	require.NoError(t, err)

	assert.Equal(t, first.SlotStartHour, second.SlotStartHour)
	assert.Equal(t, first.SlotDate, second.SlotDate)

	// After commit the slot is gone from listings.
	slotSvc := NewSlots(f.orders, DefaultSlotWindow)
	free, err := slotSvc.Available(context.Background(), f.now)
	require.NoError(t, err)
	taken := slots.Key(first.SlotDate, first.SlotStartHour, first.SlotEndHour)
	for _, s := range free {
		assert.NotEqual(t, taken, s.Key(), "booked slot %s still offered", s.Label())
	}
}

func TestCancelOrderRefunds(t *testing.T) {
	f := newCheckoutFixture(t)
	in := f.draft()
	in.PaymentMethod = models.PayLoyalty
	before := f.loyalty.balances[5]

	o, err := f.svc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelOrder(context.Background(), 5, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.Equal(t, before, f.loyalty.balances[5])
	require.NotEmpty(t, f.catalog.released)
	assert.Equal(t, models.DeliveryFailed, f.deliveries.deliveries[o.ID].Status)
}

func TestCancelOrderWrongUser(t *testing.T) {
	f := newCheckoutFixture(t)
	o, err := f.svc.PlaceOrder(context.Background(), f.draft())
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(context.Background(), 6, o.ID)
	var v *ValidationError
	require.ErrorAs(t, err, &v)
}

func TestAdvanceOrderPipeline(t *testing.T) {
	f := newCheckoutFixture(t)
	o, err := f.svc.PlaceOrder(context.Background(), f.draft())
	require.NoError(t, err)
	before := f.loyalty.balances[5]

	_, err = f.svc.AdvanceOrder(context.Background(), o.ID, models.OrderDelivered)
	var v *ValidationError
	require.ErrorAs(t, err, &v, "pending cannot jump straight to delivered")

	for _, st := range []models.OrderStatus{
		models.OrderConfirmed, models.OrderPreparing, models.OrderOutForDelivery, models.OrderDelivered,
	} {
		_, err = f.svc.AdvanceOrder(context.Background(), o.ID, st)
		require.NoError(t, err, "advance to %s", st)
	}

	assert.Equal(t, before+EarnedPoints(o.TotalAmount), f.loyalty.balances[5])
	assert.Equal(t, models.DeliveryDone, f.deliveries.deliveries[o.ID].Status)
	assert.Len(t, f.notify.statuses, 4)
}

func TestTrack(t *testing.T) {
	f := newCheckoutFixture(t)
	o, err := f.svc.PlaceOrder(context.Background(), f.draft())
	require.NoError(t, err)

	info, err := f.svc.Track(context.Background(), 5, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Number, info.OrderNumber)
	assert.Equal(t, "12 Amir Temur st", info.Address)
	assert.Equal(t, "02.03.2026 11:00-13:00", info.Slot)
	require.NotEmpty(t, info.Events)
	assert.Equal(t, "created", info.Events[0].Kind)

	_, err = f.svc.Track(context.Background(), 6, o.ID)
	var v *ValidationError
	require.ErrorAs(t, err, &v)
}
