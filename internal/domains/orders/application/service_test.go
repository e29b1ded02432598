package application

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/domain"
	catalogports "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/ports"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/ports"
	paymentsdomain "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/platform/notify"
)

// --- fakes -----------------------------------------------------------------

// snapshotter lets the fake transaction manager roll fake state back on
// error, mimicking a database rollback.
type snapshotter interface {
	snapshot() func()
}

type fakeTx struct {
	stores []snapshotter
}

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	restores := make([]func(), 0, len(f.stores))
	for _, store := range f.stores {
		restores = append(restores, store.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.Item(nil), o.Items...)
	if o.ShipperID != nil {
		id := *o.ShipperID
		c.ShipperID = &id
	}
	return &c
}

type fakeOrderRepo struct {
	nextID  int64
	orders  map[int64]*domain.Order
	history []domain.HistoryEntry
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[int64]*domain.Order{}}
}

func (r *fakeOrderRepo) snapshot() func() {
	saved := map[int64]*domain.Order{}
	for id, o := range r.orders {
		saved[id] = cloneOrder(o)
	}
	savedHistory := append([]domain.HistoryEntry(nil), r.history...)
	savedNext := r.nextID
	return func() {
		r.orders = saved
		r.history = savedHistory
		r.nextID = savedNext
	}
}

func (r *fakeOrderRepo) Create(_ context.Context, order *domain.Order) (*domain.Order, error) {
	r.nextID++
	order.ID = r.nextID
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = cloneOrder(order)
	return cloneOrder(order), nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *fakeOrderRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) Update(_ context.Context, order *domain.Order) error {
	if _, ok := r.orders[order.ID]; !ok {
		return ports.ErrNotFound
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.orders[id]; !ok {
		return ports.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *fakeOrderRepo) List(_ context.Context, status *domain.Status) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range r.orders {
		if status == nil || o.Status == *status {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListByCustomer(_ context.Context, customerID int64, limit, offset int) ([]*domain.Order, int64, error) {
	var all []*domain.Order
	for _, o := range r.orders {
		if o.CustomerID != nil && *o.CustomerID == customerID {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []*domain.Order{}, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *fakeOrderRepo) AppendHistory(_ context.Context, entry domain.HistoryEntry) error {
	r.history = append(r.history, entry)
	return nil
}

func (r *fakeOrderRepo) History(_ context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	for _, e := range r.history {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeCustomerRepo struct {
	nextID    int64
	customers map[int64]*domain.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: map[int64]*domain.Customer{}}
}

func (r *fakeCustomerRepo) snapshot() func() {
	saved := map[int64]*domain.Customer{}
	for id, c := range r.customers {
		cc := *c
		saved[id] = &cc
	}
	savedNext := r.nextID
	return func() { r.customers, r.nextID = saved, savedNext }
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id int64) (*domain.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, ports.ErrCustomerNotFound
	}
	cc := *c
	return &cc, nil
}

func (r *fakeCustomerRepo) GetByUserID(_ context.Context, userID int64) (*domain.Customer, error) {
	for _, c := range r.customers {
		if c.UserID != nil && *c.UserID == userID {
			cc := *c
			return &cc, nil
		}
	}
	return nil, ports.ErrCustomerNotFound
}

func (r *fakeCustomerRepo) Create(_ context.Context, customer *domain.Customer) (*domain.Customer, error) {
	r.nextID++
	customer.ID = r.nextID
	cc := *customer
	r.customers[customer.ID] = &cc
	return customer, nil
}

type fakeAddressRepo struct {
	nextID    int64
	addresses map[int64]*domain.Address
}

func newFakeAddressRepo() *fakeAddressRepo {
	return &fakeAddressRepo{addresses: map[int64]*domain.Address{}}
}

func (r *fakeAddressRepo) snapshot() func() {
	saved := map[int64]*domain.Address{}
	for id, a := range r.addresses {
		aa := *a
		saved[id] = &aa
	}
	savedNext := r.nextID
	return func() { r.addresses, r.nextID = saved, savedNext }
}

func (r *fakeAddressRepo) GetByID(_ context.Context, id int64) (*domain.Address, error) {
	a, ok := r.addresses[id]
	if !ok {
		return nil, ports.ErrAddressNotFound
	}
	aa := *a
	return &aa, nil
}

func (r *fakeAddressRepo) Create(_ context.Context, address *domain.Address) (*domain.Address, error) {
	r.nextID++
	address.ID = r.nextID
	aa := *address
	r.addresses[address.ID] = &aa
	return address, nil
}

func (r *fakeAddressRepo) PreferredFor(_ context.Context, customerID int64) (*domain.Address, error) {
	var fallback *domain.Address
	for _, a := range r.addresses {
		if a.CustomerID != customerID {
			continue
		}
		if a.IsDefault {
			aa := *a
			return &aa, nil
		}
		if fallback == nil || a.ID > fallback.ID {
			fallback = a
		}
	}
	if fallback == nil {
		return nil, ports.ErrAddressNotFound
	}
	aa := *fallback
	return &aa, nil
}

type fakeShipperRepo struct {
	shippers map[int64]*domain.Shipper
}

func (r *fakeShipperRepo) GetByID(_ context.Context, id int64) (*domain.Shipper, error) {
	s, ok := r.shippers[id]
	if !ok {
		return nil, ports.ErrShipperNotFound
	}
	ss := *s
	return &ss, nil
}

type fakePaymentRow struct {
	orderID int64
	method  string
	amount  int64
	status  string
}

type fakePayments struct {
	rows []fakePaymentRow
}

func (p *fakePayments) snapshot() func() {
	saved := append([]fakePaymentRow(nil), p.rows...)
	return func() { p.rows = saved }
}

func (p *fakePayments) CreatePending(_ context.Context, orderID int64, method string, amount int64) error {
	p.rows = append(p.rows, fakePaymentRow{orderID: orderID, method: method, amount: amount, status: "PENDING"})
	return nil
}

func (p *fakePayments) CancelPendingByOrder(_ context.Context, orderID int64) error {
	for i := range p.rows {
		if p.rows[i].orderID == orderID && p.rows[i].status != "PAID" {
			p.rows[i].status = "CANCELLED"
		}
	}
	return nil
}

func (p *fakePayments) DeleteByOrder(_ context.Context, orderID int64) error {
	kept := p.rows[:0]
	for _, row := range p.rows {
		if row.orderID != orderID {
			kept = append(kept, row)
		}
	}
	p.rows = kept
	return nil
}

func (p *fakePayments) LatestSnapshot(_ context.Context, orderID int64) (*ports.PaymentSnapshot, error) {
	for i := len(p.rows) - 1; i >= 0; i-- {
		if p.rows[i].orderID == orderID {
			return &ports.PaymentSnapshot{
				Method: p.rows[i].method,
				Status: p.rows[i].status,
				Amount: p.rows[i].amount,
			}, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (p *fakePayments) byOrder(orderID int64) []fakePaymentRow {
	var out []fakePaymentRow
	for _, row := range p.rows {
		if row.orderID == orderID {
			out = append(out, row)
		}
	}
	return out
}

type fakeProducts struct {
	products map[int64]*catalogdomain.Product
}

func (f *fakeProducts) GetProduct(_ context.Context, id int64) (*catalogdomain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, catalogports.ErrNotFound
	}
	pp := *p
	pp.Variants = append([]catalogdomain.Variant(nil), p.Variants...)
	return &pp, nil
}

func skuKey(productID int64, optionID *int64) string {
	if optionID != nil {
		return fmt.Sprintf("o:%d", *optionID)
	}
	return fmt.Sprintf("p:%d", productID)
}

type fakeLedger struct {
	stock map[string]int64
	sold  map[int64]int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{stock: map[string]int64{}, sold: map[int64]int64{}}
}

func (l *fakeLedger) snapshot() func() {
	savedStock := map[string]int64{}
	for k, v := range l.stock {
		savedStock[k] = v
	}
	savedSold := map[int64]int64{}
	for k, v := range l.sold {
		savedSold[k] = v
	}
	return func() { l.stock, l.sold = savedStock, savedSold }
}

func (l *fakeLedger) TryDecrement(_ context.Context, productID int64, optionID *int64, qty int64) error {
	key := skuKey(productID, optionID)
	available, ok := l.stock[key]
	if !ok {
		return catalogports.ErrNotFound
	}
	if available < qty {
		return &catalogports.InsufficientStockError{
			ProductID: productID,
			OptionID:  optionID,
			Requested: qty,
			Available: available,
		}
	}
	l.stock[key] = available - qty
	return nil
}

func (l *fakeLedger) Increment(_ context.Context, productID int64, optionID *int64, qty int64) error {
	l.stock[skuKey(productID, optionID)] += qty
	return nil
}

func (l *fakeLedger) AddSold(_ context.Context, productID int64, qty int64) error {
	l.sold[productID] += qty
	return nil
}

type notifyRecorder struct {
	events []notify.Event
}

func (n *notifyRecorder) Notify(_ context.Context, event notify.Event) error {
	n.events = append(n.events, event)
	return nil
}

// --- fixture ---------------------------------------------------------------

type fixture struct {
	svc       *Service
	orders    *fakeOrderRepo
	customers *fakeCustomerRepo
	addresses *fakeAddressRepo
	payments  *fakePayments
	products  *fakeProducts
	ledger    *fakeLedger
	notifier  *notifyRecorder
}

func newFixture() *fixture {
	f := &fixture{
		orders:    newFakeOrderRepo(),
		customers: newFakeCustomerRepo(),
		addresses: newFakeAddressRepo(),
		payments:  &fakePayments{},
		products:  &fakeProducts{products: map[int64]*catalogdomain.Product{}},
		ledger:    newFakeLedger(),
		notifier:  &notifyRecorder{},
	}
	tx := &fakeTx{stores: []snapshotter{f.orders, f.customers, f.addresses, f.payments, f.ledger}}
	f.svc = NewService(Deps{
		Tx:          tx,
		Orders:      f.orders,
		Customers:   f.customers,
		Addresses:   f.addresses,
		Shippers:    &fakeShipperRepo{shippers: map[int64]*domain.Shipper{5: {ID: 5, FullName: "Shipper Five", Active: true}}},
		Payments:    f.payments,
		PaymentView: f.payments,
		Products:    f.products,
		Ledger:      f.ledger,
		Notifier:    f.notifier,
		Bank:        paymentsdomain.BankAccount{Bank: "VCB", AccountNumber: "007", AccountName: "SHOP"},
	})
	return f
}

func (f *fixture) addFlatProduct(id, price, stock int64) {
	f.products.products[id] = &catalogdomain.Product{ID: id, Name: fmt.Sprintf("product-%d", id), Price: price}
	f.ledger.stock[skuKey(id, nil)] = stock
}

func (f *fixture) addVariantProduct(id, price int64, variants ...catalogdomain.Variant) {
	p := &catalogdomain.Product{ID: id, Name: fmt.Sprintf("product-%d", id), Price: price, Variants: variants}
	f.products.products[id] = p
	for _, v := range variants {
		optionID := v.ID
		f.ledger.stock[skuKey(id, &optionID)] = v.Stock
	}
}

func (f *fixture) seedCustomerWithAddress(userID int64) (customerID, addressID int64) {
	customer, _ := f.customers.Create(context.Background(), &domain.Customer{UserID: &userID, Email: "buyer@example.com"})
	address, _ := f.addresses.Create(context.Background(), &domain.Address{
		CustomerID: customer.ID, Line: "1 Lang Ha", District: "Ba Dinh", City: "Ha Noi", IsDefault: true,
	})
	return customer.ID, address.ID
}

func checkoutInput(userID int64, items ...CheckoutItemInput) CheckoutInput {
	return CheckoutInput{
		UserID:        userID,
		Email:         "buyer@example.com",
		FullName:      "Buyer",
		Phone:         "0900000000",
		PaymentMethod: "COD",
		Items:         items,
	}
}

// --- checkout --------------------------------------------------------------

func TestCheckoutHappyPathCOD(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	f.seedCustomerWithAddress(1)

	result, err := f.svc.Checkout(context.Background(), checkoutInput(1, CheckoutItemInput{ProductID: 10, Quantity: 2}))
	require.NoError(t, err)

	assert.Equal(t, int64(100_000), result.Order.Total)
	assert.Equal(t, domain.StatusPending, result.Order.Status)
	assert.False(t, result.RequiresOtp)
	assert.Equal(t, int64(3), f.ledger.stock["p:10"])

	rows := f.payments.byOrder(result.Order.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "PENDING", rows[0].status)
	assert.Equal(t, "COD", rows[0].method)
	assert.Equal(t, int64(100_000), rows[0].amount)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "order.created", f.notifier.events[0].Type)
}

func TestCheckoutNonCashRequiresOtp(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	f.seedCustomerWithAddress(1)

	input := checkoutInput(1, CheckoutItemInput{ProductID: 10, Quantity: 1})
	input.PaymentMethod = "bank"

	result, err := f.svc.Checkout(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, result.RequiresOtp)
	assert.Equal(t, paymentsdomain.MethodATM, result.Method)
	assert.Equal(t, fmt.Sprintf("DH%d", result.Order.ID), result.Guidance["reference"])
}

func TestCheckoutCreatesCustomerProfileOnFirstPurchase(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)

	input := checkoutInput(9, CheckoutItemInput{ProductID: 10, Quantity: 1})
	input.Address = CheckoutAddressInput{Line: "22 Tran Phu", District: "Ha Dong", City: "Ha Noi"}

	result, err := f.svc.Checkout(context.Background(), input)
	require.NoError(t, err)

	customer, err := f.customers.GetByUserID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, *result.Order.CustomerID)

	// Second purchase reuses the profile.
	_, err = f.svc.Checkout(context.Background(), checkoutInput(9, CheckoutItemInput{ProductID: 10, Quantity: 1}))
	require.NoError(t, err)
	assert.Len(t, f.customers.customers, 1)
}

func TestCheckoutVariantResolution(t *testing.T) {
	f := newFixture()
	f.addVariantProduct(20, 80_000,
		catalogdomain.Variant{ID: 201, ProductID: 20, Color: "Red", Size: "S", Stock: 0},
		catalogdomain.Variant{ID: 202, ProductID: 20, Color: "Blue", Size: "M", Stock: 4},
	)
	f.seedCustomerWithAddress(1)

	// No selector with two variants present: disambiguation required.
	_, err := f.svc.Checkout(context.Background(), checkoutInput(1, CheckoutItemInput{ProductID: 20, Quantity: 1}))
	var variantRequired *VariantRequiredError
	require.ErrorAs(t, err, &variantRequired)
	assert.Equal(t, int64(20), variantRequired.ProductID)
	assert.Len(t, variantRequired.Hints, 2)

	// Case-insensitive color/size match.
	result, err := f.svc.Checkout(context.Background(), checkoutInput(1, CheckoutItemInput{ProductID: 20, Color: "blue", Size: "m", Quantity: 2}))
	require.NoError(t, err)
	require.NotNil(t, result.Order.Items[0].OptionID)
	assert.Equal(t, int64(202), *result.Order.Items[0].OptionID)
	assert.Equal(t, int64(2), f.ledger.stock["o:202"])
}

func TestCheckoutVariantPriceOverride(t *testing.T) {
	f := newFixture()
	override := int64(95_000)
	f.addVariantProduct(21, 80_000,
		catalogdomain.Variant{ID: 211, ProductID: 21, Color: "Black", Size: "L", Stock: 3, Price: &override},
	)
	f.seedCustomerWithAddress(1)

	// Single variant auto-selects.
	result, err := f.svc.Checkout(context.Background(), checkoutInput(1, CheckoutItemInput{ProductID: 21, Quantity: 2}))
	require.NoError(t, err)
	assert.Equal(t, int64(190_000), result.Order.Total)
}

func TestCheckoutUnknownProduct(t *testing.T) {
	f := newFixture()
	f.seedCustomerWithAddress(1)

	_, err := f.svc.Checkout(context.Background(), checkoutInput(1, CheckoutItemInput{ProductID: 404, Quantity: 1}))
	assert.ErrorIs(t, err, catalogports.ErrNotFound)
}

func TestCheckoutAtomicityOnInsufficientStock(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	f.addFlatProduct(11, 70_000, 1)
	f.seedCustomerWithAddress(1)

	_, err := f.svc.Checkout(context.Background(), checkoutInput(1,
		CheckoutItemInput{ProductID: 10, Quantity: 2},
		CheckoutItemInput{ProductID: 11, Quantity: 3},
	))
	var insufficient *catalogports.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(11), insufficient.ProductID)

	// Rollback: no orders, no payments, the first line's decrement undone.
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.payments.rows)
	assert.Equal(t, int64(5), f.ledger.stock["p:10"])
	assert.Equal(t, int64(1), f.ledger.stock["p:11"])
	assert.Empty(t, f.notifier.events)
}

func TestCheckoutAddressValidation(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	customerID, addressID := f.seedCustomerWithAddress(1)
	_ = customerID

	// Foreign address id is rejected.
	otherUser := int64(2)
	otherCustomer, _ := f.customers.Create(context.Background(), &domain.Customer{UserID: &otherUser})
	foreign, _ := f.addresses.Create(context.Background(), &domain.Address{
		CustomerID: otherCustomer.ID, Line: "9 Le Loi", District: "Q1", City: "HCM",
	})

	input := checkoutInput(1, CheckoutItemInput{ProductID: 10, Quantity: 1})
	input.Address.AddressID = &foreign.ID
	_, err := f.svc.Checkout(context.Background(), input)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	// Default fallback works when nothing is provided.
	result, err := f.svc.Checkout(context.Background(), checkoutInput(1, CheckoutItemInput{ProductID: 10, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, addressID, *result.Order.AddressID)

	// A user with no address at all and no inline fields fails.
	_, err = f.svc.Checkout(context.Background(), checkoutInput(3, CheckoutItemInput{ProductID: 10, Quantity: 1}))
	require.ErrorAs(t, err, &validation)
}

func TestCheckoutRejectsEmptyAndInvalidItems(t *testing.T) {
	f := newFixture()

	var validation *ValidationError
	_, err := f.svc.Checkout(context.Background(), checkoutInput(1))
	require.ErrorAs(t, err, &validation)

	_, err = f.svc.Checkout(context.Background(), checkoutInput(1, CheckoutItemInput{ProductID: 10, Quantity: 0}))
	require.ErrorAs(t, err, &validation)
}

// --- status machine --------------------------------------------------------

func (f *fixture) placeOrder(t *testing.T, userID int64) *domain.Order {
	t.Helper()
	f.seedCustomerWithAddress(userID)
	result, err := f.svc.Checkout(context.Background(), checkoutInput(userID, CheckoutItemInput{ProductID: 10, Quantity: 2}))
	require.NoError(t, err)
	return result.Order
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)

	_, err := f.svc.Transition(context.Background(), order.ID, domain.StatusShipped, Actor{UserID: 99, Role: "admin"}, "")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StatusPending, invalid.Current)
	assert.Equal(t, domain.StatusShipped, invalid.Requested)

	current, err := f.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, current.Status)
}

func TestTransitionWritesHistory(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	admin := Actor{UserID: 99, Role: "admin"}

	_, err := f.svc.Transition(context.Background(), order.ID, domain.StatusProcessing, admin, "confirmed by phone")
	require.NoError(t, err)

	history, err := f.svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusPending, history[0].FromStatus)
	assert.Equal(t, domain.StatusProcessing, history[0].ToStatus)
	require.NotNil(t, history[0].ChangedBy)
	assert.Equal(t, int64(99), *history[0].ChangedBy)
	assert.Equal(t, "confirmed by phone", history[0].Note)
}

func TestCompletionCreditsSoldOnce(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	admin := Actor{UserID: 99, Role: "admin"}

	_, err := f.svc.Transition(context.Background(), order.ID, domain.StatusProcessing, admin, "")
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), order.ID, domain.StatusShipped, admin, "")
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), order.ID, domain.StatusCompleted, admin, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.ledger.sold[10])

	// A repeated delivery signal is an illegal transition and must not
	// credit again.
	_, err = f.svc.Transition(context.Background(), order.ID, domain.StatusCompleted, admin, "")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, int64(2), f.ledger.sold[10])
}

func TestCancelRestoresStockAndVoidsPayment(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	assert.Equal(t, int64(3), f.ledger.stock["p:10"])

	_, err := f.svc.Cancel(context.Background(), order.ID, Actor{UserID: 1, Role: "customer"}, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, int64(5), f.ledger.stock["p:10"])
	rows := f.payments.byOrder(order.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "CANCELLED", rows[0].status)

	// Retry does not restore twice.
	_, err = f.svc.Cancel(context.Background(), order.ID, Actor{UserID: 1, Role: "customer"}, "")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, int64(5), f.ledger.stock["p:10"])
}

func TestCancelForbiddenForNonOwner(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)

	_, err := f.svc.Cancel(context.Background(), order.ID, Actor{UserID: 77, Role: "customer"}, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLateCancelRejected(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	admin := Actor{UserID: 99, Role: "admin"}

	_, err := f.svc.Transition(context.Background(), order.ID, domain.StatusProcessing, admin, "")
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), order.ID, domain.StatusShipped, admin, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), order.ID, admin, "")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, int64(3), f.ledger.stock["p:10"])
}

// --- shipper coupling ------------------------------------------------------

func TestAssignShipperPromotesPending(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	admin := Actor{UserID: 99, Role: "admin"}

	updated, err := f.svc.AssignShipper(context.Background(), order.ID, 5, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, updated.Status)
	require.NotNil(t, updated.ShipperID)
	assert.Equal(t, int64(5), *updated.ShipperID)
	require.NotNil(t, updated.AssignedAt)

	history, _ := f.svc.History(context.Background(), order.ID)
	require.Len(t, history, 1)
}

func TestAssignShipperOnProgressedOrderKeepsStatus(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	admin := Actor{UserID: 99, Role: "admin"}

	_, err := f.svc.Transition(context.Background(), order.ID, domain.StatusProcessing, admin, "")
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), order.ID, domain.StatusShipped, admin, "")
	require.NoError(t, err)

	updated, err := f.svc.AssignShipper(context.Background(), order.ID, 5, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, updated.Status)
	require.NotNil(t, updated.ShipperID)
}

func TestAssignShipperRefusedOnTerminalOrder(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	admin := Actor{UserID: 99, Role: "admin"}

	_, err := f.svc.Cancel(context.Background(), order.ID, admin, "")
	require.NoError(t, err)

	_, err = f.svc.AssignShipper(context.Background(), order.ID, 5, admin)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestUnassignShipperRevertsToPending(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	admin := Actor{UserID: 99, Role: "admin"}

	_, err := f.svc.AssignShipper(context.Background(), order.ID, 5, admin)
	require.NoError(t, err)

	updated, err := f.svc.UnassignShipper(context.Background(), order.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, updated.Status)
	assert.Nil(t, updated.ShipperID)
	assert.Nil(t, updated.AssignedAt)
}

func TestUnassignShipperRefusedOnceShipped(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	admin := Actor{UserID: 99, Role: "admin"}

	_, err := f.svc.AssignShipper(context.Background(), order.ID, 5, admin)
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), order.ID, domain.StatusShipped, admin, "")
	require.NoError(t, err)

	_, err = f.svc.UnassignShipper(context.Background(), order.ID, admin)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

// --- payment coupling ------------------------------------------------------

func TestConfirmPaymentAdvancesPendingOnly(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)

	require.NoError(t, f.svc.ConfirmPayment(context.Background(), order.ID))
	current, _ := f.svc.GetOrder(context.Background(), order.ID)
	assert.Equal(t, domain.StatusProcessing, current.Status)

	// Already progressed: no-op success.
	require.NoError(t, f.svc.ConfirmPayment(context.Background(), order.ID))
	current, _ = f.svc.GetOrder(context.Background(), order.ID)
	assert.Equal(t, domain.StatusProcessing, current.Status)

	history, _ := f.svc.History(context.Background(), order.ID)
	assert.Len(t, history, 1)
}

func TestConfirmPaymentRefusedOnCancelledOrder(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)

	_, err := f.svc.Cancel(context.Background(), order.ID, Actor{UserID: 99, Role: "admin"}, "")
	require.NoError(t, err)

	err = f.svc.ConfirmPayment(context.Background(), order.ID)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

// --- queries ---------------------------------------------------------------

func TestMyOrdersAndSummary(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)

	page, err := f.svc.MyOrders(context.Background(), 1, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, int64(1), page.Total)

	// A user who never bought anything has no orders, not an error.
	none, err := f.svc.MyOrders(context.Background(), 1234, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, none.Orders)
	assert.Zero(t, none.Total)

	summary, err := f.svc.Summary(context.Background(), order.ID, Actor{UserID: 1, Role: "customer"})
	require.NoError(t, err)
	require.NotNil(t, summary.Address)
	require.NotNil(t, summary.Payment)
	assert.Equal(t, "PENDING", summary.Payment.Status)

	_, err = f.svc.Summary(context.Background(), order.ID, Actor{UserID: 77, Role: "customer"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMyOrdersPaginates(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 50)
	first := f.placeOrder(t, 1)
	second := f.placeOrder(t, 1)
	third := f.placeOrder(t, 1)

	page, err := f.svc.MyOrders(context.Background(), 1, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, third.ID, page.Orders[0].ID)
	assert.Equal(t, second.ID, page.Orders[1].ID)

	page, err = f.svc.MyOrders(context.Background(), 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, first.ID, page.Orders[0].ID)

	// Past the end is an empty page, not an error.
	page, err = f.svc.MyOrders(context.Background(), 1, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Equal(t, int64(3), page.Total)

	// Loose inputs are clamped: page and size floor at 1 and the size
	// caps at 50.
	page, err = f.svc.MyOrders(context.Background(), 1, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
	assert.Len(t, page.Orders, 3)
}

func TestDeleteRestoresStockForOpenOrders(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)
	assert.Equal(t, int64(3), f.ledger.stock["p:10"])

	require.NoError(t, f.svc.Delete(context.Background(), order.ID))
	assert.Equal(t, int64(5), f.ledger.stock["p:10"])
	assert.Empty(t, f.payments.rows)
	_, err := f.svc.GetOrder(context.Background(), order.ID)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestDeleteDoesNotRestoreStockForCancelledOrders(t *testing.T) {
	f := newFixture()
	f.addFlatProduct(10, 50_000, 5)
	order := f.placeOrder(t, 1)

	_, err := f.svc.Cancel(context.Background(), order.ID, Actor{UserID: 99, Role: "admin"}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.ledger.stock["p:10"])

	require.NoError(t, f.svc.Delete(context.Background(), order.ID))
	assert.Equal(t, int64(5), f.ledger.stock["p:10"])
}
