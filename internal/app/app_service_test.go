package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop-admin/internal/ai"
	"shop-admin/internal/core"
	"shop-admin/internal/drafts"
	"shop-admin/internal/events"
	"shop-admin/internal/metrics"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeInventory struct {
	core.InventoryService
	products []core.Product
}

func (f *fakeInventory) ListProducts(context.Context) ([]core.Product, error) {
	return f.products, nil
}

func (f *fakeInventory) AdjustStock(_ context.Context, id, reduceBy int, _ string) (*core.Product, error) {
	for i := range f.products {
		if f.products[i].ID != id {
			continue
		}
		p := &f.products[i]
		if reduceBy > p.Quantity {
			return nil, &core.InsufficientStockError{ProductID: id, ProductName: p.Name, Available: p.Quantity, Requested: reduceBy}
		}
		p.Quantity -= reduceBy
		cp := *p
		return &cp, nil
	}
	return nil, &core.NotFoundError{Entity: "product", ID: id}
}

func (f *fakeInventory) ReserveStockTx(context.Context, pgx.Tx, core.StockMove, []core.StockLine) error {
	return nil
}

func (f *fakeInventory) ReleaseStockTx(context.Context, pgx.Tx, core.StockMove, []core.StockLine) error {
	return nil
}

type fakeOrders struct {
	core.OrderService
	nextID  int
	orders  map[int]*core.Order
	created []CreateOrderRequest
	fail    error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{nextID: 1, orders: map[int]*core.Order{}}
}

func (f *fakeOrders) CreateOrder(_ context.Context, customer core.CustomerFields, items []core.OrderItemInput) (*core.Order, error) {
	f.created = append(f.created, CreateOrderRequest{Customer: customer, Items: items})
	if f.fail != nil {
		return nil, f.fail
	}
	o := &core.Order{ID: f.nextID, CustomerFields: customer, Status: core.StatusPending}
	for _, in := range items {
		o.Items = append(o.Items, core.OrderItem{
			ProductID:    in.ProductID,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			CourierPrice: in.CourierPrice,
		})
	}
	o.TotalPrice = core.OrderTotal(o.Items)
	f.orders[o.ID] = o
	f.nextID++
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) SetOrderStatus(_ context.Context, id int, status core.OrderStatus) (*core.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "order", ID: id}
	}
	cp := *o
	if o.Status != status {
		cp.PreviousStatus = o.Status
		o.Status = status
		cp.Status = status
	}
	return &cp, nil
}

func (f *fakeOrders) DeleteOrder(_ context.Context, id int) (*core.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "order", ID: id}
	}
	delete(f.orders, id)
	return o, nil
}

type recordingPublisher struct {
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, e events.OrderEvent) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type stubExtractor struct {
	draft *ai.OrderDraft
}

func (s stubExtractor) ExtractOrder(_ context.Context, _ string, catalog []core.Product) (*ai.OrderDraft, error) {
	d := *s.draft
	d.Items = append([]ai.DraftItem(nil), s.draft.Items...)
	d.Normalize(catalog)
	return &d, nil
}

type fixture struct {
	svc       ApplicationService
	inventory *fakeInventory
	orders    *fakeOrders
	events    *recordingPublisher
	metrics   *metrics.Metrics
	drafts    *drafts.MemoryStore
}

func newFixture(extractor ai.OrderExtractor) *fixture {
	f := &fixture{
		inventory: &fakeInventory{products: []core.Product{
			{ID: 1, Name: "Widget", Price: decimal.RequireFromString("20.00"), Quantity: 10},
		}},
		orders:  newFakeOrders(),
		events:  &recordingPublisher{},
		metrics: metrics.New(),
		drafts:  drafts.NewMemoryStore(time.Minute),
	}
	f.svc = NewAppService(Dependencies{
		Inventory: f.inventory,
		Orders:    f.orders,
		Extractor: extractor,
		Drafts:    f.drafts,
		Events:    f.events,
		Metrics:   f.metrics,
	})
	return f
}

// counter reads a counter value from the registry by name and label set.
func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func widgetOrder(qty int) CreateOrderRequest {
	return CreateOrderRequest{
		Customer: core.CustomerFields{FBName: "Jane", RecipientName: "Jane Doe", Phone: "+15550102030", Address: "12 Market St"},
		Items: []core.OrderItemInput{{
			ProductID:    1,
			Quantity:     qty,
			UnitPrice:    decimal.RequireFromString("20.00"),
			CourierPrice: decimal.RequireFromString("5.00"),
		}},
	}
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestCreateOrder_PublishesAndCounts(t *testing.T) {
	f := newFixture(nil)
	res, err := f.svc.CreateOrder(context.Background(), widgetOrder(3))
	require.NoError(t, err)
	assert.Equal(t, "65.00", res.Order.TotalPrice.StringFixed(2))

	require.Len(t, f.events.events, 1)
	e := f.events.events[0]
	assert.Equal(t, events.OrderCreated, e.Type)
	assert.Equal(t, "order.created", e.RoutingKey())
	assert.Equal(t, res.Order.ID, e.OrderID)

	assert.Equal(t, 3.0, f.counter(t, "shop_stock_units_moved_total", map[string]string{"direction": "removed"}))
	assert.Equal(t, 1.0, f.counter(t, "shop_operations_total", map[string]string{"operation": "create_order", "result": "success"}))
}

func TestCreateOrder_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(nil)
	f.events.err = errors.New("broker down")

	_, err := f.svc.CreateOrder(context.Background(), widgetOrder(1))
	assert.NoError(t, err)
	assert.Len(t, f.events.events, 1)
}

func TestCreateOrder_RejectionIsRecorded(t *testing.T) {
	f := newFixture(nil)
	f.orders.fail = &core.InsufficientStockError{ProductID: 1, ProductName: "Widget", Available: 10, Requested: 11}

	_, err := f.svc.CreateOrder(context.Background(), widgetOrder(11))
	var serr *core.InsufficientStockError
	require.ErrorAs(t, err, &serr)
	assert.Empty(t, f.events.events)
	assert.Equal(t, 1.0, f.counter(t, "shop_operations_total", map[string]string{"operation": "create_order", "result": "error"}))
}

func TestSetOrderStatus_CancelRoundTrip(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, widgetOrder(3))
	require.NoError(t, err)

	cancelled, err := f.svc.SetOrderStatus(ctx, res.Order.ID, "Cancelled")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, cancelled.Order.Status)
	assert.Equal(t, 3.0, f.counter(t, "shop_stock_units_moved_total", map[string]string{"direction": "added"}))

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, events.OrderStatusChanged, last.Type)
	assert.Equal(t, "pending", last.OldStatus)
	assert.Equal(t, "cancelled", last.Status)

	// same status again: no event, no stock movement
	n := len(f.events.events)
	_, err = f.svc.SetOrderStatus(ctx, res.Order.ID, "cancelled")
	require.NoError(t, err)
	assert.Len(t, f.events.events, n)
	assert.Equal(t, 3.0, f.counter(t, "shop_stock_units_moved_total", map[string]string{"direction": "added"}))

	_, err = f.svc.SetOrderStatus(ctx, res.Order.ID, "pending")
	require.NoError(t, err)
	assert.Equal(t, 6.0, f.counter(t, "shop_stock_units_moved_total", map[string]string{"direction": "removed"}))
}

func TestSetOrderStatus_UnknownStatus(t *testing.T) {
	f := newFixture(nil)
	_, err := f.svc.SetOrderStatus(context.Background(), 1, "lost")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}

func TestDeleteOrder_PublishesDeleted(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, widgetOrder(2))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteOrder(ctx, res.Order.ID))
	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, events.OrderDeleted, last.Type)
	assert.Equal(t, 2.0, f.counter(t, "shop_stock_units_moved_total", map[string]string{"direction": "added"}))

	err = f.svc.DeleteOrder(ctx, res.Order.ID)
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(nil)
	p, err := f.svc.AdjustStock(context.Background(), AdjustStockRequest{ProductID: 1, ReduceBy: 4, Note: "damaged"})
	require.NoError(t, err)
	assert.Equal(t, 6, p.Quantity)

	_, err = f.svc.AdjustStock(context.Background(), AdjustStockRequest{ProductID: 1, ReduceBy: 15})
	var serr *core.InsufficientStockError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 6, serr.Available)
}

func TestListOrders_InvalidFilter(t *testing.T) {
	f := newFixture(nil)
	status := "archived"
	_, err := f.svc.ListOrders(context.Background(), &status)
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExtractOrderDraft_Disabled(t *testing.T) {
	f := newFixture(nil)
	_, err := f.svc.ExtractOrderDraft(context.Background(), "3 widgets please")
	assert.ErrorIs(t, err, ErrExtractionDisabled)
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(stubExtractor{draft: &ai.OrderDraft{
		FBName:        "Jane",
		RecipientName: "Jane Doe",
		Phone:         "+15550102030",
		Address:       "12 Market St",
		Items: []ai.DraftItem{
			{ProductID: 1, Quantity: 3, CourierPrice: "5.00"},
			{ProductID: 42, Quantity: 1},
		},
		Confidence: 0.9,
	}})
	ctx := context.Background()

	_, err := f.svc.ExtractOrderDraft(ctx, "   ")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	res, err := f.svc.ExtractOrderDraft(ctx, "hi, 3 widgets to 12 Market St please")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Len(t, res.Draft.Items, 1)
	assert.Equal(t, "20.00", res.Draft.Items[0].UnitPrice)
	assert.Contains(t, res.Draft.Notes, "unknown product id 42")
	assert.Empty(t, f.orders.created, "extraction must not create an order")

	got, err := f.svc.GetDraft(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.Draft.FBName)

	order, err := f.svc.ConfirmDraft(ctx, res.Token, nil)
	require.NoError(t, err)
	assert.Equal(t, "65.00", order.Order.TotalPrice.StringFixed(2))

	_, err = f.svc.ConfirmDraft(ctx, res.Token, nil)
	assert.ErrorIs(t, err, drafts.ErrNotFound)
}

func TestConfirmDraft_FailureKeepsDraft(t *testing.T) {
	f := newFixture(stubExtractor{draft: &ai.OrderDraft{
		FBName: "Jane",
		Items:  []ai.DraftItem{{ProductID: 1, Quantity: 3}},
	}})
	ctx := context.Background()
	res, err := f.svc.ExtractOrderDraft(ctx, "3 widgets")
	require.NoError(t, err)

	f.orders.fail = &core.ValidationError{Field: "customer.address", Message: "is required"}
	_, err = f.svc.ConfirmDraft(ctx, res.Token, nil)
	require.Error(t, err)

	_, err = f.svc.GetDraft(ctx, res.Token)
	assert.NoError(t, err, "draft should survive a rejected confirmation")

	f.orders.fail = nil
	edited := widgetOrder(2)
	order, err := f.svc.ConfirmDraft(ctx, res.Token, &edited)
	require.NoError(t, err)
	assert.Equal(t, 2, order.Order.Items[0].Quantity)
}

func TestConfirmDraft_UnreadablePayloadKeepsDraft(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	require.NoError(t, f.drafts.Put(ctx, drafts.Draft{Token: "bad", Payload: json.RawMessage(`"not a draft"`)}))

	_, err := f.svc.ConfirmDraft(ctx, "bad", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, drafts.ErrNotFound)

	_, err = f.drafts.Get(ctx, "bad")
	require.NoError(t, err, "draft should survive an unreadable payload")

	edited := widgetOrder(1)
	order, err := f.svc.ConfirmDraft(ctx, "bad", &edited)
	require.NoError(t, err)
	assert.Equal(t, 1, order.Order.Items[0].Quantity)
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(fmt.Errorf("wrapped: %w", &core.ConflictError{Message: "in use"})))
	assert.True(t, IsDomainError(drafts.ErrNotFound))
	assert.False(t, IsDomainError(errors.New("connection refused")))
}
