package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"shop-admin/internal/core"
)

func testCustomer() core.CustomerFields {
	return core.CustomerFields{
		FBName:        "Jane Shopper",
		RecipientName: "Jane Doe",
		Phone:         "+1 (555) 010-2030",
		Address:       "12 Market Street, Springfield",
	}
}

func statusPtr(s core.OrderStatus) *core.OrderStatus { return &s }

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestOrderService_CancelRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	o, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("20.00"), CourierPrice: decimal.RequireFromString("5.00")},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if o.Status != core.StatusPending {
		t.Errorf("expected pending, got %s", o.Status)
	}
	if !o.TotalPrice.Equal(decimal.RequireFromString("65.00")) {
		t.Errorf("expected total 65.00, got %s", o.TotalPrice)
	}
	if o.Phone != "+15550102030" {
		t.Errorf("expected normalized phone, got %q", o.Phone)
	}
	if q := quantityOf(t, ctx, inv, 1); q != 7 {
		t.Fatalf("expected quantity 7 after order, got %d", q)
	}

	cancelled, err := orders.SetOrderStatus(ctx, o.ID, core.StatusCancelled)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.PreviousStatus != core.StatusPending {
		t.Errorf("expected previous status pending, got %q", cancelled.PreviousStatus)
	}
	if q := quantityOf(t, ctx, inv, 1); q != 10 {
		t.Fatalf("expected quantity 10 after cancel, got %d", q)
	}

	// cancelling again must not return stock twice
	if _, err := orders.SetOrderStatus(ctx, o.ID, core.StatusCancelled); err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if q := quantityOf(t, ctx, inv, 1); q != 10 {
		t.Fatalf("expected quantity 10 after repeated cancel, got %d", q)
	}

	if _, err := orders.SetOrderStatus(ctx, o.ID, core.StatusPending); err != nil {
		t.Fatalf("un-cancel failed: %v", err)
	}
	if q := quantityOf(t, ctx, inv, 1); q != 7 {
		t.Fatalf("expected quantity 7 after un-cancel, got %d", q)
	}

	entries, _ := inv.ListProductHistory(ctx, 1)
	want := []core.HistoryAction{core.ActionStockRemoved, core.ActionStockAdded, core.ActionStockRemoved}
	if len(entries) != len(want) {
		t.Fatalf("expected %d history entries, got %d", len(want), len(entries))
	}
	for i, action := range want {
		// entries are newest first
		if got := entries[len(entries)-1-i].Action; got != action {
			t.Errorf("entry %d: expected %s, got %s", i, action, got)
		}
	}
}

func TestOrderService_NonCancelTransitionsKeepStock(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	o, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 2, Quantity: 2, UnitPrice: decimal.NewFromInt(35)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	for _, s := range []core.OrderStatus{core.StatusProcessing, core.StatusShipped, core.StatusDelivered, core.StatusPending} {
		if _, err := orders.SetOrderStatus(ctx, o.ID, s); err != nil {
			t.Fatalf("SetOrderStatus(%s) failed: %v", s, err)
		}
	}
	if q := quantityOf(t, ctx, inv, 2); q != 2 {
		t.Errorf("expected quantity 2, got %d", q)
	}
}

func TestOrderService_CreateOrder_Atomic(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	_, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(20)},
		{ProductID: 3, Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
	})
	var stockErr *core.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductName != "Gizmo" {
		t.Errorf("expected Gizmo to be named, got %q", stockErr.ProductName)
	}

	if q := quantityOf(t, ctx, inv, 1); q != 10 {
		t.Errorf("expected Widget untouched at 10, got %d", q)
	}
	var nOrders, nItems, nHistory int
	if err := pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM orders), (SELECT COUNT(*) FROM order_items), (SELECT COUNT(*) FROM product_history)
	`).Scan(&nOrders, &nItems, &nHistory); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if nOrders != 0 || nItems != 0 || nHistory != 0 {
		t.Errorf("expected no writes, got orders=%d items=%d history=%d", nOrders, nItems, nHistory)
	}
}

func TestOrderService_CreateOrder_DuplicateProduct(t *testing.T) {
	pool := setupTestDB(t)
	_, orders := newServices(pool)
	ctx := context.Background()

	_, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(20)},
	})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	list, _ := orders.ListOrders(ctx, nil)
	if len(list) != 0 {
		t.Errorf("expected no orders, got %d", len(list))
	}
}

func TestOrderService_CreateOrder_DeletedProduct(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	if err := inv.SoftDeleteProduct(ctx, 2); err != nil {
		t.Fatalf("SoftDeleteProduct failed: %v", err)
	}
	_, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(35)},
	})
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestOrderService_UncancelRejectedWhenStockGone(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	o, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 3, Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.SetOrderStatus(ctx, o.ID, core.StatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	// the freed unit sells elsewhere
	if _, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 3, Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
	}); err != nil {
		t.Fatalf("second CreateOrder failed: %v", err)
	}

	_, err = orders.SetOrderStatus(ctx, o.ID, core.StatusProcessing)
	var stockErr *core.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	got, _ := orders.GetOrder(ctx, o.ID)
	if got.Status != core.StatusCancelled {
		t.Errorf("expected order to stay cancelled, got %s", got.Status)
	}
	if q := quantityOf(t, ctx, inv, 3); q != 0 {
		t.Errorf("expected quantity 0, got %d", q)
	}
}

func TestOrderService_UncancelAllowsDeletedProduct(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	o, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(35)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.SetOrderStatus(ctx, o.ID, core.StatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := inv.SoftDeleteProduct(ctx, 2); err != nil {
		t.Fatalf("SoftDeleteProduct failed: %v", err)
	}
	if _, err := orders.SetOrderStatus(ctx, o.ID, core.StatusPending); err != nil {
		t.Fatalf("un-cancel with deleted product failed: %v", err)
	}
	if q := quantityOf(t, ctx, inv, 2); q != 3 {
		t.Errorf("expected quantity 3, got %d", q)
	}
}

func TestOrderService_UpdateOrderFields(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	o, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("18.00")},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// catalog price change must not affect the quoted unit price
	p, _ := inv.GetProduct(ctx, 1)
	in := inputFrom(p)
	in.Price = decimal.NewNullDecimal(decimal.NewFromInt(99))
	if _, _, err := inv.UpdateProduct(ctx, 1, in); err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}

	c := testCustomer()
	c.Address = "99 Harbour Road, Shelbyville"
	c.Comment = "leave at the door"
	updated, err := orders.UpdateOrderFields(ctx, o.ID, c, statusPtr(core.StatusCancelled))
	if err != nil {
		t.Fatalf("UpdateOrderFields failed: %v", err)
	}
	if updated.Address != c.Address || updated.Comment != c.Comment {
		t.Errorf("fields not updated: %+v", updated.CustomerFields)
	}
	if updated.Status != core.StatusCancelled || updated.PreviousStatus != core.StatusPending {
		t.Errorf("expected pending -> cancelled, got %s -> %s", updated.PreviousStatus, updated.Status)
	}
	if !updated.Items[0].UnitPrice.Equal(decimal.RequireFromString("18.00")) {
		t.Errorf("expected unit price 18.00, got %s", updated.Items[0].UnitPrice)
	}
	if q := quantityOf(t, ctx, inv, 1); q != 10 {
		t.Errorf("expected stock returned by cancellation, got %d", q)
	}

	bad := testCustomer()
	bad.Phone = "12"
	var verr *core.ValidationError
	if _, err := orders.UpdateOrderFields(ctx, o.ID, bad, nil); !errors.As(err, &verr) || verr.Field != "phone" {
		t.Errorf("expected phone validation error, got %v", err)
	}
}

func TestOrderService_DeleteOrder(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	live, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 1, Quantity: 4, UnitPrice: decimal.NewFromInt(20)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	cancelled, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(20)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.SetOrderStatus(ctx, cancelled.ID, core.StatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if q := quantityOf(t, ctx, inv, 1); q != 6 {
		t.Fatalf("expected quantity 6, got %d", q)
	}

	if _, err := orders.DeleteOrder(ctx, live.ID); err != nil {
		t.Fatalf("DeleteOrder(live) failed: %v", err)
	}
	if q := quantityOf(t, ctx, inv, 1); q != 10 {
		t.Errorf("expected live order stock returned, got %d", q)
	}

	if _, err := orders.DeleteOrder(ctx, cancelled.ID); err != nil {
		t.Fatalf("DeleteOrder(cancelled) failed: %v", err)
	}
	if q := quantityOf(t, ctx, inv, 1); q != 10 {
		t.Errorf("expected no extra stock from cancelled order, got %d", q)
	}

	var nf *core.NotFoundError
	if _, err := orders.GetOrder(ctx, live.ID); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	var items int
	_ = pool.QueryRow(ctx, "SELECT COUNT(*) FROM order_items").Scan(&items)
	if items != 0 {
		t.Errorf("expected order items to cascade, found %d", items)
	}
}

func TestOrderService_ListOrders(t *testing.T) {
	pool := setupTestDB(t)
	_, orders := newServices(pool)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
			{ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(35), CourierPrice: decimal.NewFromInt(3)},
		}); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
	}
	first, _ := orders.ListOrders(ctx, nil)
	if len(first) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(first))
	}
	if _, err := orders.SetOrderStatus(ctx, first[0].ID, core.StatusShipped); err != nil {
		t.Fatalf("SetOrderStatus failed: %v", err)
	}

	shipped, err := orders.ListOrders(ctx, statusPtr(core.StatusShipped))
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(shipped) != 1 || shipped[0].ID != first[0].ID {
		t.Fatalf("expected only order %d, got %+v", first[0].ID, shipped)
	}
	if !shipped[0].TotalPrice.Equal(decimal.NewFromInt(38)) {
		t.Errorf("expected total 38, got %s", shipped[0].TotalPrice)
	}
	if shipped[0].Items[0].ProductName != "Gadget" {
		t.Errorf("expected product name Gadget, got %q", shipped[0].Items[0].ProductName)
	}
}

func TestOrderService_ListOrders_ItemsGroupedPerOrder(t *testing.T) {
	pool := setupTestDB(t)
	_, orders := newServices(pool)
	ctx := context.Background()

	a, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 3, Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(20), CourierPrice: decimal.NewFromInt(4)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	b, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
		{ProductID: 2, Quantity: 3, UnitPrice: decimal.NewFromInt(35)},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	list, err := orders.ListOrders(ctx, nil)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("expected orders [%d %d] newest first, got %+v", b.ID, a.ID, list)
	}

	if n := len(list[0].Items); n != 1 || list[0].Items[0].ProductID != 2 {
		t.Errorf("order %d: expected one Gadget line, got %+v", b.ID, list[0].Items)
	}
	if !list[0].TotalPrice.Equal(decimal.NewFromInt(105)) {
		t.Errorf("order %d: expected total 105, got %s", b.ID, list[0].TotalPrice)
	}

	got := list[1].Items
	if len(got) != 2 || got[0].ProductID != 3 || got[1].ProductID != 1 {
		t.Fatalf("order %d: expected lines [3 1] in entry order, got %+v", a.ID, got)
	}
	if !list[1].TotalPrice.Equal(decimal.NewFromInt(49)) {
		t.Errorf("order %d: expected total 49, got %s", a.ID, list[1].TotalPrice)
	}
}

func TestOrderService_ConcurrentOrdersForLastUnit(t *testing.T) {
	pool := setupTestDB(t)
	inv, orders := newServices(pool)
	ctx := context.Background()

	const attempts = 5
	results := make([]error, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := orders.CreateOrder(ctx, testCustomer(), []core.OrderItemInput{
				{ProductID: 3, Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
			})
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, err := range results {
		var stockErr *core.InsufficientStockError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &stockErr):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one order to win the last unit, got %d", succeeded)
	}
	if q := quantityOf(t, ctx, inv, 3); q != 0 {
		t.Errorf("expected quantity 0, got %d", q)
	}
}
