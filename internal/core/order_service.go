package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderService manages orders and their items as a unit. Every stock effect
// of an order goes through InventoryService inside the order's transaction.
type OrderService interface {
	// CreateOrder places an order, reserving stock for every item.
	CreateOrder(ctx context.Context, customer CustomerFields, items []OrderItemInput) (*Order, error)
	// UpdateOrderFields replaces the customer fields and, when status is
	// non-nil, applies a status change in the same transaction.
	UpdateOrderFields(ctx context.Context, orderID int, customer CustomerFields, status *OrderStatus) (*Order, error)
	// SetOrderStatus moves an order to status. Entering cancelled returns the
	// items' stock; leaving cancelled reserves it again or fails.
	SetOrderStatus(ctx context.Context, orderID int, status OrderStatus) (*Order, error)
	// DeleteOrder removes an order, returning held stock first. The returned
	// order is the state it had before deletion.
	DeleteOrder(ctx context.Context, orderID int) (*Order, error)

	// Queries
	GetOrder(ctx context.Context, orderID int) (*Order, error)
	ListOrders(ctx context.Context, status *OrderStatus) ([]Order, error)
}

type orderService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
	phone     *regexp.Regexp
}

// NewOrderService returns an OrderService. A nil phone pattern selects DefaultPhonePattern.
func NewOrderService(pool *pgxpool.Pool, inventory InventoryService, phone *regexp.Regexp) OrderService {
	if phone == nil {
		phone = DefaultPhonePattern
	}
	return &orderService{pool: pool, inventory: inventory, phone: phone}
}

// stockEffect is what a status transition does to the order's stock.
type stockEffect int

const (
	effectNone stockEffect = iota
	effectRelease
	effectReserve
)

// planTransition decides the stock effect of moving from old to next. Only
// crossings of the cancelled boundary move stock.
func planTransition(old, next OrderStatus) stockEffect {
	switch {
	case old == next:
		return effectNone
	case next == StatusCancelled:
		return effectRelease
	case old == StatusCancelled:
		return effectReserve
	}
	return effectNone
}

// ── Order Lifecycle ──────────────────────────────────────────────────────────

func (s *orderService) CreateOrder(ctx context.Context, customer CustomerFields, items []OrderItemInput) (*Order, error) {
	customer = customer.Normalized()
	if err := validateCustomer(customer, s.phone); err != nil {
		return nil, err
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID int
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (fb_name, recipient_name, phone, address, comment, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id
	`, customer.FBName, customer.RecipientName, customer.Phone, customer.Address, customer.Comment,
		string(StatusPending)).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	move := StockMove{OrderID: orderID, Reason: reasonOrderPlaced, RequireActive: true}
	if err := s.inventory.ReserveStockTx(ctx, tx, move, stockLinesFromInput(items)); err != nil {
		return nil, err
	}

	for _, it := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, courier_price)
			VALUES ($1, $2, $3, $4, $5)
		`, orderID, it.ProductID, it.Quantity, it.UnitPrice, it.CourierPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to insert item for product %d: %w", it.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) UpdateOrderFields(ctx context.Context, orderID int, customer CustomerFields, status *OrderStatus) (*Order, error) {
	customer = customer.Normalized()
	if err := validateCustomer(customer, s.phone); err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, newValidationError("status", "is not a valid order status")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	old, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET fb_name = $2, recipient_name = $3, phone = $4, address = $5, comment = NULLIF($6, ''),
		    updated_at = NOW()
		WHERE id = $1
	`, orderID, customer.FBName, customer.RecipientName, customer.Phone, customer.Address, customer.Comment)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}

	if status != nil {
		if err := s.applyStatusTx(ctx, tx, orderID, old, *status); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if status != nil && *status != old {
		o.PreviousStatus = old
	}
	return o, nil
}

func (s *orderService) SetOrderStatus(ctx context.Context, orderID int, status OrderStatus) (*Order, error) {
	if !status.Valid() {
		return nil, newValidationError("status", "is not a valid order status")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	old, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.applyStatusTx(ctx, tx, orderID, old, status); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if status != old {
		o.PreviousStatus = old
	}
	return o, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID int) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockOrderTx(ctx, tx, orderID); err != nil {
		return nil, err
	}
	o, err := fetchOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status != StatusCancelled {
		move := StockMove{OrderID: orderID, Reason: reasonOrderDeleted}
		if err := s.inventory.ReleaseStockTx(ctx, tx, move, stockLinesFromItems(o.Items)); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM orders WHERE id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order deletion: %w", err)
	}
	return o, nil
}

// applyStatusTx moves a locked order from old to next, applying the stock
// effect first so an under-stocked un-cancel leaves the order untouched.
func (s *orderService) applyStatusTx(ctx context.Context, tx pgx.Tx, orderID int, old, next OrderStatus) error {
	if old == next {
		return nil
	}

	if effect := planTransition(old, next); effect != effectNone {
		items, err := fetchOrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}
		lines := stockLinesFromItems(items)
		if effect == effectRelease {
			move := StockMove{OrderID: orderID, Reason: reasonOrderCancel}
			if err := s.inventory.ReleaseStockTx(ctx, tx, move, lines); err != nil {
				return err
			}
		} else {
			move := StockMove{OrderID: orderID, Reason: reasonOrderUncancel}
			if err := s.inventory.ReserveStockTx(ctx, tx, move, lines); err != nil {
				return err
			}
		}
	}

	_, err := tx.Exec(ctx,
		"UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1",
		orderID, string(next),
	)
	if err != nil {
		return fmt.Errorf("failed to set status of order %d: %w", orderID, err)
	}
	return nil
}

func lockOrderTx(ctx context.Context, tx pgx.Tx, orderID int) (OrderStatus, error) {
	var status string
	err := tx.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", orderNotFound(orderID)
		}
		return "", fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return OrderStatus(status), nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

const orderColumns = `id, fb_name, recipient_name, phone, address, COALESCE(comment, ''),
	status, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.FBName, &o.RecipientName, &o.Phone, &o.Address, &o.Comment,
		&status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = OrderStatus(status)
	return &o, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int) (*Order, error) {
	return fetchOrder(ctx, s.pool, orderID)
}

func fetchOrder(ctx context.Context, q pgxQuerier, orderID int) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orderNotFound(orderID)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	items, err := fetchOrderItems(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	o.TotalPrice = OrderTotal(items)
	return o, nil
}

func (s *orderService) ListOrders(ctx context.Context, status *OrderStatus) ([]Order, error) {
	query := "SELECT " + orderColumns + " FROM orders"
	var args []any
	if status != nil {
		if !status.Valid() {
			return nil, newValidationError("status", "is not a valid order status")
		}
		query += " WHERE status = $1"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	byOrder, err := fetchItemsByOrder(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		items := byOrder[orders[i].ID]
		if items == nil {
			items = []OrderItem{}
		}
		orders[i].Items = items
		orders[i].TotalPrice = OrderTotal(items)
	}
	return orders, nil
}

// fetchOrderItems loads an order's lines with each product's current name and
// photo. The stored unit price is never re-read from the product.
func fetchOrderItems(ctx context.Context, q pgxQuerier, orderID int) ([]OrderItem, error) {
	byOrder, err := fetchItemsByOrder(ctx, q, []int{orderID})
	if err != nil {
		return nil, err
	}
	if items := byOrder[orderID]; items != nil {
		return items, nil
	}
	return []OrderItem{}, nil
}

// fetchItemsByOrder loads the lines of several orders in one query, grouped
// by order id and kept in insertion order.
func fetchItemsByOrder(ctx context.Context, q pgxQuerier, orderIDs []int) (map[int][]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, COALESCE(p.photo_url, ''),
		       oi.quantity, oi.unit_price, oi.courier_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[int][]OrderItem, len(orderIDs))
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.PhotoURL,
			&it.Quantity, &it.UnitPrice, &it.CourierPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		it.Subtotal = it.LineSubtotal()
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}
	return byOrder, nil
}
