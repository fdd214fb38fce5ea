package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxNoteLength = 500

// InventoryService owns the products table. It is the only writer of product
// quantity, and every quantity change is paired with a history entry in the
// same transaction.
type InventoryService interface {
	// Standalone operations (manage their own transactions).
	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	// UpdateProduct returns the stored product and the names of the fields that
	// changed. An empty change set means nothing was written.
	UpdateProduct(ctx context.Context, id int, in ProductInput) (*Product, []string, error)
	SoftDeleteProduct(ctx context.Context, id int) error
	RestoreProduct(ctx context.Context, id int) (*Product, error)
	// PermanentlyDeleteProduct removes a soft-deleted product and its history.
	PermanentlyDeleteProduct(ctx context.Context, id int) error
	// AdjustStock writes off reduceBy units outside of any order.
	AdjustStock(ctx context.Context, id, reduceBy int, note string) (*Product, error)

	// Queries. GetProduct also resolves soft-deleted products.
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListDeletedProducts(ctx context.Context) ([]Product, error)
	ListProductHistory(ctx context.Context, id int) ([]HistoryEntry, error)

	// TX-scoped operations: work within a caller-provided transaction.
	// Used by OrderService to keep stock changes atomic with order writes.

	// ReserveStockTx checks every line before decrementing any stock, so a
	// failure leaves all quantities untouched.
	ReserveStockTx(ctx context.Context, tx pgx.Tx, move StockMove, lines []StockLine) error
	// ReleaseStockTx returns stock held by an order.
	ReleaseStockTx(ctx context.Context, tx pgx.Tx, move StockMove, lines []StockLine) error
}

type inventoryService struct {
	pool    *pgxpool.Pool
	history HistoryLog
}

func NewInventoryService(pool *pgxpool.Pool, history HistoryLog) InventoryService {
	return &inventoryService{pool: pool, history: history}
}

const productColumns = `id, name, price, cost_price, quantity,
	COALESCE(description, ''), COALESCE(barcode, ''), COALESCE(photo_url, ''),
	created_at, updated_at, deleted_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.CostPrice, &p.Quantity,
		&p.Description, &p.Barcode, &p.PhotoURL,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// lockProductTx loads a product row FOR UPDATE. Soft-deleted products are
// reported as not found unless allowDeleted is set.
func lockProductTx(ctx context.Context, tx pgx.Tx, id int, allowDeleted bool) (*Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, productNotFound(id, "")
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
	}
	if p.IsDeleted() && !allowDeleted {
		return nil, productNotFound(id, "product is deleted")
	}
	return p, nil
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *inventoryService) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	in = in.Normalized()
	if err := validateProductInput(in); err != nil {
		return nil, err
	}
	qty := 0
	if in.Quantity != nil {
		qty = *in.Quantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanProduct(tx.QueryRow(ctx, `
		INSERT INTO products (name, price, cost_price, quantity, description, barcode, photo_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
		RETURNING `+productColumns,
		in.Name, in.Price.Decimal, in.CostPrice, qty, in.Description, in.Barcode, in.PhotoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	if err := s.history.AppendTx(ctx, tx, HistoryEntry{
		ProductID: p.ID,
		Action:    ActionCreated,
		NewValue:  SnapshotValue(snapshotOf(*p)),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	return p, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, id int, in ProductInput) (*Product, []string, error) {
	in = in.Normalized()
	if err := validateProductInput(in); err != nil {
		return nil, nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockProductTx(ctx, tx, id, false)
	if err != nil {
		return nil, nil, err
	}

	before := snapshotOf(*current)
	next := in.apply(*current)
	after := snapshotOf(next)
	changed := changedFields(before, after)
	if len(changed) == 0 {
		return current, nil, nil
	}

	updated, err := scanProduct(tx.QueryRow(ctx, `
		UPDATE products
		SET name = $2, price = $3, cost_price = $4, quantity = $5,
		    description = NULLIF($6, ''), barcode = NULLIF($7, ''), photo_url = NULLIF($8, ''),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, next.Name, next.Price, next.CostPrice, next.Quantity,
		next.Description, next.Barcode, next.PhotoURL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}

	if err := s.history.AppendTx(ctx, tx, HistoryEntry{
		ProductID: id,
		Action:    ActionUpdated,
		FieldName: strings.Join(changed, ","),
		OldValue:  SnapshotValue(before),
		NewValue:  SnapshotValue(snapshotOf(*updated)),
	}); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	return updated, changed, nil
}

func (s *inventoryService) SoftDeleteProduct(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return productNotFound(id, "")
	}
	return nil
}

func (s *inventoryService) RestoreProduct(ctx context.Context, id int) (*Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockProductTx(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if !current.IsDeleted() {
		return nil, productNotFound(id, "product is not deleted")
	}

	restored, err := scanProduct(tx.QueryRow(ctx, `
		UPDATE products SET deleted_at = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns, id))
	if err != nil {
		return nil, fmt.Errorf("failed to restore product %d: %w", id, err)
	}

	if err := s.history.AppendTx(ctx, tx, HistoryEntry{
		ProductID: id,
		Action:    ActionRestored,
		Note:      "restored from deleted products",
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product restore: %w", err)
	}
	return restored, nil
}

func (s *inventoryService) PermanentlyDeleteProduct(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockProductTx(ctx, tx, id, true)
	if err != nil {
		return err
	}
	if !current.IsDeleted() {
		return productNotFound(id, "only soft-deleted products can be permanently deleted")
	}

	var referenced bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)", id,
	).Scan(&referenced); err != nil {
		return fmt.Errorf("failed to check order references for product %d: %w", id, err)
	}
	if referenced {
		return &ConflictError{Message: fmt.Sprintf("product %d is referenced by existing orders", id)}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM product_history WHERE product_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete history for product %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM products WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit permanent delete: %w", err)
	}
	return nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, id, reduceBy int, note string) (*Product, error) {
	note = strings.TrimSpace(note)
	if reduceBy <= 0 {
		return nil, newValidationError("quantity", "must be a positive number")
	}
	if reduceBy > QuantityMax {
		return nil, newValidationError("quantity", "must be at most %d", QuantityMax)
	}
	if len([]rune(note)) > maxNoteLength {
		return nil, newValidationError("note", "must be at most %d characters", maxNoteLength)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockProductTx(ctx, tx, id, false)
	if err != nil {
		return nil, err
	}
	if current.Quantity < reduceBy {
		return nil, &InsufficientStockError{
			ProductID:   id,
			ProductName: current.Name,
			Available:   current.Quantity,
			Requested:   reduceBy,
		}
	}

	updated, err := scanProduct(tx.QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns, id, reduceBy))
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock for product %d: %w", id, err)
	}

	if err := s.history.AppendTx(ctx, tx, HistoryEntry{
		ProductID: id,
		Action:    ActionStockRemoved,
		OldValue:  ScalarValue(strconv.Itoa(current.Quantity)),
		NewValue:  ScalarValue(strconv.Itoa(updated.Quantity)),
		Note:      note,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return updated, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *inventoryService) GetProduct(ctx context.Context, id int) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, productNotFound(id, "")
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return p, nil
}

func (s *inventoryService) ListProducts(ctx context.Context) ([]Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE deleted_at IS NULL
		ORDER BY name, id
	`)
}

func (s *inventoryService) ListDeletedProducts(ctx context.Context) ([]Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE deleted_at IS NOT NULL
		ORDER BY deleted_at DESC, id
	`)
}

func (s *inventoryService) queryProducts(ctx context.Context, sql string) ([]Product, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}

func (s *inventoryService) ListProductHistory(ctx context.Context, id int) ([]HistoryEntry, error) {
	return s.history.ListForProduct(ctx, id)
}

// ── TX-scoped operations ─────────────────────────────────────────────────────

type lockedStock struct {
	name      string
	quantity  int
	deletedAt *time.Time
}

// lockStockTx locks the rows for lines in ascending id order, so concurrent
// movers over overlapping products always acquire locks in the same order.
// Lines for the same product are merged.
func lockStockTx(ctx context.Context, tx pgx.Tx, lines []StockLine) (map[int]lockedStock, []StockLine, error) {
	merged := map[int]int{}
	for _, l := range lines {
		merged[l.ProductID] += l.Quantity
	}
	ids := make([]int, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows, err := tx.Query(ctx, `
		SELECT id, name, quantity, deleted_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	locked := make(map[int]lockedStock, len(ids))
	for rows.Next() {
		var (
			id int
			ls lockedStock
		)
		if err := rows.Scan(&id, &ls.name, &ls.quantity, &ls.deletedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan locked product: %w", err)
		}
		locked[id] = ls
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read locked products: %w", err)
	}

	ordered := make([]StockLine, len(ids))
	for i, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, nil, productNotFound(id, "")
		}
		ordered[i] = StockLine{ProductID: id, Quantity: merged[id]}
	}
	return locked, ordered, nil
}

func (s *inventoryService) ReserveStockTx(ctx context.Context, tx pgx.Tx, move StockMove, lines []StockLine) error {
	locked, ordered, err := lockStockTx(ctx, tx, lines)
	if err != nil {
		return err
	}

	for _, l := range ordered {
		ls := locked[l.ProductID]
		if move.RequireActive && ls.deletedAt != nil {
			return productNotFound(l.ProductID, "product is deleted")
		}
		if ls.quantity < l.Quantity {
			return &InsufficientStockError{
				ProductID:   l.ProductID,
				ProductName: ls.name,
				Available:   ls.quantity,
				Requested:   l.Quantity,
			}
		}
	}

	return s.moveStockTx(ctx, tx, move, ordered, locked, -1)
}

func (s *inventoryService) ReleaseStockTx(ctx context.Context, tx pgx.Tx, move StockMove, lines []StockLine) error {
	locked, ordered, err := lockStockTx(ctx, tx, lines)
	if err != nil {
		return err
	}
	return s.moveStockTx(ctx, tx, move, ordered, locked, 1)
}

// moveStockTx applies sign × quantity to each locked row and logs it.
func (s *inventoryService) moveStockTx(ctx context.Context, tx pgx.Tx, move StockMove,
	lines []StockLine, locked map[int]lockedStock, sign int) error {
	action := ActionStockAdded
	if sign < 0 {
		action = ActionStockRemoved
	}
	note := orderNote(move.OrderID, move.Reason)

	for _, l := range lines {
		before := locked[l.ProductID].quantity
		after := before + sign*l.Quantity
		if _, err := tx.Exec(ctx,
			"UPDATE products SET quantity = $2, updated_at = NOW() WHERE id = $1",
			l.ProductID, after,
		); err != nil {
			return fmt.Errorf("failed to update stock for product %d: %w", l.ProductID, err)
		}
		if err := s.history.AppendTx(ctx, tx, HistoryEntry{
			ProductID: l.ProductID,
			Action:    action,
			OldValue:  ScalarValue(strconv.Itoa(before)),
			NewValue:  ScalarValue(strconv.Itoa(after)),
			Note:      note,
		}); err != nil {
			return err
		}
	}
	return nil
}
