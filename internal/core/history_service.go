package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryLog is the append-only audit trail of product changes.
// Writers append inside their own transaction so the entry commits or rolls
// back together with the change it records.
type HistoryLog interface {
	// AppendTx records an entry within the caller's transaction.
	AppendTx(ctx context.Context, tx pgx.Tx, e HistoryEntry) error
	// ListForProduct returns the product's entries newest first. Unknown
	// products yield an empty list.
	ListForProduct(ctx context.Context, productID int) ([]HistoryEntry, error)
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type historyLog struct {
	pool *pgxpool.Pool
}

func NewHistoryLog(pool *pgxpool.Pool) HistoryLog {
	return &historyLog{pool: pool}
}

func (h *historyLog) AppendTx(ctx context.Context, tx pgx.Tx, e HistoryEntry) error {
	return appendHistory(ctx, tx, e)
}

func appendHistory(ctx context.Context, q pgxQuerier, e HistoryEntry) error {
	oldVal, err := e.OldValue.encode()
	if err != nil {
		return err
	}
	newVal, err := e.NewValue.encode()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO product_history (product_id, action, field_name, old_value, new_value, note)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''))
	`, e.ProductID, string(e.Action), e.FieldName, oldVal, newVal, e.Note)
	if err != nil {
		return fmt.Errorf("failed to append %s history for product %d: %w", e.Action, e.ProductID, err)
	}
	return nil
}

func (h *historyLog) ListForProduct(ctx context.Context, productID int) ([]HistoryEntry, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT id, product_id, action, COALESCE(field_name, ''), old_value, new_value,
		       COALESCE(note, ''), created_at
		FROM product_history
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query product history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var (
			e        HistoryEntry
			action   string
			oldValue *string
			newValue *string
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &action, &e.FieldName, &oldValue, &newValue, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Action = HistoryAction(action)
		e.OldValue = decodeHistoryValue(e.Action, oldValue)
		e.NewValue = decodeHistoryValue(e.Action, newValue)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product history: %w", err)
	}
	return entries, nil
}
