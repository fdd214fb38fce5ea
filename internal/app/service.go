package app

import (
	"context"
	"errors"

	"shop-admin/internal/core"
)

// ErrExtractionDisabled is returned by the AI draft operations when no
// OpenAI key is configured.
var ErrExtractionDisabled = errors.New("AI order extraction is not configured")

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// Health pings the database.
	Health(ctx context.Context) error

	// ── Products ──────────────────────────────────────────────────────────────

	// ListProducts returns active products ordered by name.
	ListProducts(ctx context.Context) (*ProductListResult, error)

	// ListDeletedProducts returns soft-deleted products, most recently deleted first.
	ListDeletedProducts(ctx context.Context) (*ProductListResult, error)

	// GetProduct returns a product by id, including soft-deleted ones.
	GetProduct(ctx context.Context, id int) (*core.Product, error)

	// CreateProduct validates and stores a new product.
	CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error)

	// UpdateProduct applies in to an active product and reports the changed fields.
	UpdateProduct(ctx context.Context, id int, in core.ProductInput) (*ProductUpdateResult, error)

	// SoftDeleteProduct hides a product from listings and new orders.
	SoftDeleteProduct(ctx context.Context, id int) error

	// RestoreProduct brings back a soft-deleted product.
	RestoreProduct(ctx context.Context, id int) (*core.Product, error)

	// PermanentlyDeleteProduct removes a soft-deleted product and its history.
	PermanentlyDeleteProduct(ctx context.Context, id int) error

	// AdjustStock writes off stock outside of any order.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.Product, error)

	// ListProductHistory returns the product's audit trail, newest first.
	ListProductHistory(ctx context.Context, id int) (*HistoryResult, error)

	// ── Orders ────────────────────────────────────────────────────────────────

	// ListOrders returns orders newest first, optionally filtered by status.
	ListOrders(ctx context.Context, status *string) (*OrderListResult, error)

	// GetOrder returns an order with its items and total.
	GetOrder(ctx context.Context, id int) (*OrderResult, error)

	// CreateOrder places an order and reserves its stock.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)

	// UpdateOrder replaces customer fields and optionally changes status.
	UpdateOrder(ctx context.Context, id int, req UpdateOrderRequest) (*OrderResult, error)

	// SetOrderStatus moves an order to status, reconciling stock across the
	// cancelled boundary.
	SetOrderStatus(ctx context.Context, id int, status string) (*OrderResult, error)

	// DeleteOrder removes an order, returning any stock it held.
	DeleteOrder(ctx context.Context, id int) error

	// ── AI order intake ───────────────────────────────────────────────────────

	// ExtractOrderDraft asks the AI extractor for a tentative order and keeps
	// it under a fresh token. Nothing is written to the database.
	ExtractOrderDraft(ctx context.Context, conversation string) (*DraftResult, error)

	// GetDraft returns a pending draft.
	GetDraft(ctx context.Context, token string) (*DraftResult, error)

	// ConfirmDraft consumes the draft and creates the order. A nil req uses the
	// draft as extracted; otherwise req is the operator-edited payload.
	ConfirmDraft(ctx context.Context, token string, req *CreateOrderRequest) (*OrderResult, error)

	// DiscardDraft drops a pending draft.
	DiscardDraft(ctx context.Context, token string) error
}
