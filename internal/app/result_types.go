package app

import (
	"time"

	"shop-admin/internal/ai"
	"shop-admin/internal/core"
)

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.Order
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders []core.Order
	Status string
}

// ProductListResult is returned by the product listings.
type ProductListResult struct {
	Products []core.Product
}

// ProductUpdateResult is returned by UpdateProduct. Changed is empty when the
// input matched the stored product.
type ProductUpdateResult struct {
	Product *core.Product
	Changed []string
}

// HistoryResult is returned by ListProductHistory.
type HistoryResult struct {
	ProductID int
	Entries   []core.HistoryEntry
}

// DraftResult is returned by the AI intake operations.
type DraftResult struct {
	Token     string
	CreatedAt time.Time
	Draft     *ai.OrderDraft
}
