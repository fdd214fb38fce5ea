package app

import "shop-admin/internal/core"

// CreateOrderRequest is the input for placing an order.
type CreateOrderRequest struct {
	Customer core.CustomerFields   `json:"customer"`
	Items    []core.OrderItemInput `json:"items"`
}

// UpdateOrderRequest replaces the customer-facing fields of an order. Status is
// optional; when present the transition runs in the same transaction.
type UpdateOrderRequest struct {
	Customer core.CustomerFields `json:"customer"`
	Status   *string             `json:"status,omitempty"`
}

// AdjustStockRequest is a manual write-off.
type AdjustStockRequest struct {
	ProductID int    `json:"product_id"`
	ReduceBy  int    `json:"reduce_by"`
	Note      string `json:"note"`
}
