package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order. The four non-cancelled
// states are freely interchangeable; only crossings of the cancelled
// boundary move stock.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every valid status in pipeline order.
var OrderStatuses = []OrderStatus{
	StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", newValidationError("status", "must be one of pending, processing, shipped, delivered, cancelled")
	}
	return s, nil
}

// CustomerFields are the customer-facing, freely editable fields of an order.
type CustomerFields struct {
	FBName        string `json:"fb_name" validate:"required,min=2,max=100"`
	RecipientName string `json:"recipient_name" validate:"required,min=2,max=100"`
	Phone         string `json:"phone" validate:"required"`
	Address       string `json:"address" validate:"required,min=5,max=300"`
	Comment       string `json:"comment" validate:"max=1000"`
}

// Normalized trims text fields and strips phone punctuation.
func (c CustomerFields) Normalized() CustomerFields {
	c.FBName = strings.TrimSpace(c.FBName)
	c.RecipientName = strings.TrimSpace(c.RecipientName)
	c.Phone = normalizePhone(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.Comment = strings.TrimSpace(c.Comment)
	return c
}

func normalizePhone(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '\t':
			return -1
		}
		return r
	}, raw)
}

// Order is an order header together with its line items. TotalPrice is
// derived from the items on every read and never stored.
type Order struct {
	ID int `json:"id"`
	CustomerFields
	Status     OrderStatus     `json:"status"`
	Items      []OrderItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`

	// PreviousStatus is set only on results of status-changing calls.
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
}

// OrderItem is one order line. UnitPrice is the price quoted when the order
// was placed; ProductName and PhotoURL are read from the product for display.
type OrderItem struct {
	ID           int             `json:"id"`
	OrderID      int             `json:"order_id"`
	ProductID    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	PhotoURL     string          `json:"photo_url"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CourierPrice decimal.Decimal `json:"courier_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// LineSubtotal is unit_price × quantity + courier_price.
func (i OrderItem) LineSubtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Add(i.CourierPrice)
}

// OrderTotal sums the line subtotals of items.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineSubtotal())
	}
	return total
}

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID    int             `json:"product_id" validate:"required,gt=0"`
	Quantity     int             `json:"quantity" validate:"required,min=1,max=100000"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CourierPrice decimal.Decimal `json:"courier_price"`
}

func stockLinesFromInput(items []OrderItemInput) []StockLine {
	lines := make([]StockLine, len(items))
	for i, it := range items {
		lines[i] = StockLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}

func stockLinesFromItems(items []OrderItem) []StockLine {
	lines := make([]StockLine, len(items))
	for i, it := range items {
		lines[i] = StockLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}

// Reasons recorded in product history for order-driven stock movements.
const (
	reasonOrderPlaced   = "placed"
	reasonOrderCancel   = "cancellation"
	reasonOrderUncancel = "restored from cancellation"
	reasonOrderDeleted  = "deletion"
)

func orderNote(orderID int, reason string) string {
	return fmt.Sprintf("order #%d %s", orderID, reason)
}
