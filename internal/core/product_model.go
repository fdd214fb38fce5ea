package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item with its current stock count.
// DeletedAt is set while the product is soft-deleted; such products stay
// readable by id so historical orders keep resolving them.
type Product struct {
	ID          int                 `json:"id"`
	Name        string              `json:"name"`
	Price       decimal.Decimal     `json:"price"`
	CostPrice   decimal.NullDecimal `json:"cost_price"`
	Quantity    int                 `json:"quantity"`
	Description string              `json:"description"`
	Barcode     string              `json:"barcode"`
	PhotoURL    string              `json:"photo_url"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the product is soft-deleted.
func (p Product) IsDeleted() bool {
	return p.DeletedAt != nil
}

// ProductInput is the payload for creating or updating a product.
// Price is required on both. A nil Quantity means 0 on create and "keep the
// current stock" on update.
type ProductInput struct {
	Name        string              `json:"name" validate:"required,min=2,max=100"`
	Price       decimal.NullDecimal `json:"price"`
	CostPrice   decimal.NullDecimal `json:"cost_price"`
	Quantity    *int                `json:"quantity" validate:"omitempty,min=0,max=100000"`
	Description string              `json:"description" validate:"max=2000"`
	Barcode     string              `json:"barcode" validate:"max=64"`
	PhotoURL    string              `json:"photo_url" validate:"omitempty,max=500,http_url"`
}

// Normalized returns a copy with surrounding whitespace removed from text fields.
func (in ProductInput) Normalized() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.PhotoURL = strings.TrimSpace(in.PhotoURL)
	return in
}

// apply copies the input onto p, leaving identity, timestamps and (when the
// input carries no quantity) the stock count untouched.
func (in ProductInput) apply(p Product) Product {
	p.Name = in.Name
	p.Price = in.Price.Decimal
	p.CostPrice = in.CostPrice
	if in.Quantity != nil {
		p.Quantity = *in.Quantity
	}
	p.Description = in.Description
	p.Barcode = in.Barcode
	p.PhotoURL = in.PhotoURL
	return p
}

// StockLine is one product quantity to move in or out of stock.
type StockLine struct {
	ProductID int
	Quantity  int
}

// StockMove describes why stock moves for an order. RequireActive rejects
// soft-deleted products, which may not be placed on new orders.
type StockMove struct {
	OrderID       int
	Reason        string
	RequireActive bool
}
