package ai

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shop-admin/internal/core"
)

// OrderDraft is the structured output of an extraction. It is a suggestion
// only; the operator edits and confirms it before an order exists.
type OrderDraft struct {
	FBName        string      `json:"fb_name" jsonschema:"description=Customer's messenger display name"`
	RecipientName string      `json:"recipient_name" jsonschema:"description=Name of the person receiving the parcel"`
	Phone         string      `json:"phone" jsonschema:"description=Recipient phone number as written"`
	Address       string      `json:"address" jsonschema:"description=Full delivery address"`
	Comment       string      `json:"comment" jsonschema:"description=Delivery instructions or other remarks"`
	Items         []DraftItem `json:"items"`
	Confidence    float64     `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Notes         string      `json:"notes" jsonschema:"description=Anything the operator should double-check"`
}

type DraftItem struct {
	ProductID    int    `json:"product_id"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	CourierPrice string `json:"courier_price"`
}

// Normalize trims fields, drops lines that do not match the catalog and fills
// missing prices from it. Each dropped line is explained in Notes.
func (d *OrderDraft) Normalize(catalog []core.Product) {
	d.FBName = strings.TrimSpace(d.FBName)
	d.RecipientName = strings.TrimSpace(d.RecipientName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
	d.Comment = strings.TrimSpace(d.Comment)

	byID := make(map[int]core.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	var notes []string
	if n := strings.TrimSpace(d.Notes); n != "" {
		notes = append(notes, n)
	}

	seen := map[int]bool{}
	kept := d.Items[:0]
	for _, it := range d.Items {
		p, ok := byID[it.ProductID]
		switch {
		case !ok:
			notes = append(notes, fmt.Sprintf("dropped unknown product id %d", it.ProductID))
			continue
		case seen[it.ProductID]:
			notes = append(notes, fmt.Sprintf("dropped repeated line for %s", p.Name))
			continue
		case it.Quantity < 1:
			notes = append(notes, fmt.Sprintf("dropped %s with quantity %d", p.Name, it.Quantity))
			continue
		}
		seen[it.ProductID] = true

		it.UnitPrice = normalizePrice(it.UnitPrice, p.Price)
		it.CourierPrice = normalizePrice(it.CourierPrice, decimal.Zero)
		kept = append(kept, it)
	}
	d.Items = kept
	d.Notes = strings.Join(notes, "; ")

	if d.Confidence < 0 {
		d.Confidence = 0
	}
	if d.Confidence > 1 {
		d.Confidence = 1
	}
}

func normalizePrice(raw string, fallback decimal.Decimal) string {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || v.IsNegative() {
		v = fallback
	}
	return v.StringFixed(2)
}

// OrderInput converts the draft into order creation input. Validation is left
// to the order service.
func (d OrderDraft) OrderInput() (core.CustomerFields, []core.OrderItemInput, error) {
	customer := core.CustomerFields{
		FBName:        d.FBName,
		RecipientName: d.RecipientName,
		Phone:         d.Phone,
		Address:       d.Address,
		Comment:       d.Comment,
	}
	items := make([]core.OrderItemInput, 0, len(d.Items))
	for i, it := range d.Items {
		unit, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return customer, nil, fmt.Errorf("item %d: invalid unit price %q", i+1, it.UnitPrice)
		}
		courier := decimal.Zero
		if strings.TrimSpace(it.CourierPrice) != "" {
			if courier, err = decimal.NewFromString(it.CourierPrice); err != nil {
				return customer, nil, fmt.Errorf("item %d: invalid courier price %q", i+1, it.CourierPrice)
			}
		}
		items = append(items, core.OrderItemInput{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			UnitPrice:    unit,
			CourierPrice: courier,
		})
	}
	return customer, items, nil
}
