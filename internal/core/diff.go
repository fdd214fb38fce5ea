package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// productFields is the fixed order in which snapshot fields are compared and reported.
var productFields = []string{"name", "price", "cost_price", "quantity", "description", "barcode", "photo_url"}

var numericFields = map[string]bool{"price": true, "cost_price": true, "quantity": true}

// snapshotOf captures the editable fields of p. Money is rendered with two
// decimals and absent optional values are nil.
func snapshotOf(p Product) map[string]any {
	snap := map[string]any{
		"name":        p.Name,
		"price":       p.Price.StringFixed(2),
		"cost_price":  nil,
		"quantity":    p.Quantity,
		"description": nilIfEmpty(p.Description),
		"barcode":     nilIfEmpty(p.Barcode),
		"photo_url":   nilIfEmpty(p.PhotoURL),
	}
	if p.CostPrice.Valid {
		snap["cost_price"] = p.CostPrice.Decimal.StringFixed(2)
	}
	return snap
}

func nilIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// changedFields lists the fields whose values differ between two snapshots.
// Numeric fields compare by value, so "10", 10 and 10.00 are equal; text
// fields compare trimmed; empty strings and nil are the same absent value.
func changedFields(before, after map[string]any) []string {
	var changed []string
	for _, f := range productFields {
		if numericFields[f] {
			if !sameNumber(before[f], after[f]) {
				changed = append(changed, f)
			}
			continue
		}
		if normalizeText(before[f]) != normalizeText(after[f]) {
			changed = append(changed, f)
		}
	}
	return changed
}

func sameNumber(a, b any) bool {
	da, okA := toDecimal(a)
	db, okB := toDecimal(b)
	if !okA || !okB {
		return okA == okB
	}
	return da.Equal(db)
}

// toDecimal coerces a snapshot value; ok is false for absent values.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

func normalizeText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
