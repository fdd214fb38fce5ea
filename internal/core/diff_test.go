package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangedFields_Normalization(t *testing.T) {
	before := map[string]any{
		"name":        "Lamp",
		"price":       "10.00",
		"cost_price":  nil,
		"quantity":    5,
		"description": nil,
		"barcode":     "",
		"photo_url":   nil,
	}
	after := map[string]any{
		"name":        " Lamp ",
		"price":       10,
		"cost_price":  "",
		"quantity":    json.Number("5"),
		"description": "",
		"barcode":     nil,
		"photo_url":   "  ",
	}
	assert.Empty(t, changedFields(before, after))

	after["price"] = 10.5
	after["description"] = "brass"
	assert.Equal(t, []string{"price", "description"}, changedFields(before, after))
}

func TestChangedFields_AbsentVersusZero(t *testing.T) {
	before := map[string]any{"cost_price": nil}
	after := map[string]any{"cost_price": "0.00"}
	assert.Equal(t, []string{"cost_price"}, changedFields(before, after))
}

func TestSnapshotOf(t *testing.T) {
	p := Product{
		Name:      "Lamp",
		Price:     decimal.RequireFromString("7.5"),
		CostPrice: decimal.NewNullDecimal(decimal.NewFromInt(3)),
		Quantity:  2,
	}
	snap := snapshotOf(p)
	assert.Equal(t, "7.50", snap["price"])
	assert.Equal(t, "3.00", snap["cost_price"])
	assert.Nil(t, snap["barcode"])

	// an edit that only reformats values is not a change
	next := ProductInput{Name: "Lamp ", Price: decimal.NewNullDecimal(decimal.RequireFromString("7.50")), CostPrice: p.CostPrice}.Normalized().apply(p)
	assert.Empty(t, changedFields(snap, snapshotOf(next)))
}

func TestHistoryValue_RoundTrip(t *testing.T) {
	snap := SnapshotValue(map[string]any{"name": "Lamp", "price": "7.50"})
	raw, err := snap.encode()
	require.NoError(t, err)

	decoded := decodeHistoryValue(ActionUpdated, raw)
	require.NotNil(t, decoded)
	assert.Equal(t, HistorySnapshot, decoded.Kind)
	assert.Equal(t, "Lamp", decoded.Snapshot["name"])

	scalar := "10"
	stock := decodeHistoryValue(ActionStockRemoved, &scalar)
	assert.Equal(t, HistoryScalar, stock.Kind)
	assert.Equal(t, "10", stock.Scalar)

	legacy := "not json"
	fallback := decodeHistoryValue(ActionCreated, &legacy)
	assert.Equal(t, HistoryScalar, fallback.Kind)

	assert.Nil(t, decodeHistoryValue(ActionRestored, nil))

	out, err := json.Marshal(HistoryEntry{Action: ActionStockAdded, OldValue: ScalarValue("3"), NewValue: ScalarValue("5")})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"old_value":"3"`)
}

func TestPlanTransition(t *testing.T) {
	tests := []struct {
		old, next OrderStatus
		want      stockEffect
	}{
		{StatusPending, StatusPending, effectNone},
		{StatusPending, StatusShipped, effectNone},
		{StatusDelivered, StatusProcessing, effectNone},
		{StatusPending, StatusCancelled, effectRelease},
		{StatusShipped, StatusCancelled, effectRelease},
		{StatusCancelled, StatusCancelled, effectNone},
		{StatusCancelled, StatusPending, effectReserve},
		{StatusCancelled, StatusDelivered, effectReserve},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, planTransition(tt.old, tt.next), "%s -> %s", tt.old, tt.next)
	}
}

func TestOrderTotal(t *testing.T) {
	items := []OrderItem{
		{Quantity: 3, UnitPrice: decimal.RequireFromString("20.00"), CourierPrice: decimal.RequireFromString("5.00")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("9.99")},
	}
	assert.True(t, OrderTotal(items).Equal(decimal.RequireFromString("74.99")))
	assert.True(t, OrderTotal(nil).IsZero())
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+15550102030", normalizePhone("+1 (555) 010-2030"))
	assert.True(t, DefaultPhonePattern.MatchString(normalizePhone("0501 234 567")))
	assert.False(t, DefaultPhonePattern.MatchString(normalizePhone("12-34")))
}
