package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// HistoryAction names the kind of change a history entry records.
type HistoryAction string

const (
	ActionCreated      HistoryAction = "created"
	ActionUpdated      HistoryAction = "updated"
	ActionStockRemoved HistoryAction = "stock_removed"
	ActionStockAdded   HistoryAction = "stock_added"
	ActionRestored     HistoryAction = "restored"
)

// usesSnapshots reports whether entries of this action carry full product
// snapshots rather than single scalar values.
func (a HistoryAction) usesSnapshots() bool {
	return a == ActionCreated || a == ActionUpdated
}

// HistoryValueKind tags the shape of a HistoryValue.
type HistoryValueKind string

const (
	HistoryScalar   HistoryValueKind = "scalar"
	HistorySnapshot HistoryValueKind = "snapshot"
)

// HistoryValue is either a plain scalar (stock events) or a field snapshot
// (created/updated events). Both shapes share the same TEXT column on disk.
type HistoryValue struct {
	Kind     HistoryValueKind
	Scalar   string
	Snapshot map[string]any
}

func ScalarValue(v string) *HistoryValue {
	return &HistoryValue{Kind: HistoryScalar, Scalar: v}
}

func SnapshotValue(m map[string]any) *HistoryValue {
	return &HistoryValue{Kind: HistorySnapshot, Snapshot: m}
}

// MarshalJSON renders a scalar as a JSON string and a snapshot as an object.
func (v HistoryValue) MarshalJSON() ([]byte, error) {
	if v.Kind == HistorySnapshot {
		return json.Marshal(v.Snapshot)
	}
	return json.Marshal(v.Scalar)
}

// encode produces the stored column text.
func (v *HistoryValue) encode() (*string, error) {
	if v == nil {
		return nil, nil
	}
	if v.Kind == HistorySnapshot {
		b, err := json.Marshal(v.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to encode history snapshot: %w", err)
		}
		s := string(b)
		return &s, nil
	}
	s := v.Scalar
	return &s, nil
}

// decodeHistoryValue interprets stored column text according to action.
// Rows written before snapshots were JSON fall back to a scalar.
func decodeHistoryValue(action HistoryAction, raw *string) *HistoryValue {
	if raw == nil {
		return nil
	}
	if action.usesSnapshots() {
		var m map[string]any
		if err := json.Unmarshal([]byte(*raw), &m); err == nil && m != nil {
			return SnapshotValue(m)
		}
	}
	return ScalarValue(*raw)
}

// HistoryEntry is one immutable record in a product's audit trail.
type HistoryEntry struct {
	ID        int           `json:"id"`
	ProductID int           `json:"product_id"`
	Action    HistoryAction `json:"action"`
	FieldName string        `json:"field_name,omitempty"`
	OldValue  *HistoryValue `json:"old_value"`
	NewValue  *HistoryValue `json:"new_value"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
