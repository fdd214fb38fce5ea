// Package drafts keeps AI-extracted order drafts until the operator confirms
// or abandons them. Drafts are never orders: confirming one goes through the
// normal order creation path.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown, consumed or expired tokens.
var ErrNotFound = errors.New("draft not found or expired")

// Draft is a pending extraction result.
type Draft struct {
	Token     string          `json:"token"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store holds drafts for a limited time.
type Store interface {
	Put(ctx context.Context, d Draft) error
	Get(ctx context.Context, token string) (Draft, error)
	// Take returns the draft and removes it, so a token confirms at most once.
	Take(ctx context.Context, token string) (Draft, error)
	Delete(ctx context.Context, token string) error
}
