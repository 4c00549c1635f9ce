// Package service defines the interfaces shared between the scoring engine and
// its storage backends.
package service

import (
	"context"
	"time"
)

// Object is a stored blob and the version token it was read or written at.
type Object struct {
	UpdatedAt time.Time
	Version   string
	Body      []byte
}

// PutOptions makes a write conditional.
type PutOptions struct {
	// IfMatch requires the stored object to still be at this version.
	IfMatch string
	// ContentType is recorded with the object where the backend supports it.
	ContentType string
	// IfAbsent requires that no object exists under the key yet.
	IfAbsent bool
}

// ObjectStore is the contract for the external key-value object store that
// holds the hash ledger and the poisoned reference. GetObject returns
// common.ErrNotFound for a missing key; a failed condition on PutObject
// returns common.ErrPreconditionFailed.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
	PutObject(ctx context.Context, bucket, key string, body []byte, opts PutOptions) (*Object, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
