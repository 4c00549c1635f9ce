// Package storage provides the local SQLite-backed object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-proof-must-flow/internal/service"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrConflictingOptions = errors.New("IfAbsent and IfMatch are mutually exclusive")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateObjectKey(ctx context.Context, bucket, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(bucket, "bucket"); err != nil {
		return err
	}
	return validateString(key, "key")
}

func validatePutOptions(opts service.PutOptions) error {
	if opts.IfAbsent && opts.IfMatch != "" {
		return ErrConflictingOptions
	}
	return nil
}
