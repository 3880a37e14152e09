package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
)

// Argument errors, wrapped in common.ValidationError.
var (
	ErrNilContext  = errors.New("nil context")
	ErrEmptyString = errors.New("empty argument")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return &common.ValidationError{Field: "ctx", Reason: "required", Err: ErrNilContext}
	}
	return nil
}

// validateString rejects blank identifiers and paths before they reach SQL.
func validateString(s, name string) error {
	if strings.TrimSpace(s) == "" {
		return &common.ValidationError{Field: name, Reason: "must not be blank", Err: ErrEmptyString}
	}
	return nil
}
