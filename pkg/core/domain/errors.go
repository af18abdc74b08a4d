// Package domain holds the error kinds shared by every stage of the analyzer.
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConnection = errors.New("connection failure")
	ErrParse      = errors.New("parse failure")
	ErrValidation = errors.New("validation failure")
	ErrTransient  = errors.New("temporary failure")
	ErrRejected   = errors.New("request rejected")

	// Generation-service specific variants, decided once at the client boundary.
	ErrResourceNotReady = errors.New("resource not ready")
	ErrContentTooLarge  = errors.New("content too large")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf returns the first known kind in err's chain, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrResourceNotReady,
		ErrContentTooLarge,
		ErrNotFound,
		ErrConnection,
		ErrParse,
		ErrValidation,
		ErrRejected,
		ErrTransient,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
