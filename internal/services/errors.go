package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient     = errors.New("transient provider failure")
	ErrInput         = errors.New("insufficient input")
	ErrPersistence   = errors.New("persistence failure")
	ErrConfiguration = errors.New("configuration error")
	ErrExternal      = errors.New("external provider error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPermanent reports whether err should never be retried. Caller
// cancellation is always permanent and a transient marker always wins over
// the others. Configuration, input, missing records and provider rejections
// (4xx, undecodable replies) are permanent.
func IsPermanent(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrTransient):
		return false
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInput), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrExternal):
		return true
	default:
		return false
	}
}

// Kind returns a short label for the error's taxonomy marker, suitable for log
// fields and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrExternal):
		return "external"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
