package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/statemachine"
)

// Category classifies a processing failure. The category alone decides
// the caller-visible response code and whether the provider should retry.
type Category string

const (
	CategoryAuthentication    Category = "authentication"
	CategoryValidation        Category = "validation"
	CategoryInvalidTransition Category = "invalid_transition"
	CategoryNotFound          Category = "not_found"
	CategoryStorage           Category = "storage"
	CategoryNetwork           Category = "network"
	CategoryTimeout           Category = "timeout"
	CategoryUnknown           Category = "unknown"
)

// Error is a categorized processing failure.
type Error struct {
	Category Category
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func Validationf(format string, args ...any) *Error {
	return &Error{Category: CategoryValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Category: CategoryNotFound, Message: fmt.Sprintf(format, args...)}
}

func Authenticationf(format string, args ...any) *Error {
	return &Error{Category: CategoryAuthentication, Message: fmt.Sprintf(format, args...)}
}

// WrapStorage marks an infrastructure failure as retryable storage trouble.
func WrapStorage(msg string, cause error) *Error {
	return &Error{Category: CategoryStorage, Message: msg, Cause: cause}
}

// Classify maps any error surfaced during processing to a category. It is
// a pure function of error types and never of event content, so the same
// failure always classifies the same way.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}

	var ite *statemachine.InvalidTransitionError
	if errors.As(err, &ite) {
		return CategoryInvalidTransition
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return CategoryStorage
	}
	var cerr *pgconn.ConnectError
	if errors.As(err, &cerr) {
		return CategoryStorage
	}

	// Misclassifying a permanent failure as transient costs one extra
	// retry; misclassifying a transient failure as permanent drops data.
	return CategoryUnknown
}

// Retryable reports whether the provider should be told to retry.
func Retryable(c Category) bool {
	switch c {
	case CategoryStorage, CategoryNetwork, CategoryTimeout, CategoryUnknown:
		return true
	}
	return false
}

// RetryableCategories lists the categories worth re-running internally.
func RetryableCategories() []string {
	return []string{
		string(CategoryStorage),
		string(CategoryNetwork),
		string(CategoryTimeout),
		string(CategoryUnknown),
	}
}

// HTTPStatus maps a category to the transport-generic response code.
func HTTPStatus(c Category) int {
	switch c {
	case CategoryAuthentication:
		return http.StatusUnauthorized
	case CategoryValidation, CategoryInvalidTransition:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryStorage, CategoryNetwork, CategoryTimeout, CategoryUnknown:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Severity returns the log level a failure of this category deserves.
// Unknown failures log at Error so operators notice misclassified causes.
func Severity(c Category) slog.Level {
	switch c {
	case CategoryValidation, CategoryInvalidTransition, CategoryNotFound:
		return slog.LevelWarn
	case CategoryAuthentication, CategoryStorage, CategoryNetwork, CategoryTimeout, CategoryUnknown:
		return slog.LevelError
	}
	return slog.LevelInfo
}
