package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput              = "INTEGRATION_BAD_INPUT"
	ErrorNotFound              = "INTEGRATION_NOT_FOUND"
	ErrorDuplicateRegistration = "INTEGRATION_DUPLICATE_REGISTRATION"
	ErrorInvalidSignature      = "INTEGRATION_INVALID_SIGNATURE"
	ErrorInitializationFailure = "INTEGRATION_INITIALIZATION_FAILURE"
	ErrorDeliveryFailure       = "INTEGRATION_DELIVERY_FAILURE"
	ErrorTimeout               = "INTEGRATION_TIMEOUT"
	ErrorSyncFinalized         = "INTEGRATION_SYNC_FINALIZED"
	ErrorExternalFailure       = "INTEGRATION_EXTERNAL_FAILURE"
	ErrorInternal              = "INTEGRATION_INTERNAL_ERROR"
)

// NewError builds an envelope with a stable text code and the status derived
// from its category.
func NewError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func WrapError(
	source error,
	category goerrors.Category,
	message string,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return NewError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func BadInputError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryBadInput, ErrorBadInput, metadata)
}

func NotFoundError(kind string, name string) error {
	return NewError(
		fmt.Sprintf("%s %q not found", strings.TrimSpace(kind), strings.TrimSpace(name)),
		goerrors.CategoryNotFound,
		ErrorNotFound,
		map[string]any{"kind": kind, "name": name},
	)
}

func DuplicateRegistrationError(kind string, name string) error {
	return NewError(
		fmt.Sprintf("%s %q is already registered", strings.TrimSpace(kind), strings.TrimSpace(name)),
		goerrors.CategoryConflict,
		ErrorDuplicateRegistration,
		map[string]any{"kind": kind, "name": name},
	)
}

func InvalidSignatureError(name string) error {
	return NewError(
		fmt.Sprintf("webhook %q signature verification failed", strings.TrimSpace(name)),
		goerrors.CategoryAuth,
		ErrorInvalidSignature,
		map[string]any{"webhook": name},
	)
}

func InitializationError(name string, cause error) error {
	message := fmt.Sprintf("integration %q initialization failed", strings.TrimSpace(name))
	if cause != nil {
		message += ": " + cause.Error()
	}
	return NewError(message, goerrors.CategoryOperation, ErrorInitializationFailure, map[string]any{"integration": name})
}

// DeliveryError reports an exhausted delivery. The last attempt's error text
// is kept in the message so callers can inspect it without unwrapping.
func DeliveryError(name string, attempts int, cause error) error {
	message := fmt.Sprintf("webhook %q delivery failed after %d attempt(s)", strings.TrimSpace(name), attempts)
	metadata := map[string]any{"webhook": name, "attempts": attempts}
	if cause != nil {
		message += ": " + cause.Error()
		if HasErrorCode(cause, ErrorTimeout) {
			metadata["cause"] = ErrorTimeout
		}
	}
	return NewError(message, goerrors.CategoryExternal, ErrorDeliveryFailure, metadata)
}

func TimeoutError(name string, attempt int) error {
	return NewError(
		fmt.Sprintf("webhook %q attempt %d timed out", strings.TrimSpace(name), attempt),
		goerrors.CategoryOperation,
		ErrorTimeout,
		map[string]any{"webhook": name, "attempt": attempt},
	)
}

func SyncFinalizedError(id string, status SyncStatus) error {
	return NewError(
		fmt.Sprintf("sync operation %q already finalized with status %q", strings.TrimSpace(id), status),
		goerrors.CategoryConflict,
		ErrorSyncFinalized,
		map[string]any{"sync_operation_id": id, "status": string(status)},
	)
}

func InternalError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryInternal, ErrorInternal, metadata)
}

// MissingDependencyError reports a handler invoked without the collaborator
// it was built around, e.g. MissingDependencyError("query", "sync operation reader").
func MissingDependencyError(scope string, dependency string) error {
	return InternalError(
		fmt.Sprintf("%s: %s is required", strings.TrimSpace(scope), strings.TrimSpace(dependency)),
		map[string]any{"dependency": dependency},
	)
}

// FieldError is a single-field validation failure carrying the field name in
// the envelope's validation errors.
func FieldError(scope string, field string, message string) error {
	return goerrors.NewValidation(strings.TrimSpace(scope)+": validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// ValidationError wraps err as a validation failure. It returns nil for a nil err.
func ValidationError(err error, message string) error {
	if err == nil {
		return nil
	}
	return WrapError(err, goerrors.CategoryValidation, message, ErrorBadInput, nil)
}

// HasErrorCode reports whether err carries the given text code.
func HasErrorCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(rich.TextCode), strings.TrimSpace(textCode))
}

// MapError normalizes any error into an envelope with a text code and status.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureEnvelope(rich)
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return ensureEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).WithTextCode(ErrorNotFound))
	case strings.Contains(msg, "already registered"):
		return ensureEnvelope(goerrors.New(err.Error(), goerrors.CategoryConflict).WithTextCode(ErrorDuplicateRegistration))
	case strings.Contains(msg, "signature"):
		return ensureEnvelope(goerrors.New(err.Error(), goerrors.CategoryAuth).WithTextCode(ErrorInvalidSignature))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).WithTextCode(ErrorBadInput))
	}
	return ensureEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func ensureEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorInvalidSignature
	case goerrors.CategoryConflict:
		return ErrorDuplicateRegistration
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
