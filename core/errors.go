package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput          = "MINTFLOW_BAD_INPUT"
	ErrorAuth              = "MINTFLOW_AUTH"
	ErrorTransport         = "MINTFLOW_TRANSPORT"
	ErrorTimeout           = "MINTFLOW_POLL_TIMEOUT"
	ErrorOutOfOrder        = "MINTFLOW_STAGE_OUT_OF_ORDER"
	ErrorPrerequisite      = "MINTFLOW_STAGE_PREREQUISITE"
	ErrorBusy              = "MINTFLOW_STAGE_BUSY"
	ErrorStaleLease        = "MINTFLOW_STAGE_LEASE_STALE"
	ErrorDuplicateID       = "MINTFLOW_DUPLICATE_ID"
	ErrorNotFound          = "MINTFLOW_NOT_FOUND"
	ErrorInvalidTransition = "MINTFLOW_INVALID_TRANSITION"
	ErrorOperationFailed   = "MINTFLOW_OPERATION_FAILED"
	ErrorInternal          = "MINTFLOW_INTERNAL_ERROR"
)

func NewAuthError(message string, metadata map[string]any) *goerrors.Error {
	return withMetadata(newServiceError(message, goerrors.CategoryAuth, ErrorAuth), metadata)
}

func WrapAuthError(source error, message string) *goerrors.Error {
	return wrapServiceError(source, goerrors.CategoryAuth, message, ErrorAuth)
}

func NewTransportError(message string, metadata map[string]any) *goerrors.Error {
	return withMetadata(newServiceError(message, goerrors.CategoryExternal, ErrorTransport), metadata)
}

func WrapTransportError(source error, message string) *goerrors.Error {
	return wrapServiceError(source, goerrors.CategoryExternal, message, ErrorTransport)
}

func NewTimeoutError(attempts int, metadata map[string]any) *goerrors.Error {
	fields := map[string]any{"attempts": attempts}
	for key, value := range metadata {
		fields[key] = value
	}
	return withMetadata(newServiceError(
		fmt.Sprintf("poll: no terminal status after %d attempts", attempts),
		goerrors.CategoryOperation,
		ErrorTimeout,
	), fields)
}

func NewOutOfOrderError(stage Stage, current Stage) *goerrors.Error {
	return withMetadata(newServiceError(
		fmt.Sprintf("workflow: stage %d is out of order, current stage is %d", stage, current),
		goerrors.CategoryConflict,
		ErrorOutOfOrder,
	), map[string]any{"stage": int(stage), "current_stage": int(current)})
}

func NewPrerequisiteError(stage Stage, missing string) *goerrors.Error {
	return withMetadata(newServiceError(
		fmt.Sprintf("workflow: stage %s requires %s", stage, missing),
		goerrors.CategoryBadInput,
		ErrorPrerequisite,
	), map[string]any{"stage": int(stage), "missing": missing})
}

func NewBusyError(stage Stage) *goerrors.Error {
	return withMetadata(newServiceError(
		fmt.Sprintf("workflow: a submission is already in flight, cannot start stage %s", stage),
		goerrors.CategoryConflict,
		ErrorBusy,
	), map[string]any{"stage": int(stage)})
}

func NewStaleLeaseError(stage Stage) *goerrors.Error {
	return withMetadata(newServiceError(
		fmt.Sprintf("workflow: stage %s was reset while its submission was in flight", stage),
		goerrors.CategoryConflict,
		ErrorStaleLease,
	), map[string]any{"stage": int(stage)})
}

func NewDuplicateIDError(id string) *goerrors.Error {
	return withMetadata(newServiceError(
		fmt.Sprintf("ledger: operation %q already recorded", id),
		goerrors.CategoryConflict,
		ErrorDuplicateID,
	), map[string]any{"operation_id": id})
}

func NewNotFoundError(id string) *goerrors.Error {
	return withMetadata(newServiceError(
		fmt.Sprintf("ledger: operation %q not found", id),
		goerrors.CategoryNotFound,
		ErrorNotFound,
	), map[string]any{"operation_id": id})
}

func NewInvalidTransitionError(id string, from Status, to Status) *goerrors.Error {
	return withMetadata(newServiceError(
		fmt.Sprintf("ledger: operation %q cannot move from %s to %s", id, from, to),
		goerrors.CategoryConflict,
		ErrorInvalidTransition,
	), map[string]any{"operation_id": id, "from": string(from), "to": string(to)})
}

func NewOperationFailedError(kind OperationKind, id string) *goerrors.Error {
	return withMetadata(newServiceError(
		fmt.Sprintf("%s %q failed remotely", strings.ToLower(string(kind)), id),
		goerrors.CategoryOperation,
		ErrorOperationFailed,
	), map[string]any{"operation_id": id, "kind": string(kind)})
}

func NewValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("mintflow: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func IsAuthError(err error) bool         { return hasTextCode(err, ErrorAuth) }
func IsTransportError(err error) bool    { return hasTextCode(err, ErrorTransport) }
func IsTimeoutError(err error) bool      { return hasTextCode(err, ErrorTimeout) }
func IsOutOfOrderError(err error) bool   { return hasTextCode(err, ErrorOutOfOrder) }
func IsPrerequisiteError(err error) bool { return hasTextCode(err, ErrorPrerequisite) }
func IsBusyError(err error) bool         { return hasTextCode(err, ErrorBusy) }
func IsStaleLeaseError(err error) bool   { return hasTextCode(err, ErrorStaleLease) }
func IsDuplicateIDError(err error) bool  { return hasTextCode(err, ErrorDuplicateID) }
func IsNotFoundError(err error) bool     { return hasTextCode(err, ErrorNotFound) }
func IsOperationFailed(err error) bool   { return hasTextCode(err, ErrorOperationFailed) }
func IsInvalidTransition(err error) bool { return hasTextCode(err, ErrorInvalidTransition) }
func IsValidationError(err error) bool   { return hasTextCode(err, ErrorBadInput) }

// TextCode returns the text code of the first rich error in the chain.
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return strings.TrimSpace(richErr.TextCode)
	}
	return ""
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return TextCode(err) == code
}

func withMetadata(err *goerrors.Error, metadata map[string]any) *goerrors.Error {
	if err != nil && len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapServiceError(source error, category goerrors.Category, message string, textCode string) *goerrors.Error {
	if source == nil {
		return newServiceError(message, category, textCode)
	}
	return ensureServiceErrorEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid_client"), strings.Contains(msg, "credentials"):
		return newServiceError(err.Error(), goerrors.CategoryAuth, ErrorAuth)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "timeout"):
		return newServiceError(err.Error(), goerrors.CategoryExternal, ErrorTransport)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorAuth
	case goerrors.CategoryExternal:
		return ErrorTransport
	case goerrors.CategoryOperation:
		return ErrorOperationFailed
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
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
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
