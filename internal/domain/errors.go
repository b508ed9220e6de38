package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by adapters. Use errors.Is to branch on them.
var (
	ErrNotFound  = errors.New("not found")
	ErrNoData    = errors.New("upstream returned no data")
	ErrUnparsed  = errors.New("upstream response could not be interpreted")
	ErrExhausted = errors.New("upstream retries exhausted")
)

// FallbackTextKey carries upstream tool text that held no JSON object.
const FallbackTextKey = "text_fallback"

// IsNoData reports whether err is an upstream condition that callers
// degrade to an empty result.
func IsNoData(err error) bool {
	return errors.Is(err, ErrExhausted) || errors.Is(err, ErrUnparsed) || errors.Is(err, ErrNoData)
}

// Machine-readable error codes carried by the envelope.
const (
	CodeInvalidLocation           = "INVALID_LOCATION"
	CodeInvalidOfferID            = "INVALID_OFFER_ID"
	CodeInvalidGuestDetailsJSON   = "INVALID_GUEST_DETAILS_JSON"
	CodeInvalidGuestDetailsSchema = "INVALID_GUEST_DETAILS_SCHEMA"
	CodeBookingFailed             = "BOOKING_FAILED"
	CodeInvalidBookingRef         = "INVALID_PROVIDER_BOOKING_REF"
	CodeMissingCancellationFields = "MISSING_CANCELLATION_FIELDS"
	CodeMissingStatusFields       = "MISSING_STATUS_FIELDS"
	CodeJournalUnavailable        = "JOURNAL_UNAVAILABLE"
	CodeInternal                  = "INTERNAL_ERROR"
)

// APIError is the one error shape returned by every outward operation.
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	Details    map[string]any `json:"details"`
	StatusCode int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// ErrorEnvelope is the wire form of an APIError.
type ErrorEnvelope struct {
	OK    bool      `json:"ok"`
	Error *APIError `json:"error"`
}

// Envelope wraps err for the wire. Errors that are not *APIError are
// reported as INTERNAL_ERROR without leaking their text.
func Envelope(err error) ErrorEnvelope {
	return ErrorEnvelope{OK: false, Error: AsAPIError(err)}
}

func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError(err)
}

func NewValidationError(code, message string, details map[string]any) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

func NewBookingFailedError(message, offerID string) *APIError {
	return &APIError{
		Code:       CodeBookingFailed,
		Message:    message,
		Details:    map[string]any{"offer_id": offerID},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// NewMissingFieldsError reports negotiated input the caller did not supply.
func NewMissingFieldsError(code, message string, required []string, nextAction, ref string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: map[string]any{
			"status":               "failed",
			"required_fields":      required,
			"next_action":          nextAction,
			"provider_booking_ref": ref,
		},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewJournalUnavailableError() *APIError {
	return &APIError{
		Code:       CodeJournalUnavailable,
		Message:    "booking journal is not configured",
		StatusCode: http.StatusServiceUnavailable,
	}
}

func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       CodeInternal,
		Message:    "an internal error occurred",
		Retryable:  true,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
