package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind classifies a vendor-originated failure.
type ErrorKind string

const (
	KindBadRequest          ErrorKind = "bad_request"
	KindAuthentication      ErrorKind = "authentication"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
	KindUnprocessableEntity ErrorKind = "unprocessable_entity"
	KindRateLimit           ErrorKind = "rate_limit"
	KindInternal            ErrorKind = "internal"
	KindConnection          ErrorKind = "connection"
	KindTimeout             ErrorKind = "timeout"
	KindContentFilter       ErrorKind = "content_filter"
	KindLengthExceeded      ErrorKind = "length_exceeded"
	KindResponseValidation  ErrorKind = "response_validation"
	// KindUnknown is any vendor failure not listed in ErrorTable.
	KindUnknown ErrorKind = "unknown"
)

// ErrorMapping is the caller-facing translation of an error kind.
type ErrorMapping struct {
	Status int    `json:"status"`
	Class  string `json:"error_class"`
}

// DefaultMapping applies to every kind missing from ErrorTable.
var DefaultMapping = ErrorMapping{Status: 500, Class: "InternalServerError"}

// ErrorTable maps vendor error kinds to (HTTP status, error class).
var ErrorTable = map[ErrorKind]ErrorMapping{
	KindBadRequest:          {400, "BadRequestError"},
	KindAuthentication:      {401, "AuthenticationError"},
	KindPermissionDenied:    {403, "PermissionDeniedError"},
	KindNotFound:            {404, "NotFoundError"},
	KindConflict:            {409, "ConflictError"},
	KindUnprocessableEntity: {422, "UnprocessableEntityError"},
	KindRateLimit:           {429, "RateLimitError"},
	KindInternal:            {500, "InternalServerError"},
	KindConnection:          {502, "APIConnectionError"},
	KindTimeout:             {504, "APITimeoutError"},
	KindContentFilter:       {400, "ContentFilterFinishReasonError"},
	KindLengthExceeded:      {400, "LengthFinishReasonError"},
	KindResponseValidation:  {500, "APIResponseValidationError"},
}

// Lookup returns the mapping for kind or DefaultMapping.
func Lookup(kind ErrorKind) ErrorMapping {
	if m, ok := ErrorTable[kind]; ok {
		return m
	}
	return DefaultMapping
}

// KindForStatus maps a vendor HTTP status code to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 400:
		return KindBadRequest
	case status == 401:
		return KindAuthentication
	case status == 403:
		return KindPermissionDenied
	case status == 404:
		return KindNotFound
	case status == 409:
		return KindConflict
	case status == 422:
		return KindUnprocessableEntity
	case status == 429:
		return KindRateLimit
	case status == 408 || status == 504:
		return KindTimeout
	case status >= 500:
		return KindInternal
	}
	return KindUnknown
}

// VendorError is a failure raised by or while talking to the vendor.
type VendorError struct {
	Kind    ErrorKind
	Status  int // vendor HTTP status, 0 when no response was received
	Message string
	Cause   error
}

// NewVendorError constructs a VendorError.
func NewVendorError(kind ErrorKind, status int, message string, cause error) *VendorError {
	return &VendorError{Kind: kind, Status: status, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *VendorError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("vendor %s error (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("vendor %s error: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *VendorError) Unwrap() error { return e.Cause }

// Mapping returns the caller-facing (status, class) for this error.
func (e *VendorError) Mapping() ErrorMapping { return Lookup(e.Kind) }

// TransportError classifies a failure that carried no vendor status:
// timeouts, connection failures and undecodable bodies. Caller
// cancellation passes through unchanged.
func TransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return NewVendorError(KindTimeout, 0, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewVendorError(KindTimeout, 0, "request timed out", err)
	}
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return NewVendorError(KindConnection, 0, "connection error", err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return NewVendorError(KindResponseValidation, 0, "malformed response body", err)
	}
	return NewVendorError(KindUnknown, 0, err.Error(), err)
}
