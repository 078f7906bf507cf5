package orchestrator

import (
	"context"
	"errors"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/model"
)

// Error classes for local failures.
const (
	ClassInput            = "InputError"
	ClassValidation       = "ValidationError"
	ClassConfiguration    = "ConfigurationError"
	ClassIllegalState     = "IllegalStateError"
	ClassRequestCancelled = "RequestCancelled"
	ClassInternal         = "InternalServerError"
)

// StatusClientClosedRequest is reported when the caller cancelled.
const StatusClientClosedRequest = 499

// Classify maps an error to the caller-facing (status, error class). Rules
// are evaluated in order; the first match wins.
func Classify(err error) (int, string) {
	var (
		failure *Failure
		vendor  *model.VendorError
	)
	switch {
	case err == nil:
		return 200, ""
	case errors.As(err, &failure):
		return failure.Status, failure.Class
	case errors.As(err, &vendor):
		m := vendor.Mapping()
		return m.Status, m.Class
	case errors.Is(err, core.ErrValidation):
		return 400, ClassValidation
	case errors.Is(err, core.ErrInput):
		return 400, ClassInput
	case errors.Is(err, core.ErrConfiguration):
		return 500, ClassConfiguration
	case errors.Is(err, core.ErrIllegalState):
		return 500, ClassIllegalState
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ClassRequestCancelled
	case errors.Is(err, context.DeadlineExceeded):
		m := model.Lookup(model.KindTimeout)
		return m.Status, m.Class
	default:
		return model.DefaultMapping.Status, model.DefaultMapping.Class
	}
}

// describe returns the caller-visible error description.
func describe(err error) string {
	var (
		local  *core.Error
		vendor *model.VendorError
	)
	switch {
	case errors.As(err, &vendor) && vendor.Message != "":
		return vendor.Message
	case errors.As(err, &local):
		return local.Description()
	default:
		return err.Error()
	}
}
