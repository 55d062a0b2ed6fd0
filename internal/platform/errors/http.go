package errors

import (
	"errors"

	"github.com/adjourn-app/courtroom/internal/platform/errors/catalog"
)

// HTTPError is the caller-facing rendering of a domain error.
type HTTPError struct {
	Status  int
	Code    Code
	Message string
}

// HandleError converts domain errors to an HTTP rendering for client
// responses. The user-facing message comes from the message catalog;
// unknown errors collapse to a generic internal error so internals
// never leak to clients.
func HandleError(err error) HTTPError {
	if err == nil {
		return HTTPError{}
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return HTTPError{
			Status:  appErr.Code.HTTPStatus(),
			Code:    appErr.Code,
			Message: catalog.Format(string(appErr.Code), appErr.Metadata),
		}
	}

	return HTTPError{
		Status:  CodeUnknown.HTTPStatus(),
		Code:    CodeUnknown,
		Message: "an unexpected error occurred",
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata extracts metadata from an error if present.
// Returns nil if the error is not a domain error or has no metadata.
func GetMetadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
