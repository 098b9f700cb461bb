package domain

import "errors"

// Error classes surfaced to clients. Wrap them with fmt.Errorf("%w: ...").
var (
	ErrAuth         = errors.New("authentication failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrStoreFailure = errors.New("store failure")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")
)

// Wire error codes
const (
	CodeAuthFailed    = "AUTH_FAILED"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeNotFound      = "NOT_FOUND"
	CodeStoreFailure  = "STORE_FAILURE"
	CodeBadRequest    = "BAD_REQUEST"
	CodeRateLimited   = "RATE_LIMITED"
	CodeInternalError = "INTERNAL_ERROR"
)

// ErrorPayload is the payload of an error event
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// ErrorCode maps an error to its wire code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return CodeAuthFailed
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrStoreFailure):
		return CodeStoreFailure
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternalError
	}
}

// ErrorMessage returns a client-safe description of err.
// Store and unclassified errors are not echoed since they may carry driver detail.
func ErrorMessage(err error) string {
	switch ErrorCode(err) {
	case CodeStoreFailure:
		return "Temporary storage failure, please retry"
	case CodeInternalError:
		return "Internal error"
	default:
		return err.Error()
	}
}

// NewErrorEvent builds the error event for err, tagged with the inbound event that caused it
func NewErrorEvent(err error, cause string) Event {
	return NewEvent(EventError, ErrorPayload{
		Code:    ErrorCode(err),
		Message: ErrorMessage(err),
		Event:   cause,
	})
}
