package errors

import "fmt"

// APIError is the JSON error envelope returned by every endpoint.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes used across the API surface.
const (
	InvalidRequest = "invalid_request"
	Unauthorized   = "unauthorized"
	AccessDenied   = "access_denied"
	NotFound       = "not_found"
	ServerError    = "server_error"
	BadGateway     = "bad_gateway"
	GatewayTimeout = "gateway_timeout"
)

func NewInvalidRequest(description string) *APIError {
	return &APIError{
		Code:        InvalidRequest,
		Description: description,
	}
}

// NewUnauthorized returns the generic credential-rejection error. The
// description must never reveal whether a credential was malformed,
// unknown, expired, or revoked.
func NewUnauthorized(description string) *APIError {
	return &APIError{
		Code:        Unauthorized,
		Description: description,
	}
}

func NewAccessDenied(description string) *APIError {
	return &APIError{
		Code:        AccessDenied,
		Description: description,
	}
}

func NewNotFound(description string) *APIError {
	return &APIError{
		Code:        NotFound,
		Description: description,
	}
}

func NewServerError(description string) *APIError {
	return &APIError{
		Code:        ServerError,
		Description: description,
	}
}

func NewBadGateway(description string) *APIError {
	return &APIError{
		Code:        BadGateway,
		Description: description,
	}
}

func NewGatewayTimeout(description string) *APIError {
	return &APIError{
		Code:        GatewayTimeout,
		Description: description,
	}
}
