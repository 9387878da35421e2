package wpauth

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	// Generic failures
	ErrorCodeNetwork         = "network_error"
	ErrorCodeServer          = "server_error"
	ErrorCodeInvalidResponse = "invalid_response"

	// Authentication failures
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeTokenUnavailable   = "token_unavailable"
	ErrorCodeTokenExpired       = "token_expired"
	ErrorCodeSessionLocked      = "session_locked"
	ErrorCodeReauthFailed       = "reauth_failed"

	// Session / payment failures
	ErrorCodePaymentFailed     = "payment_failed"
	ErrorCodeMembershipExpired = "membership_expired"

	// Transaction failures
	ErrorCodeTransactionFailed   = "transaction_failed"
	ErrorCodeDiscountUnavailable = "discount_unavailable"

	// Admin-action failures
	ErrorCodeNotPermitted      = "not_permitted"
	ErrorCodeAdminActionFailed = "admin_action_failed"

	// Vendor-catalog failures
	ErrorCodeVendorCatalog  = "vendor_catalog_unavailable"
	ErrorCodeVendorNotFound = "vendor_not_found"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the tagged error carried across the whole SDK. Code is a short
// stable identifier suitable for switching on; Message is safe to show to a
// user (HTML from the backend is sanitized before it lands here).
type APIError struct {
	// Code is the stable error code (e.g. "invalid_credentials")
	Code string `json:"code"`

	// Message is a human-readable, already-sanitized description
	Message string `json:"message"`

	// Status is the HTTP status that produced the error, 0 when the
	// request never completed (network unreachable)
	Status int `json:"status,omitempty"`

	// Endpoint is the logical path the failing request targeted
	Endpoint string `json:"endpoint,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is allows errors.Is comparisons against the predefined sentinel values by
// code, ignoring message/status/endpoint detail.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrTokenUnavailable is returned when an operation requires a session
	// token and none is stored. No network call is attempted.
	ErrTokenUnavailable = &APIError{
		Code:    ErrorCodeTokenUnavailable,
		Message: "no session token available, sign in first",
	}

	// ErrSessionLocked is returned when the device-level session lock is
	// engaged and automatic re-validation is suppressed.
	ErrSessionLocked = &APIError{
		Code:    ErrorCodeSessionLocked,
		Message: "session is locked on this device",
	}

	// ErrReauthFailed is returned when token refresh failed and no
	// remembered credential pair exists to fall back on.
	ErrReauthFailed = &APIError{
		Code:    ErrorCodeReauthFailed,
		Message: "session expired and could not be renewed",
	}

	// ErrInvalidCredentials is returned when the backend rejects a
	// username/password pair.
	ErrInvalidCredentials = &APIError{
		Code:    ErrorCodeInvalidCredentials,
		Message: "invalid username or password",
	}
)

// newAPIError builds an APIError with sanitized message text.
func newAPIError(code, message string, status int, endpoint string) *APIError {
	return &APIError{
		Code:     code,
		Message:  sanitizeHTML(message),
		Status:   status,
		Endpoint: endpoint,
	}
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// errorBody is the WordPress REST error envelope: {"code": "...",
// "message": "...", "data": {"status": 404}}. Older plugin endpoints emit
// {"success": false, "error": "..."} instead, so both shapes are tried.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

// parseErrorResponse maps a non-2xx response onto an APIError. The fallback
// code is used when the body carries no usable code of its own.
func parseErrorResponse(status int, body []byte, endpoint, fallbackCode string) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		if msg != "" {
			code := fallbackCode
			switch status {
			case http.StatusUnauthorized, http.StatusForbidden:
				code = ErrorCodeInvalidCredentials
			}
			return newAPIError(code, msg, status, endpoint)
		}
	}

	return newAPIError(fallbackCode,
		fmt.Sprintf("request failed: %s", http.StatusText(status)),
		status, endpoint)
}

// networkError wraps a transport-level failure (status 0).
func networkError(endpoint string, err error) *APIError {
	return &APIError{
		Code:     ErrorCodeNetwork,
		Message:  fmt.Sprintf("network unreachable: %v", err),
		Status:   0,
		Endpoint: endpoint,
	}
}
