package admission

import "net/http"

// Error is a terminal, request-scoped admission rejection
type Error struct {
	Kind    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidCredential = &Error{
		Kind:    "invalid_credential",
		Status:  http.StatusBadRequest,
		Message: "Invalid JWT token",
	}
	ErrBlacklisted = &Error{
		Kind:    "blacklisted",
		Status:  http.StatusForbidden,
		Message: "Chip ID is blacklisted",
	}
	ErrNotRegistered = &Error{
		Kind:    "not_registered",
		Status:  http.StatusForbidden,
		Message: "Chip ID not allowed",
	}
	ErrRejectedAndBlacklisted = &Error{
		Kind:    "rejected_and_blacklisted",
		Status:  http.StatusMethodNotAllowed,
		Message: "Invalid chip ID sent to black list",
	}
	ErrAlreadyBlacklisted = &Error{
		Kind:    "already_blacklisted",
		Status:  http.StatusMethodNotAllowed,
		Message: "Chip ID is blacklisted",
	}
	ErrInvalidOrExpiredCredential = &Error{
		Kind:    "invalid_or_expired_credential",
		Status:  http.StatusMethodNotAllowed,
		Message: "Invalid or expired token",
	}
	ErrMissingBody = &Error{
		Kind:    "missing_body",
		Status:  http.StatusBadRequest,
		Message: "JSON body is required",
	}
	ErrInvalidReading = &Error{
		Kind:    "invalid_reading",
		Status:  http.StatusBadRequest,
		Message: "Metric values must be numbers",
	}
)
