package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when a downstream service cannot be reached
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Input error codes
const (
	// ErrCodeValidation is the base code for request validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeInvalidSchema is used when a configuration schema is malformed
	ErrCodeInvalidSchema = "ERR_INVALID_SCHEMA"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeForbidden is used when the caller may not access a resource
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Dependency error codes
const (
	// ErrCodeMissingDependency is used when a required dependency cannot be enabled
	ErrCodeMissingDependency = "ERR_MISSING_DEPENDENCY"
	// ErrCodeHasDependents is used when dependents block the operation
	ErrCodeHasDependents = "ERR_HAS_DEPENDENTS"
	// ErrCodeIntegrationConflict is used when two integrations cannot be enabled together
	ErrCodeIntegrationConflict = "ERR_INTEGRATION_CONFLICT"
	// ErrCodeRequiredIntegration is used when disabling an integration marked required
	ErrCodeRequiredIntegration = "ERR_REQUIRED_INTEGRATION"
	// ErrCodeCircularDependency is used when required dependencies form a cycle
	ErrCodeCircularDependency = "ERR_CIRCULAR_DEPENDENCY"
	// ErrCodeHookFailed is used when a lifecycle hook returned an error or timed out
	ErrCodeHookFailed = "ERR_HOOK_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeInvalidSchema:   http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Resource errors
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeForbidden:     http.StatusForbidden,

	// Dependency rules -> 409 Conflict / 422 Unprocessable Entity
	ErrCodeMissingDependency:   http.StatusUnprocessableEntity,
	ErrCodeHasDependents:       http.StatusConflict,
	ErrCodeIntegrationConflict: http.StatusConflict,
	ErrCodeRequiredIntegration: http.StatusUnprocessableEntity,
	ErrCodeCircularDependency:  http.StatusUnprocessableEntity,

	// Hooks talk to the integration's provider
	ErrCodeHookFailed: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONFLICT":             ErrCodeConflict,
	"UNAVAILABLE":          ErrCodeUnavailable,
	"INVALID_SCHEMA":       ErrCodeInvalidSchema,
	"MISSING_DEPENDENCY":   ErrCodeMissingDependency,
	"HAS_DEPENDENTS":       ErrCodeHasDependents,
	"INTEGRATION_CONFLICT": ErrCodeIntegrationConflict,
	"REQUIRED_INTEGRATION": ErrCodeRequiredIntegration,
	"CIRCULAR_DEPENDENCY":  ErrCodeCircularDependency,
	"HOOK_FAILED":          ErrCodeHookFailed,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
