package integration

import "github.com/bizhub/integrations/internal/domain/shared"

var (
	// ErrMissingDependency is returned when a required dependency cannot be enabled
	ErrMissingDependency = shared.NewDomainError("MISSING_DEPENDENCY", "Required dependency is not available")
	// ErrHasDependents is returned when dependents block unregister or disable
	ErrHasDependents = shared.NewDomainError("HAS_DEPENDENTS", "Integration is required by other integrations")
	// ErrIntegrationConflict is returned when a conflicting integration is enabled
	ErrIntegrationConflict = shared.NewDomainError("INTEGRATION_CONFLICT", "Integration conflicts with an enabled integration")
	// ErrRequiredIntegration is returned when disabling an integration marked required
	ErrRequiredIntegration = shared.NewDomainError("REQUIRED_INTEGRATION", "Integration is required and cannot be disabled")
	// ErrHookFailed wraps a lifecycle hook error
	ErrHookFailed = shared.NewDomainError("HOOK_FAILED", "Lifecycle hook failed")
	// ErrInvalidSchema is returned for a malformed configuration schema or value
	ErrInvalidSchema = shared.NewDomainError("INVALID_SCHEMA", "Invalid configuration schema")
)
