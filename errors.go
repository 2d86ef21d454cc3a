package guard

import "errors"

var (
	// ErrAuthenticationFailed indicates the principal's session is missing
	// or no longer valid.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrSessionExpired indicates the session validity window has elapsed.
	ErrSessionExpired = errors.New("session expired")
	// ErrMFARequired indicates the action is blocked pending a verified
	// second factor.
	ErrMFARequired = errors.New("mfa required")
	// ErrPermissionDenied indicates the principal lacks the required
	// permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInsufficientRoleLevel indicates the principal's role level is
	// below the configured minimum.
	ErrInsufficientRoleLevel = errors.New("insufficient role level")
	// ErrOwnershipViolation indicates a tenant or owner mismatch on the
	// requested resource.
	ErrOwnershipViolation = errors.New("ownership violation")
	// ErrCheckFailed indicates a caller-supplied custom predicate denied
	// or errored.
	ErrCheckFailed = errors.New("custom check failed")
	// ErrValidation indicates malformed check input (ownership options,
	// permission requirement, config).
	ErrValidation = errors.New("validation failed")
	// ErrEngineNotReady indicates the engine was not built via Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AccessError wraps a denied SecurityCheckResult for APIs that must
// return an error, like [Engine.WithSecurityCheck]. It unwraps to the
// sentinel of the failing layer so callers can use errors.Is.
type AccessError struct {
	Result SecurityCheckResult
}

func (e *AccessError) Error() string {
	if e == nil {
		return "access denied"
	}
	msg := "access denied at " + e.Result.Layer.String() + " layer"
	if e.Result.Reason != "" {
		msg += ": " + e.Result.Reason
	}
	return msg
}

func (e *AccessError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Result.Err
}
