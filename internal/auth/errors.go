// errors.go -- Typed domain errors shared by both tracks.
//
// Every recognized failure carries a stable code, a human message, and an
// HTTP-equivalent status for the boundary layer to serialize. Anything else
// propagates as a generic internal error and is logged server-side.
package auth

// Error is a domain failure with a stable machine code.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

var (
	// ErrInvalidCredentials intentionally conflates "no such account" and
	// "wrong password" -- enumeration resistance.
	ErrInvalidCredentials = &Error{"INVALID_CREDENTIALS", "invalid email or password", 401}

	ErrEmailAlreadyExists = &Error{"EMAIL_ALREADY_EXISTS", "an account with this email already exists", 409}

	// ErrSessionInvalid never distinguishes expired from revoked from
	// never-existed.
	ErrSessionInvalid = &Error{"SESSION_INVALID", "session is invalid or expired", 401}

	ErrPasswordResetRequired = &Error{"PASSWORD_RESET_REQUIRED", "password reset required before login", 403}

	ErrTokenInvalid          = &Error{"TOKEN_INVALID", "reset token is invalid or expired", 400}
	ErrResetMaxAttempts      = &Error{"PASSWORD_RESET_MAX_ATTEMPTS", "too many failed attempts, request a new reset link", 400}
	ErrPasswordSameAsOld     = &Error{"PASSWORD_SAME_AS_OLD", "new password must differ from the current password", 400}

	ErrOAuthStateInvalid  = &Error{"OAUTH_STATE_INVALID", "oauth state is invalid or already used", 401}
	ErrOAuthProviderError = &Error{"OAUTH_PROVIDER_ERROR", "oauth provider request failed", 502}
	ErrOAuthEmailRequired = &Error{"OAUTH_EMAIL_REQUIRED", "oauth account has no verified email", 403}

	ErrRateLimited = &Error{"RATE_LIMITED", "too many requests, try again later", 429}

	ErrAccountNotFound = &Error{"ACCOUNT_NOT_FOUND", "no account with this email", 404}

	ErrAccountInactive = &Error{"ADMIN_ACCOUNT_INACTIVE", "account has been deactivated", 403}
)
