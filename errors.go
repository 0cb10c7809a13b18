package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeBadCredential   = "BAD_CREDENTIAL"
	textCodeAccountLocked   = "ACCOUNT_LOCKED"
	textCodeAccountDisabled = "ACCOUNT_DISABLED"
	textCodeAlreadyLogin    = "ALREADY_LOGIN"
	textCodeAuthRequired    = "AUTH_REQUIRED"
	textCodeNoPermission    = "NO_PERMISSION"
)

// ErrBadCredential covers a wrong password and, deliberately, an unknown
// loginId so callers cannot enumerate accounts.
var ErrBadCredential = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeBadCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountLocked is returned while a lockout window is still open.
var ErrAccountLocked = goerrors.New("account is locked", goerrors.CategoryAuth).
	WithTextCode(textCodeAccountLocked).
	WithCode(goerrors.CodeForbidden)

// ErrAccountDisabled is returned for disabled or deleted accounts.
var ErrAccountDisabled = goerrors.New("account is disabled", goerrors.CategoryAuth).
	WithTextCode(textCodeAccountDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrAlreadyLogin means a competing active session exists and force login
// was not requested. No state is mutated when this is returned.
var ErrAlreadyLogin = goerrors.New("another active session exists", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyLogin).
	WithCode(goerrors.CodeConflict)

// ErrAuthRequired means a guarded operation ran with no authenticated
// principal in the call context.
var ErrAuthRequired = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(textCodeAuthRequired).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoPermission means the principal is authenticated but its granted
// authorities do not satisfy the required permission expression.
var ErrNoPermission = goerrors.New("insufficient permissions", goerrors.CategoryAuth).
	WithTextCode(textCodeNoPermission).
	WithCode(goerrors.CodeForbidden)

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsBadCredentialError will check for credential rejections
func IsBadCredentialError(err error) bool {
	return HasTextCode(err, textCodeBadCredential)
}

// IsAlreadyLoginError will check for duplicate session rejections
func IsAlreadyLoginError(err error) bool {
	return HasTextCode(err, textCodeAlreadyLogin)
}

// IsAccountLockedError will check for lockout rejections
func IsAccountLockedError(err error) bool {
	return HasTextCode(err, textCodeAccountLocked)
}

// ErrTokenExpired is a session cookie token past its expiry
var ErrTokenExpired = goerrors.New("session token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is a session cookie token that fails to parse or verify
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return HasTextCode(err, "TOKEN_EXPIRED") || strings.Contains(err.Error(), "token is expired")
}
