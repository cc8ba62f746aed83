package auth

import "errors"

var (
	// ErrInvalidCredentials indicates the email/password pair did not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid indicates a token failed signature or claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")
)
