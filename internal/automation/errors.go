package automation

import "errors"

var (
	// ErrNotFound indicates the requested automation does not exist.
	ErrNotFound = errors.New("automation: not found")

	// ErrInvalidAutomation indicates an automation failed validation.
	ErrInvalidAutomation = errors.New("automation: invalid automation")
)
