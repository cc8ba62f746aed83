package device

import "errors"

var (
	// ErrNotFound indicates the requested device does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrInvalidDevice indicates a device failed validation.
	ErrInvalidDevice = errors.New("device: invalid device")
)
