package connector

import "errors"

var (
	// ErrNotFound indicates the requested connector does not exist.
	ErrNotFound = errors.New("connector: not found")

	// ErrExists indicates a connector with the same ID already exists.
	ErrExists = errors.New("connector: already exists")
)
