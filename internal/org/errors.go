package org

import "errors"

var (
	// ErrNotFound indicates the requested organisation or user does not exist.
	ErrNotFound = errors.New("org: not found")

	// ErrDuplicateEmail indicates a user with the email already exists.
	ErrDuplicateEmail = errors.New("org: email already registered")
)
