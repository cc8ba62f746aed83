// Package auth provides password hashing and JWT token handling for
// Fusion Bridge Core.
//
// Passwords are hashed with Argon2id and stored in PHC string format.
// Access tokens are HS256-signed JWTs carrying the user ID, organisation
// ID and role; the API middleware validates them by signature alone, so
// no database round-trip happens per request.
package auth
