package shared

import "errors"

// Sentinel errors shared across packages. Domain packages declare their own
// richer sentinels; these cover cross-cutting auth and session concerns.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCSRFTokenMissing   = errors.New("csrf token missing")
	ErrCSRFTokenMismatch  = errors.New("csrf token mismatch")
)
