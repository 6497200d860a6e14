package db

import "errors"

// Sentinel errors for backend and store operations.
var (
	ErrIndexNotFound = errors.New("db: index not found")
	ErrNoHosts       = errors.New("db: no hosts configured")
)

// Op constants name backend and store operations for error context.
const (
	OpSearch  = "SEARCH"
	OpPing    = "PING"
	OpIndex   = "INDEX"
	OpSelect  = "SELECT"
	OpHGetAll = "HGETALL"
	OpHSet    = "HSET"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
