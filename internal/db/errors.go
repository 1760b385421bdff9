package db

import "errors"

// ErrKeyNotFound is returned for a missing or expired key.
var ErrKeyNotFound = errors.New("db: key not found")

// Op names the Redis command that failed.
type Op string

// Commands issued by the store.
const (
	OpPing  Op = "PING"
	OpGet   Op = "GET"
	OpGetEx Op = "GETEX"
	OpSet   Op = "SET"
)

// Error wraps a command failure with the command name.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string { return string(e.Op) + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
