// Package auth holds password, lockout and token helpers shared by the
// HTTP handlers.
package auth

import (
	"database/sql"
	"errors"
)

var (
	ErrPasswordReused = errors.New("password was recently used, please choose a different password")
	ErrInvalidToken   = errors.New("invalid or expired token")
)

// DB is the minimal database surface the auth helpers need.
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}
