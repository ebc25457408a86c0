package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrDatabaseUnreachable = errors.New("database unreachable")
	ErrPoolExhausted       = errors.New("connection pool exhausted")
)
