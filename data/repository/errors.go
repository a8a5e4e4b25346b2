package repository

import "errors"

var (
	ErrAlreadyExists = errors.New("error already exists")
	ErrNotFound      = errors.New("error not found")
	// ErrConflict is a serialization failure of concurrent transactions.
	ErrConflict = errors.New("error concurrent update conflict")
)
