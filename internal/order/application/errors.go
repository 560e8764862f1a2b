package application

import "errors"

var (
	ErrTransientUnavailable = errors.New("inventory authority unavailable")
	ErrStorageFault         = errors.New("order ledger write not confirmed")
	ErrDuplicateKey         = errors.New("order id already exists")
	ErrIdempotencyConflict  = errors.New("idempotency key already used")
	ErrNotFound             = errors.New("order not found")
)
