package storage

import "errors"

// Store errors. Trades, summaries, market rows and quotes are append-only:
// a key is written once and never updated.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key in append-only store")
	ErrInvalidInput = errors.New("invalid store input")
)
