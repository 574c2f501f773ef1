package dto

import "errors"

var (
	// ErrQuoteUnavailable means no live price could be obtained for a symbol.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrStoreWriteFailed wraps a failed position write.
	ErrStoreWriteFailed = errors.New("store write failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotifierFailed   = errors.New("notifier failed")

	ErrPositionNotFound      = errors.New("position not found")
	ErrPositionAlreadyClosed = errors.New("position already closed")
)
