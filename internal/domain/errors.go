package domain

import "errors"

var ErrUnauthorized = errors.New("access denied")

var (
	ErrEmptyQuery         = errors.New("empty query")
	ErrQueryTooLong       = errors.New("query too long")
	ErrInvalidSearchCount = errors.New("search count must be at least 1")
	ErrInvalidTopK        = errors.New("top k must be non-negative")
)

var (
	ErrSearchFailed    = errors.New("search failed")
	ErrUnknownProvider = errors.New("unknown search provider")
)
