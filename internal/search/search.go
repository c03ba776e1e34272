package search

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized    = errors.New("invalid API key")
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrInvalidRequest  = errors.New("invalid request parameters")
	ErrSearchFailed    = errors.New("search request failed")
	ErrUnknownProvider = errors.New("unknown search provider")
)

type SearchClient interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

type SearchRequest struct {
	Query      string
	MaxResults int
	// Locale - язык выдачи (hl у google), пустой = не передаем
	Locale string
}

type SearchResponse struct {
	Query        string
	Results      []SearchResult
	ResponseTime float64
}

type SearchResult struct {
	Title         string
	Link          string
	Snippet       string
	Position      int
	PublishedDate string
}
