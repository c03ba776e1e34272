// Package index is the semantic index used by the relevance scorer.
//
// Each Store call builds an independent, short-lived index over the given
// candidates; nothing is shared between calls or requests.
package index

import (
	"context"
	"errors"
)

var (
	ErrNoDocuments   = errors.New("no documents to index")
	ErrUnknownHandle = errors.New("unknown index handle")
	ErrDuplicateID   = errors.New("duplicate document id")
)

// Document is one indexed candidate keyed by its result identifier.
type Document struct {
	ID      string
	Content string
}

// Match is one query hit. Score is cosine similarity, higher is more relevant.
type Match struct {
	ID      string
	Score   float64
	Content string
}

type Handle string

type Index interface {
	Store(ctx context.Context, docs []Document) (Handle, error)
	Query(ctx context.Context, h Handle, text string, threshold float64, maxResults int) ([]Match, error)
	Release(h Handle)
}
