package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"
)

// SearchResult - один результат поиска, обогащается стадиями пайплайна.
// Живет только в рамках одного запроса.
type SearchResult struct {
	ID       string  `json:"uuid"`
	Title    string  `json:"title"`
	Link     string  `json:"link"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
	Content  string  `json:"content,omitempty"`
	Position int     `json:"position,omitempty"`
}

func NewSearchResult(title, link, snippet string) SearchResult {
	return SearchResult{
		ID:      uuid.NewString(),
		Title:   title,
		Link:    link,
		Snippet: snippet,
	}
}

// HasContent - контент считается настоящим только если он длиннее сниппета (в символах, не байтах)
func (r *SearchResult) HasContent() bool {
	return r.Content != "" && utf8.RuneCountInString(r.Content) > utf8.RuneCountInString(r.Snippet)
}

// CloneResults копирует срез, чтобы упавшая стадия не оставила полуизмененный результат.
func CloneResults(results []SearchResult) []SearchResult {
	if results == nil {
		return nil
	}
	out := make([]SearchResult, len(results))
	copy(out, results)
	return out
}

// Links returns result links in sequence order.
func Links(results []SearchResult) []string {
	links := make([]string, len(results))
	for i, r := range results {
		links[i] = r.Link
	}
	return links
}
