package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxQueryLength - в символах
const MaxQueryLength = 1000

const (
	DefaultSearchCount    = 10
	DefaultSearchProvider = "google"
	DefaultDetailTopK     = 6
	DefaultDetailMinScore = 0.70
	DefaultFilterTopK     = 6
	DefaultFilterMinScore = 0.80
)

// Options selects optional pipeline stages and their parameters.
type Options struct {
	Reranking      bool
	Detail         bool
	DetailTopK     int
	DetailMinScore float64
	Filter         bool
	FilterTopK     int
	FilterMinScore float64
}

func DefaultOptions() Options {
	return Options{
		DetailTopK:     DefaultDetailTopK,
		DetailMinScore: DefaultDetailMinScore,
		FilterTopK:     DefaultFilterTopK,
		FilterMinScore: DefaultFilterMinScore,
	}
}

func (o Options) Validate() error {
	if o.DetailTopK < 0 || o.FilterTopK < 0 {
		return ErrInvalidTopK
	}
	return nil
}

// RagSearchRequest - тело запроса POST /rag-search.
// Числовые поля указатели: явный 0 (например detail_min_score=0.0) не должен заменяться дефолтом.
type RagSearchRequest struct {
	Query          string   `json:"query"`
	Locale         string   `json:"locale"`
	SearchN        *int     `json:"search_n,omitempty"`
	SearchProvider string   `json:"search_provider"`
	IsReranking    bool     `json:"is_reranking"`
	IsDetail       bool     `json:"is_detail"`
	DetailTopK     *int     `json:"detail_top_k,omitempty"`
	DetailMinScore *float64 `json:"detail_min_score,omitempty"`
	IsFilter       bool     `json:"is_filter"`
	FilterMinScore *float64 `json:"filter_min_score,omitempty"`
	FilterTopK     *int     `json:"filter_top_k,omitempty"`
}

// RunRequest is the normalized input of one pipeline run.
type RunRequest struct {
	Query       string
	Locale      string
	SearchCount int
	Provider    string
	Options     Options
}

func (q *RunRequest) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if utf8.RuneCountInString(q.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if q.SearchCount < 1 {
		return ErrInvalidSearchCount
	}
	return q.Options.Validate()
}

func (q *RunRequest) Sanitize() {
	q.Query = strings.TrimSpace(q.Query)
	q.Locale = strings.TrimSpace(q.Locale)
	// пустой провайдер оставляем: его разрешает реестр (google, если настроен)
	q.Provider = strings.ToLower(strings.TrimSpace(q.Provider))
}

// ToRunRequest applies defaults for every field the caller left out.
func (r *RagSearchRequest) ToRunRequest() RunRequest {
	opts := DefaultOptions()
	opts.Reranking = r.IsReranking
	opts.Detail = r.IsDetail
	opts.Filter = r.IsFilter
	if r.DetailTopK != nil {
		opts.DetailTopK = *r.DetailTopK
	}
	if r.DetailMinScore != nil {
		opts.DetailMinScore = *r.DetailMinScore
	}
	if r.FilterTopK != nil {
		opts.FilterTopK = *r.FilterTopK
	}
	if r.FilterMinScore != nil {
		opts.FilterMinScore = *r.FilterMinScore
	}

	searchN := DefaultSearchCount
	if r.SearchN != nil {
		searchN = *r.SearchN
	}

	return RunRequest{
		Query:       r.Query,
		Locale:      r.Locale,
		SearchCount: searchN,
		Provider:    r.SearchProvider,
		Options:     opts,
	}
}
