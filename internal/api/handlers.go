package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/rag-search/internal/domain"
)

const (
	codeOK    = 0
	codeError = -1

	msgOK            = "ok"
	msgAccessDenied  = "Access Denied"
	msgInvalidParams = "invalid params"
	msgSearchFailed  = "get search results failed"
	msgRateLimited   = "too many requests"
	msgTimeout       = "request timeout"
	msgInternal      = "internal error"

	maxRequestBody = 1 << 20
)

// Response - общий конверт ответа: code 0 при успехе, -1 при ошибке.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type RagSearchData struct {
	SearchResults []domain.SearchResult `json:"search_results"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleRagSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.RagSearchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.logger.Debug("bad request body", zap.Error(err))
		respondErr(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	results, err := s.runner.Run(ctx, req.ToRunRequest())
	if err != nil {
		status, msg := mapError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("rag search failed", zap.Error(err))
		} else {
			s.logger.Info("rag search rejected", zap.Error(err))
		}
		respondErr(w, status, msg)
		return
	}

	if results == nil {
		results = []domain.SearchResult{}
	}
	respondJSON(w, http.StatusOK, Response{
		Code:    codeOK,
		Message: msgOK,
		Data:    RagSearchData{SearchResults: results},
	})
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrQueryTooLong),
		errors.Is(err, domain.ErrInvalidSearchCount),
		errors.Is(err, domain.ErrInvalidTopK):
		return http.StatusBadRequest, msgInvalidParams
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest, msgInvalidParams + ": " + err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, msgAccessDenied
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout
	case errors.Is(err, domain.ErrSearchFailed):
		return http.StatusBadGateway, msgSearchFailed + ": " + err.Error()
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func respondErr(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, Response{Code: codeError, Message: msg})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":-1,"message":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
