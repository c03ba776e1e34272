package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		s.metrics.IncRequestsInFlight()
		next.ServeHTTP(rec, r)
		s.metrics.DecRequestsInFlight()

		took := time.Since(start)
		if r.URL.Path != "/metrics" && r.URL.Path != "/health" {
			s.metrics.RecordRequest(strconv.Itoa(rec.status), took)
		}
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", took),
		)
	})
}

// authMiddleware сравнивает bearer токен с AUTH_API_KEY за константное время.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || s.config.AuthAPIKey == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AuthAPIKey)) != 1 {
			s.logger.Warn("access denied", zap.String("remote", r.RemoteAddr))
			respondErr(w, http.StatusUnauthorized, msgAccessDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r)
		if !s.limiter.Allow(key) {
			resetAt := s.limiter.ResetTime(key)
			s.logger.Warn("rate limit exceeded",
				zap.String("remote", r.RemoteAddr),
				zap.Time("reset_at", resetAt),
			)
			s.metrics.RecordRateLimitHit()

			retry := int(time.Until(resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			respondErr(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(bearerPrefix):])
	return token, token != ""
}

// clientKey - ключ лимита: токен, а без него адрес клиента
func clientKey(r *http.Request) string {
	if token, ok := bearerToken(r); ok {
		return "key:" + token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
