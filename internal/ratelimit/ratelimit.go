// Package ratelimit is a per-client sliding window limiter for the HTTP API.
package ratelimit

import (
	"sync"
	"time"
)

const defaultRequestsPerMinute = 60

// Limiter - sliding window на клиента (bearer key или адрес)
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type Config struct {
	RequestsPerMinute int
	// Window переопределяет минутное окно (тесты)
	Window          time.Duration
	CleanupInterval time.Duration
}

func New(cfg Config) *Limiter {
	limit := cfg.RequestsPerMinute
	if limit <= 0 {
		limit = defaultRequestsPerMinute
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	l := &Limiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup(interval)
	return l
}

func (l *Limiter) Limit() int {
	return l.limit
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	fresh := l.pruneLocked(key, now)

	if len(fresh) >= l.limit {
		return false
	}

	l.requests[key] = append(fresh, now)
	return true
}

func (l *Limiter) RemainingRequests(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cnt := len(l.pruneLocked(key, l.now()))
	if rem := l.limit - cnt; rem > 0 {
		return rem
	}
	return 0
}

// ResetTime - когда освободится следующий слот (приблизительно)
func (l *Limiter) ResetTime(key string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ts := l.pruneLocked(key, now)
	if len(ts) == 0 {
		return now
	}
	// timestamps добавляются по возрастанию, первый самый старый
	return ts[0].Add(l.window)
}

// Close останавливает фоновую очистку. Повторный вызов безопасен.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// pruneLocked компактирует окно ключа на месте и пишет его обратно в map.
func (l *Limiter) pruneLocked(key string, now time.Time) []time.Time {
	old, ok := l.requests[key]
	if !ok {
		return nil
	}

	cutoff := now.Add(-l.window)
	fresh := old[:0]
	for _, t := range old {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	l.requests[key] = fresh
	return fresh
}

func (l *Limiter) cleanup(interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-tick.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.requests {
		if len(l.pruneLocked(key, now)) == 0 {
			delete(l.requests, key)
		}
	}
}
