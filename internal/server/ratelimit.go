// ratelimit.go - Per-client request limit over a sliding window.
package server

import (
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// rateLimiter remembers the request times of each client inside the
// current window. Times per client are kept in arrival order.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// newRateLimiter allows limit requests per window for each client and
// starts a sweeper that forgets idle clients.
func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string][]time.Time),
		done:    make(chan struct{}),
	}
	go rl.sweepEvery(time.Minute)
	return rl
}

// allow records a request from client. When the client is over its limit
// the request is not recorded and wait says when the next one will pass.
func (rl *rateLimiter) allow(client string) (ok bool, wait time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := inWindow(rl.clients[client], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.clients[client] = recent
		return false, recent[0].Add(rl.window).Sub(now)
	}
	rl.clients[client] = append(recent, now)
	return true, 0
}

// inWindow drops the times at or before cutoff.
func inWindow(times []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(times), func(i int) bool { return times[i].After(cutoff) })
	return times[i:]
}

func (rl *rateLimiter) sweepEvery(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep forgets clients with no request inside the window.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for client, times := range rl.clients {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.clients, client)
		}
	}
}

func (rl *rateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// rateLimitMiddleware rejects clients over the limit with 429 and a
// Retry-After in whole seconds.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, wait := s.limiter.allow(ip)
		if !ok {
			s.metrics.recordThrottled()
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, r, http.StatusTooManyRequests, msgRateLimited, zap.String("ip", ip))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers proxy headers (first X-Forwarded-For hop, then
// X-Real-IP) over the connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
