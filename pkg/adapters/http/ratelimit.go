package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle client keeps its bucket.
const staleAfter = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit limits requests per client IP with a token bucket of rps and burst.
// At most maxClients buckets are tracked; idle ones are evicted first.
func RateLimit(rps float64, burst, maxClients int) func(http.Handler) http.Handler {
	if maxClients <= 0 {
		maxClients = 10000
	}
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientLimiter)
	)

	allow := func(ip string, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()

		c, ok := clients[ip]
		if !ok {
			if len(clients) >= maxClients {
				evict(clients, now)
			}
			c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[ip] = c
		}
		c.lastSeen = now
		return c.limiter.AllowN(now, 1)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allow(clientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// evict drops idle buckets, or the least recently seen one if none is idle.
func evict(clients map[string]*clientLimiter, now time.Time) {
	var (
		oldestIP string
		oldest   time.Time
	)
	removed := false
	for ip, c := range clients {
		if now.Sub(c.lastSeen) > staleAfter {
			delete(clients, ip)
			removed = true
			continue
		}
		if oldestIP == "" || c.lastSeen.Before(oldest) {
			oldestIP, oldest = ip, c.lastSeen
		}
	}
	if !removed && oldestIP != "" {
		delete(clients, oldestIP)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
