package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"predictor/service"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	headerUserID    = "X-User-ID"
	headerUserAdmin = "X-User-Admin"
)

type actorKey struct{}

// identityMiddleware turns the identity headers set by the upstream gateway into a service.Actor
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := service.Actor{UserID: strings.TrimSpace(r.Header.Get(headerUserID))}
		if raw := r.Header.Get(headerUserAdmin); raw != "" {
			isAdmin, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, r, service.ValidationError("invalid %s header", headerUserAdmin))
				return
			}
			actor.IsAdmin = isAdmin
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(r *http.Request) service.Actor {
	actor, _ := r.Context().Value(actorKey{}).(service.Actor)
	return actor
}

// callerLimiter hands out one token bucket per caller
type callerLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 10 * time.Minute

func newCallerLimiter(perSecond float64, burst int) *callerLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &callerLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		limiters:  make(map[string]*limiterEntry),
		lastSweep: time.Now(),
	}
}

func (l *callerLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

// rateLimitMiddleware throttles writes per caller; reads are never limited
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := actorFrom(r).UserID
		if key == "" {
			key = clientIP(r)
		}
		if !s.limiter.allow(key) {
			log.WithFields(log.Fields{
				"caller": key,
				"path":   r.URL.Path,
			}).Warn("Rate limit exceeded")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: errorBody{Kind: "rate_limited", Message: "too many requests"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("HTTP request")
	})
}
