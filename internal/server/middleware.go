// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/subtle"
	"fmt"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/time/rate"
)

// ============================================================================
// Auth Configuration and Middleware
// ============================================================================

// AuthConfig contains admin authentication options.
type AuthConfig struct {
	// BearerToken is the expected bearer token. Empty disables the admin API.
	BearerToken string

	// TOTPSecret, when set, requires a valid one-time code in the X-OTP header.
	TOTPSecret string

	// now is the clock used for TOTP validation.
	now func() time.Time
}

// Enabled reports whether a token is configured.
func (c *AuthConfig) Enabled() bool {
	return c != nil && c.BearerToken != ""
}

// AuthMiddleware returns HTTP middleware that authenticates admin requests.
//
// Authentication checks (in order):
//  1. A token must be configured, otherwise the route answers 404
//  2. The Authorization header must carry the Bearer token
//  3. When a TOTP secret is set, X-OTP must hold a current code
//
// Returns 401 Unauthorized if authentication fails.
// Uses constant-time comparison for token validation to prevent timing attacks.
func AuthMiddleware(config *AuthConfig, ips *IPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled() {
				writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
				return
			}

			clientIP := ips.ClientIP(r)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Printf("AUTH_DENIED | ip=%s reason=missing_bearer", clientIP)
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if !ValidateBearerToken(token, config.BearerToken) {
				log.Printf("AUTH_DENIED | ip=%s reason=invalid_token", clientIP)
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}

			if config.TOTPSecret != "" {
				now := time.Now
				if config.now != nil {
					now = config.now
				}
				code := strings.TrimSpace(r.Header.Get("X-OTP"))
				valid, err := totp.ValidateCustom(code, config.TOTPSecret, now().UTC(), totp.ValidateOpts{
					Period: 30,
					Skew:   1,
					Digits: 6,
				})
				if err != nil || !valid {
					log.Printf("AUTH_DENIED | ip=%s reason=invalid_otp", clientIP)
					writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ValidateBearerToken compares tokens using constant-time comparison.
// Returns false if either token is empty.
func ValidateBearerToken(token, expected string) bool {
	if token == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// ============================================================================
// CORS Configuration and Middleware
// ============================================================================

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins. "*" allows any origin and
	// "*.example.com" matches subdomains.
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string

	// MaxAge is the max age (in seconds) for preflight cache.
	MaxAge int
}

// NewCORSConfig returns a CORS configuration for the given origins.
func NewCORSConfig(origins []string) *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-OTP"},
		MaxAge:         86400,
	}
}

// allowedOrigin returns the value for Access-Control-Allow-Origin, or "".
func (c *CORSConfig) allowedOrigin(origin string) string {
	for _, allowed := range c.AllowedOrigins {
		switch {
		case allowed == "*":
			if origin != "" {
				return origin
			}
			return "*"
		case origin == "":
			continue
		case allowed == origin:
			return origin
		case strings.HasPrefix(allowed, "*."):
			if strings.HasSuffix(origin, strings.TrimPrefix(allowed, "*")) {
				return origin
			}
		}
	}
	return ""
}

// CORSMiddleware returns HTTP middleware that handles CORS headers and
// answers preflight OPTIONS requests.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allow := config.allowedOrigin(r.Header.Get("Origin")); allow != "" {
				w.Header().Set("Access-Control-Allow-Origin", allow)
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Rate Limiter
// ============================================================================

// visitor is one client's token bucket.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-IP token bucket limiter.
type RateLimiter struct {
	visitors map[string]*visitor

	// perMinute is the sustained rate; burst is the bucket size.
	perMinute int
	burst     int

	// idle is how long an unused bucket is kept.
	idle time.Duration

	now  func() time.Time
	stop chan struct{}
	once sync.Once

	mu sync.Mutex
}

// NewRateLimiter creates a limiter allowing perMinute requests per IP with the
// given burst, and starts its cleanup goroutine. Call Stop to end it.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		visitors:  make(map[string]*visitor),
		perMinute: perMinute,
		burst:     burst,
		idle:      3 * time.Minute,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether a request from ip may proceed, and how many requests
// remain in its bucket.
func (rl *RateLimiter) Allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60), rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	allowed := v.limiter.AllowN(now, 1)
	remaining := int(v.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

// RetryAfter returns how long until ip gets a token back.
func (rl *RateLimiter) RetryAfter(ip string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		return 0
	}
	r := v.limiter.ReserveN(rl.now(), 1)
	delay := r.DelayFrom(rl.now())
	r.CancelAt(rl.now())
	return delay
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup periodically removes idle buckets.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-rl.idle)
			for ip, v := range rl.visitors {
				if v.lastSeen.Before(cutoff) {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimitMiddleware returns HTTP middleware that enforces rate limiting.
// Rejected requests are answered by reject with status 429.
// Adds X-RateLimit-* headers to all responses.
func RateLimitMiddleware(limiter *RateLimiter, ips *IPResolver, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ips.ClientIP(r)

			allowed, remaining := limiter.Allow(clientIP)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.perMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				retry := limiter.RetryAfter(clientIP)
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				log.Printf("RATE_LIMIT_EXCEEDED | ip=%s limit=%d/min", clientIP, limiter.perMinute)
				reject(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Request Logging Middleware
// ============================================================================

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware returns HTTP middleware that logs all requests.
// When stats is non-nil each status is also counted there.
//
// Log format: "2024-01-15 14:30:45 | POST /api/chat | 200 | 1.234s"
func LoggingMiddleware(logger *log.Logger, stats *ServerStats) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			if stats != nil {
				stats.RecordStatus(wrapped.statusCode)
			}
			logger.Printf("%s | %s %s | %d | %.3fs | id=%s",
				start.Format("2006-01-02 15:04:05"),
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				time.Since(start).Seconds(),
				w.Header().Get(RequestIDHeader),
			)
		})
	}
}

// ============================================================================
// Request ID Middleware
// ============================================================================

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware echoes a well-formed incoming X-Request-ID or assigns
// a new UUID, so log lines and client bug reports can be matched.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Security Headers Middleware
// ============================================================================

// SecurityHeadersMiddleware returns HTTP middleware that adds security headers.
// Handlers may override Cache-Control for cacheable responses.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Recovery Middleware
// ============================================================================

// RecoveryMiddleware returns HTTP middleware that recovers from panics, logs
// the stack trace and answers with onPanic.
func RecoveryMiddleware(onPanic http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.Printf("PANIC_RECOVERED | method=%s path=%s error=%v\n%s",
						r.Method,
						r.URL.Path,
						err,
						string(debug.Stack()),
					)
					onPanic(w, r)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Middleware Chain Helper
// ============================================================================

// Chain composes multiple middleware functions into a single middleware.
// Middlewares are applied in the order provided.
//
// Example:
//
//	chain := Chain(
//	    LoggingMiddleware(logger, nil),
//	    RateLimitMiddleware(limiter, ips, reject),
//	)
//	http.Handle("/api", chain(handler))
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ============================================================================
// IP Extraction Helper
// ============================================================================

// DefaultTrustedProxies are loopback and private ranges. Forwarded headers
// are only honored from these peers.
var DefaultTrustedProxies = []string{
	"127.0.0.1/32",   // IPv4 localhost
	"::1/128",        // IPv6 localhost
	"10.0.0.0/8",     // Private network (RFC 1918)
	"172.16.0.0/12",  // Private network (RFC 1918)
	"192.168.0.0/16", // Private network (RFC 1918)
	"fc00::/7",       // IPv6 Unique Local Addresses (RFC 4193)
}

// IPResolver extracts client IPs, trusting forwarded headers only from
// known proxies.
type IPResolver struct {
	trusted []*net.IPNet
}

// NewIPResolver parses the trusted proxy list. Bare IPs are treated as
// single-host ranges. An empty list uses DefaultTrustedProxies.
func NewIPResolver(proxies []string) *IPResolver {
	if len(proxies) == 0 {
		proxies = DefaultTrustedProxies
	}
	r := &IPResolver{trusted: make([]*net.IPNet, 0, len(proxies))}
	for _, p := range proxies {
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				log.Printf("TRUSTED_PROXIES: Invalid IP address: %s", p)
				continue
			}
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			p = fmt.Sprintf("%s/%d", p, bits)
		}
		_, ipNet, err := net.ParseCIDR(p)
		if err != nil {
			log.Printf("TRUSTED_PROXIES: Invalid CIDR notation: %s", p)
			continue
		}
		r.trusted = append(r.trusted, ipNet)
	}
	return r
}

func (ir *IPResolver) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range ir.trusted {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// getRemoteIP extracts the IP address from r.RemoteAddr.
func getRemoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// ClientIP extracts the client IP address from an HTTP request.
//
// Security: X-Forwarded-For and X-Real-IP are only trusted when the direct
// peer is a trusted proxy, so clients cannot dodge rate limits by spoofing
// headers.
func (ir *IPResolver) ClientIP(r *http.Request) string {
	connIP := getRemoteIP(r.RemoteAddr)
	if ir == nil || !ir.isTrusted(connIP) {
		return connIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(clientIP) != nil {
			return clientIP
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	return connIP
}
