package rpc

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"shopchain/core/genesis"
	"shopchain/observability"
)

const clockSkew = 2 * time.Minute

// authenticator verifies HS256 bearer tokens. The subject claim names the
// calling account.
type authenticator struct {
	secret []byte
	issuer string
}

func newAuthenticator(secret, issuer string) *authenticator {
	return &authenticator{secret: []byte(strings.TrimSpace(secret)), issuer: strings.TrimSpace(issuer)}
}

func (a *authenticator) caller(r *http.Request) (ethcommon.Address, error) {
	if len(a.secret) == 0 {
		return ethcommon.Address{}, errors.New("RPC authentication secret not configured")
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ethcommon.Address{}, errors.New("missing Authorization header")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ethcommon.Address{}, errors.New("Authorization header must use Bearer scheme")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return ethcommon.Address{}, errors.New("missing bearer token")
	}
	opts := []jwt.ParserOption{jwt.WithLeeway(clockSkew), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return ethcommon.Address{}, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return ethcommon.Address{}, errors.New("invalid token")
	}
	addr, err := genesis.ParseAccount(claims.Subject)
	if err != nil {
		return ethcommon.Address{}, errors.New("token subject is not an account")
	}
	if addr == (ethcommon.Address{}) {
		return ethcommon.Address{}, errors.New("token subject is the zero account")
	}
	return addr, nil
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
	nowFn    func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const visitorTTL = 5 * time.Minute

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
		nowFn:    time.Now,
	}
}

func (c *clientLimiter) allow(id string) bool {
	if c == nil {
		return true
	}
	now := c.nowFn()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, v := range c.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(c.visitors, key)
		}
	}
	v, ok := c.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientID(r)) {
			observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
