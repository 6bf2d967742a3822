package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"cleanstreet/backend/auth"
	"cleanstreet/backend/db"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const identityKey = "identity"

func accountOf(role auth.Role) db.Account {
	switch role {
	case auth.RoleVolunteer:
		return db.AccountVolunteer
	case auth.RoleAdmin:
		return db.AccountAdmin
	}
	return db.AccountUser
}

// authorize accepts requests carrying a valid bearer token for one of roles
// whose identity is still allowed to act.
func (s *Server) authorize(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			fail(c, http.StatusUnauthorized, "Not authorized, no token")
			c.Abort()
			return
		}
		ident, err := s.tokens.Parse(tokenString)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Not authorized, token failed")
			c.Abort()
			return
		}

		allowed := false
		for _, r := range roles {
			if ident.Role == r {
				allowed = true
				break
			}
		}
		if !allowed {
			fail(c, http.StatusForbidden, "Access denied for role "+string(ident.Role))
			c.Abort()
			return
		}

		err = db.CheckActive(c.Request.Context(), s.db, accountOf(ident.Role), ident.Id)
		switch {
		case err == nil:
		case errors.Is(err, db.ErrIdentityInactive):
			fail(c, http.StatusForbidden, "Your account is not active")
			c.Abort()
			return
		case errors.Is(err, db.ErrUserNotFound), errors.Is(err, db.ErrVolunteerNotFound), errors.Is(err, db.ErrAdminNotFound):
			fail(c, http.StatusUnauthorized, "Not authorized, account not found")
			c.Abort()
			return
		default:
			log.Errorf("Failed to check identity %s %s: %v", ident.Role, ident.Id, err)
			fail(c, http.StatusInternalServerError, "Server error")
			c.Abort()
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

func extractToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// caller returns the identity stored by authorize.
func caller(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	ident, _ := v.(*auth.Identity)
	return ident
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	idle     time.Duration
	lastGC   time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	return &ipLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		lastGC:   time.Now(),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastGC) > l.idle {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// rateLimit throttles a route per client IP. A non-positive rps disables it.
func rateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := newIPLimiter(rps, burst)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.allow(ip) {
			log.Warnf("Rate limit exceeded for IP: %s", ip)
			fail(c, http.StatusTooManyRequests, "Too many requests, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
