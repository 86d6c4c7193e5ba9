package security

import (
	"net/http"
	"strings"
	"sync"

	"FCProject/tools/errs"
	jwtlib "FCProject/tools/security"

	"github.com/gin-gonic/gin"
)

// context keys downstream handlers read
const (
	CtxUIDKey   = "authUID"
	CtxTokenKey = "authToken"
)

type Options struct {
	HeaderToken               string // default "authorization"
	EnableAuthorizationBearer bool   // default true
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "authorization",
		EnableAuthorizationBearer: true,
	}
}

var (
	jwtMu   sync.RWMutex
	jwtOpts jwtlib.Options
)

// Configure installs the verification key. Called once at boot,
// before any route is served.
func Configure(opts jwtlib.Options) {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtOpts = opts
}

func verifyOpts() jwtlib.Options {
	jwtMu.RLock()
	defer jwtMu.RUnlock()
	return jwtOpts
}

// Middleware verifies the bearer token and stashes the caller uid in
// the gin context.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
		if token == "" && opts.EnableAuthorizationBearer {
			token = strings.TrimSpace(c.GetHeader("Authorization"))
		}
		// the configured header may itself be Authorization (Go
		// canonicalizes header names), so strip the scheme from
		// whichever value won
		token = stripBearer(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		claims, err := jwtlib.Verify(verifyOpts(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}
		uid := claims.Subject()
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		c.Set(CtxUIDKey, uid)
		c.Set(CtxTokenKey, token)
		c.Next()
	}
}

// stripBearer drops the "Bearer " scheme prefix; a raw token passes
// through unchanged.
func stripBearer(s string) string {
	const prefix = "bearer "
	if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return strings.TrimSpace(s[len(prefix):])
	}
	return s
}

// CallerUID reads the authenticated uid set by Middleware.
func CallerUID(c *gin.Context) string {
	if v, ok := c.Get(CtxUIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
