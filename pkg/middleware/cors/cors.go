package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	allowedMethods = "GET, POST, PATCH, DELETE, OPTIONS"
	// X-Actor-ID carries the operator identity set by the upstream gateway.
	allowedHeaders = "Content-Type, X-Requested-With, X-Request-ID, X-Actor-ID"
	exposedHeaders = "X-Request-ID"
)

// policy is the resolved origin allow-list. An empty list admits any origin.
type policy struct {
	any     bool
	origins map[string]struct{}
	maxAge  string
}

func newPolicy(allowedOrigins []string, maxAge time.Duration) policy {
	p := policy{any: len(allowedOrigins) == 0, origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		p.origins[normalize(origin)] = struct{}{}
	}
	if maxAge > 0 {
		p.maxAge = strconv.Itoa(int(maxAge / time.Second))
	}
	return p
}

func (p policy) allows(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.origins[normalize(origin)]
	return ok
}

// New returns the CORS middleware for the timetable editor frontend.
// Preflights from origins outside the list are refused with 403. Credentials
// are only advertised when a concrete origin is echoed back, never with "*".
func New(allowedOrigins []string, maxAge time.Duration) gin.HandlerFunc {
	p := newPolicy(allowedOrigins, maxAge)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		origin := c.GetHeader("Origin")
		allowed := origin != "" && p.allows(origin)

		switch {
		case allowed:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		case origin == "" && p.any:
			h.Set("Access-Control-Allow-Origin", "*")
		}
		h.Set("Access-Control-Expose-Headers", exposedHeaders)

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if origin != "" && !allowed {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		if p.maxAge != "" {
			h.Set("Access-Control-Max-Age", p.maxAge)
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
