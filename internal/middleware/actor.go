package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// ContextActorKey is the gin context key storing the acting operator id.
const ContextActorKey = "actorID"

// AnonymousActor is recorded when the upstream auth layer sent no identity.
const AnonymousActor = "anonymous"

// Actor copies the operator identity forwarded by the upstream auth layer
// into the request context. Authentication itself happens before this API.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(logger.ActorHeader))
		if actor == "" {
			actor = AnonymousActor
		}
		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// ActorFromContext returns the actor set by Actor, or AnonymousActor.
func ActorFromContext(c *gin.Context) string {
	if value, ok := c.Get(ContextActorKey); ok {
		if actor, ok := value.(string); ok && actor != "" {
			return actor
		}
	}
	return AnonymousActor
}
