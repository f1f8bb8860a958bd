package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
)

func actorFromContext(c *gin.Context) string {
	return middleware.ActorFromContext(c)
}
