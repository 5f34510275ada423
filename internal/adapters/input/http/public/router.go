package public

import (
    "log/slog"
    "net/http"

    "github.com/gin-gonic/gin"
)

// NewRouter wires the public API. When security is nil the card routes
// are served without authentication.
func NewRouter(handler *Handler, security *SecurityHandler, logger *slog.Logger) *gin.Engine {
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(CorrelationID())
    r.Use(RequestLogger(logger))

    r.GET("/health", func(c *gin.Context) {
        c.JSON(http.StatusOK, gin.H{"status": "ok"})
    })

    api := r.Group("/")
    if security != nil {
        api.Use(security.Middleware())
    }
    api.POST("/tasks", handler.OpenTask)
    api.PUT("/cards/:cardId/assignee", handler.AssignCard)
    api.POST("/cards/:cardId/start", handler.StartDevelopment)
    api.GET("/cards/:cardId/activity", handler.GetActivity)

    return r
}
