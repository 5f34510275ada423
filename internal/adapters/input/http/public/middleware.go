package public

import (
    "log/slog"

    "github.com/gin-gonic/gin"
    "github.com/google/uuid"
    "github.com/walletera/kanban/internal/eventsourcing"
    "github.com/walletera/kanban/pkg/logattr"
)

const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID takes the correlation id from the request, or generates
// one, and makes it available to the command handlers through the request
// context.
func CorrelationID() gin.HandlerFunc {
    return func(c *gin.Context) {
        correlationId := c.GetHeader(CorrelationIDHeader)
        if correlationId == "" {
            correlationId = uuid.NewString()
        }

        c.Header(CorrelationIDHeader, correlationId)
        c.Request = c.Request.WithContext(
            eventsourcing.WithCorrelationId(c.Request.Context(), correlationId),
        )

        c.Next()
    }
}

func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
    return func(c *gin.Context) {
        c.Next()

        correlationId, _ := eventsourcing.CorrelationIdFromContext(c.Request.Context())
        logger.Debug(
            "http request served",
            logattr.HTTPMethod(c.Request.Method),
            logattr.HTTPPath(c.FullPath()),
            logattr.HTTPStatus(c.Writer.Status()),
            logattr.CorrelationId(correlationId),
        )
    }
}
