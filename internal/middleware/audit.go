package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/procurehub/marketplace-api/internal/models"
)

type auditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Audit records mutating requests after they complete. Reads and failed
// requests are skipped to keep the log focused on state changes.
func Audit(store auditStore, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= 400 {
			return
		}

		var userID *string
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				id := claims.UserID
				userID = &id
			}
		}

		detail, _ := json.Marshal(map[string]interface{}{
			"path":       c.FullPath(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})

		entry := &models.AuditLog{
			UserID:    userID,
			Action:    c.Request.Method + " " + c.FullPath(),
			Resource:  "http_request",
			NewValues: detail,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if err := store.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("audit write failed", zap.Error(err))
		}
	}
}
