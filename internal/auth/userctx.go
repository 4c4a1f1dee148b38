package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hacf-ai/hacf-backend/internal/users"
)

const (
	CtxExternalID = "external_id"
	CtxUserDBID   = "user_db_id"
)

// WithUser resolves the caller to a database user row. Identity comes
// from the X-User-Id header set by the fronting proxy; requests
// without one share the "demo-user" identity.
func WithUser(userRepo *users.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		eid := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if eid == "" {
			eid = "demo-user"
		}

		uid, err := userRepo.EnsureUser(c.Request.Context(), users.UpsertUser{
			ExternalID:  eid,
			Email:       c.GetHeader("X-User-Email"),
			DisplayName: c.GetHeader("X-User-Name"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			c.Abort()
			return
		}

		c.Set(CtxExternalID, eid)
		c.Set(CtxUserDBID, uid)
		c.Next()
	}
}

func UserDBID(c *gin.Context) string {
	v := c.GetString(CtxUserDBID)
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}
