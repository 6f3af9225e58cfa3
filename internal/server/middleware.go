package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/pulseboard/pulseboard/internal/orgcontext"
)

const (
	HeaderOrg        = "X-Org-ID"
	contextUserIDKey = "user_id"
	contextOrgIDKey  = "organization_id"
)

// WebAuthRequired authenticates the session cookie and stashes the user
// ID in both gin and request contexts.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sess, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, sess.UserID)
		c.Request = c.Request.WithContext(orgcontext.WithUserID(c.Request.Context(), int64(sess.UserID)))
		c.Next()
	}
}

// OrgContext resolves the active organization from the X-Org-ID header
// or the organization_id query parameter and verifies membership.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.userID(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			raw = strings.TrimSpace(c.Query("organization_id"))
		}
		if raw == "" {
			AbortWithError(c, newValidationError("organization_id", "required", "organization is required"))
			return
		}

		orgID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("organization_id", "invalid", "invalid organization id"))
			return
		}

		member, err := s.organizationSvc.IsMember(c.Request.Context(), orgID, userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !member {
			AbortWithError(c, ErrForbidden)
			return
		}

		c.Set(contextOrgIDKey, orgID)
		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), int64(orgID)))
		c.Next()
	}
}

func (s *Server) userID(c *gin.Context) (snowflake.ID, bool) {
	value, exists := c.Get(contextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok
}

func (s *Server) orgID(c *gin.Context) (snowflake.ID, bool) {
	value, exists := c.Get(contextOrgIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok
}
