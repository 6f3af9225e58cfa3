package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	connectdomain "github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
)

func (s *Server) ListIntegrations(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	integrations, err := s.integrationSvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"integrations": integrations})
}

func (s *Server) DisconnectIntegration(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	platform, okPlatform := integrationdomain.ParsePlatform(c.Param("platform"))
	if !okPlatform {
		AbortWithError(c, connectdomain.ErrUnsupportedPlatform)
		return
	}

	if err := s.integrationSvc.Disconnect(c.Request.Context(), orgID, platform); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"platform": platform,
		"status":   integrationdomain.StatusDisconnected,
	})
}

// SyncIntegration triggers an immediate sync for one platform instead of
// waiting for the scheduler.
func (s *Server) SyncIntegration(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	platform, okPlatform := integrationdomain.ParsePlatform(c.Param("platform"))
	if !okPlatform {
		AbortWithError(c, connectdomain.ErrUnsupportedPlatform)
		return
	}

	integration, err := s.integrationSvc.FindByOrgAndPlatform(c.Request.Context(), orgID, platform)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	written, err := s.syncSvc.SyncIntegration(c.Request.Context(), integration.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"platform":    platform,
		"data_points": written,
	})
}
