package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	alertdomain "github.com/pulseboard/pulseboard/internal/alert/domain"
	"github.com/pulseboard/pulseboard/pkg/db/pagination"
)

const (
	defaultAlertPageSize = 50
	maxAlertPageSize     = 250
)

func (s *Server) ListAlerts(c *gin.Context) {
	orgID, ok := s.orgID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var statuses []alertdomain.Status
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, alertdomain.Status(strings.ToUpper(strings.TrimSpace(part))))
		}
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page_token", "invalid", "invalid pagination"))
		return
	}
	if page.PageSize <= 0 {
		page.PageSize = defaultAlertPageSize
	}
	if page.PageSize > maxAlertPageSize {
		page.PageSize = maxAlertPageSize
	}

	req := alertdomain.ListRequest{
		OrgID:    orgID,
		Statuses: statuses,
		Limit:    page.PageSize + 1,
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			AbortWithError(c, newValidationError("page_token", "invalid", "invalid page token"))
			return
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			AbortWithError(c, newValidationError("page_token", "invalid", "invalid page token"))
			return
		}
		req.AfterID = afterID
	}

	alerts, err := s.alertSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	refs := make([]*alertdomain.Alert, len(alerts))
	for i := range alerts {
		refs[i] = &alerts[i]
	}
	pageInfo := pagination.BuildCursorPageInfo(refs, page.PageSize, func(a *alertdomain.Alert) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: a.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if len(alerts) > page.PageSize {
		alerts = alerts[:page.PageSize]
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":    alerts,
		"page_info": pageInfo,
	})
}

type AlertActionRequest struct {
	AlertID string `json:"alert_id"`
	Action  string `json:"action"`
}

// ApplyAlertAction drives the lifecycle state machine for one alert.
func (s *Server) ApplyAlertAction(c *gin.Context) {
	userID, _ := s.userID(c)
	orgID, ok := s.orgID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req AlertActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	raw := strings.TrimSpace(req.AlertID)
	if raw == "" {
		raw = c.Param("id")
	}
	alertID, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError("alert_id", "invalid", "invalid alert id"))
		return
	}

	alert, err := s.alertSvc.ApplyAction(c.Request.Context(), alertdomain.ApplyActionRequest{
		OrgID:   orgID,
		AlertID: alertID,
		UserID:  userID,
		Action:  alertdomain.Action(req.Action),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, alert)
}
